package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Grouping keys for the daily series.
const (
	GroupingTotal = "total"
	GroupingShop  = "shop"
)

// TotalShop labels the single series produced by the "total" grouping.
const TotalShop = "total"

// SaleRecord is one row of the upstream sales listing.
// Date is truncated to the calendar day in UTC.
type SaleRecord struct {
	Date   time.Time
	Shop   string
	Amount decimal.Decimal
}

// DailyObservation is the summed amount for one (date, shop) pair.
type DailyObservation struct {
	Date   time.Time
	Shop   string
	Amount float64
}
