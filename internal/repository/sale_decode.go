package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"SalesPulse/internal/domain/models"
	"SalesPulse/pkg/util"

	"github.com/shopspring/decimal"
)

// decodeSale converts one listing row into a SaleRecord. index is the
// position across all pages and only used in error messages.
func decodeSale(row map[string]json.RawMessage, index int) (models.SaleRecord, error) {
	for _, f := range []string{"date", "shop", "amount"} {
		if v, ok := row[f]; !ok || string(v) == "null" {
			return models.SaleRecord{}, &models.MissingFieldError{Field: f, Index: index}
		}
	}

	var rawDate string
	if err := json.Unmarshal(row["date"], &rawDate); err != nil {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: date: %v", models.ErrInvalidRecord, index, err)
	}
	date, ok := util.ParseDate(strings.TrimSpace(rawDate))
	if !ok {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: unparsable date %q", models.ErrInvalidRecord, index, rawDate)
	}

	shop, err := decodeShop(row["shop"])
	if err != nil {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: shop: %v", models.ErrInvalidRecord, index, err)
	}

	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(row["amount"]); err != nil {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: amount: %v", models.ErrInvalidRecord, index, err)
	}
	if amount.IsNegative() {
		return models.SaleRecord{}, fmt.Errorf("%w: record %d: negative amount %s", models.ErrInvalidRecord, index, amount)
	}

	return models.SaleRecord{Date: date, Shop: shop, Amount: amount}, nil
}

// decodeShop accepts a name or a numeric foreign key.
func decodeShop(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return "", fmt.Errorf("empty shop")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", raw)
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}
