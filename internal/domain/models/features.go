package models

import "time"

// FeatureColumns is the column order every estimator is trained on.
var FeatureColumns = []string{
	"day_of_week",
	"day_of_month",
	"month",
	"shop_encoded",
	"days_since_start",
}

// FeatureRow is the model input for one (date, shop) pair.
// Target is only meaningful on training rows.
type FeatureRow struct {
	Date           time.Time
	Shop           string
	DayOfWeek      int // Monday = 0
	DayOfMonth     int
	Month          int
	ShopEncoded    int
	DaysSinceStart int
	Target         float64
}

// Vector returns the features in FeatureColumns order.
func (r FeatureRow) Vector() []float64 {
	return []float64{
		float64(r.DayOfWeek),
		float64(r.DayOfMonth),
		float64(r.Month),
		float64(r.ShopEncoded),
		float64(r.DaysSinceStart),
	}
}
