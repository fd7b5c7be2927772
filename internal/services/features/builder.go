package features

import (
    "errors"
    "fmt"
    "time"

    "SalesPulse/internal/domain/models"
    "SalesPulse/pkg/util"
)

var (
    ErrNoEncoder   = errors.New("features: a fitted encoder is required when fit is false")
    ErrNoStartDate = errors.New("features: start date is required when fit is false")
)

// FeatureSet is the result of BuildFeatures.
type FeatureSet struct {
    Rows    []models.FeatureRow
    Encoder *ShopEncoder
    Start   time.Time
}

// BuildFeatures derives model rows from daily observations.
//
// With fit=true a new encoder is fitted on the shops present and, when start
// is nil, the start date resolves to the earliest observation. With fit=false
// both enc and start must come from the trained model; unseen shops fail
// with *models.UnknownCategoryError. Rows dated before start are rejected.
func BuildFeatures(obs []models.DailyObservation, enc *ShopEncoder, fit bool, start *time.Time) (FeatureSet, error) {
    if len(obs) == 0 {
        return FeatureSet{}, models.ErrInsufficientData
    }

    if fit {
        shops := make([]string, 0, len(obs))
        for _, o := range obs {
            shops = append(shops, o.Shop)
        }
        enc = FitShopEncoder(shops)
    } else {
        if enc == nil {
            return FeatureSet{}, ErrNoEncoder
        }
        if start == nil {
            return FeatureSet{}, ErrNoStartDate
        }
    }

    var resolved time.Time
    if start != nil {
        resolved = util.TruncateDay(*start)
    } else {
        resolved = util.TruncateDay(obs[0].Date)
        for _, o := range obs[1:] {
            if d := util.TruncateDay(o.Date); d.Before(resolved) {
                resolved = d
            }
        }
    }

    rows := make([]models.FeatureRow, 0, len(obs))
    for _, o := range obs {
        code, err := enc.Encode(o.Shop)
        if err != nil {
            return FeatureSet{}, err
        }
        date := util.TruncateDay(o.Date)
        elapsed := util.DaysBetween(resolved, date)
        if elapsed < 0 {
            return FeatureSet{}, fmt.Errorf("%w: %s is before start date %s",
                models.ErrInvalidHorizon, util.FormatDate(date), util.FormatDate(resolved))
        }
        rows = append(rows, models.FeatureRow{
            Date:           date,
            Shop:           o.Shop,
            DayOfWeek:      (int(date.Weekday()) + 6) % 7,
            DayOfMonth:     date.Day(),
            Month:          int(date.Month()),
            ShopEncoded:    code,
            DaysSinceStart: elapsed,
            Target:         o.Amount,
        })
    }

    return FeatureSet{Rows: rows, Encoder: enc, Start: resolved}, nil
}

// Horizon returns one zero-valued observation per day in
// [target, target+days) for shop, ready for BuildFeatures with fit=false.
func Horizon(shop string, target time.Time, days int) []models.DailyObservation {
    out := make([]models.DailyObservation, 0, days)
    for i := 0; i < days; i++ {
        out = append(out, models.DailyObservation{Date: util.AddDays(target, i), Shop: shop})
    }
    return out
}
