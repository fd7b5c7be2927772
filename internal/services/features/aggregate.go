package features

import (
    "fmt"
    "sort"
    "time"

    "SalesPulse/internal/domain/models"

    "github.com/shopspring/decimal"
)

type dayKey struct {
    date time.Time
    shop string
}

// AggregateDaily sums records into one observation per day ("total"
// grouping) or per day and shop ("shop" grouping). Sums are exact decimals
// and only converted to float at the end. Output is sorted by date, then shop.
func AggregateDaily(records []models.SaleRecord, grouping string) ([]models.DailyObservation, error) {
    if grouping != models.GroupingTotal && grouping != models.GroupingShop {
        return nil, fmt.Errorf("unknown grouping %q", grouping)
    }

    sums := make(map[dayKey]decimal.Decimal)
    for _, r := range records {
        k := dayKey{date: r.Date, shop: models.TotalShop}
        if grouping == models.GroupingShop {
            k.shop = r.Shop
        }
        sums[k] = sums[k].Add(r.Amount)
    }

    out := make([]models.DailyObservation, 0, len(sums))
    for k, v := range sums {
        out = append(out, models.DailyObservation{
            Date:   k.date,
            Shop:   k.shop,
            Amount: v.InexactFloat64(),
        })
    }
    sort.Slice(out, func(i, j int) bool {
        if !out[i].Date.Equal(out[j].Date) {
            return out[i].Date.Before(out[j].Date)
        }
        return out[i].Shop < out[j].Shop
    })
    return out, nil
}

// DateSpan returns the first and last date of sorted observations.
func DateSpan(obs []models.DailyObservation) (time.Time, time.Time) {
    if len(obs) == 0 {
        return time.Time{}, time.Time{}
    }
    return obs[0].Date, obs[len(obs)-1].Date
}

// DistinctDays counts calendar days present in obs.
func DistinctDays(obs []models.DailyObservation) int {
    seen := make(map[time.Time]struct{}, len(obs))
    for _, o := range obs {
        seen[o.Date] = struct{}{}
    }
    return len(seen)
}
