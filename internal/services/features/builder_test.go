package features

import (
    "encoding/json"
    "errors"
    "testing"
    "time"

    "SalesPulse/internal/domain/models"

    "github.com/shopspring/decimal"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func day(s string) time.Time {
    t, err := time.Parse("2006-01-02", s)
    if err != nil {
        panic(err)
    }
    return t
}

func sale(date, shop, amount string) models.SaleRecord {
    return models.SaleRecord{Date: day(date), Shop: shop, Amount: decimal.RequireFromString(amount)}
}

func TestAggregateDailyTotal(t *testing.T) {
    obs, err := AggregateDaily([]models.SaleRecord{
        sale("2024-01-02", "A", "10.10"),
        sale("2024-01-01", "B", "5"),
        sale("2024-01-02", "B", "0.20"),
    }, models.GroupingTotal)
    require.NoError(t, err)

    require.Len(t, obs, 2)
    assert.Equal(t, day("2024-01-01"), obs[0].Date)
    assert.Equal(t, models.TotalShop, obs[0].Shop)
    assert.Equal(t, 5.0, obs[0].Amount)
    assert.Equal(t, 10.3, obs[1].Amount)
}

func TestAggregateDailyPerShop(t *testing.T) {
    obs, err := AggregateDaily([]models.SaleRecord{
        sale("2024-01-01", "B", "1"),
        sale("2024-01-01", "A", "2"),
        sale("2024-01-01", "A", "3"),
    }, models.GroupingShop)
    require.NoError(t, err)

    require.Len(t, obs, 2)
    assert.Equal(t, "A", obs[0].Shop)
    assert.Equal(t, 5.0, obs[0].Amount)
    assert.Equal(t, "B", obs[1].Shop)
}

func TestAggregateDailyRejectsUnknownGrouping(t *testing.T) {
    _, err := AggregateDaily(nil, "region")
    assert.Error(t, err)
}

func TestBuildFeaturesFit(t *testing.T) {
    obs := []models.DailyObservation{
        {Date: day("2024-01-01"), Shop: "B", Amount: 1},
        {Date: day("2024-01-01"), Shop: "A", Amount: 2},
        {Date: day("2024-01-03"), Shop: "A", Amount: 3},
    }

    fs, err := BuildFeatures(obs, nil, true, nil)
    require.NoError(t, err)

    assert.Equal(t, day("2024-01-01"), fs.Start)
    require.Len(t, fs.Rows, 3)
    assert.Equal(t, 0, fs.Rows[0].DaysSinceStart)
    assert.Equal(t, 0, fs.Rows[0].DayOfWeek) // 2024-01-01 is a Monday
    assert.Equal(t, 1, fs.Rows[0].DayOfMonth)
    assert.Equal(t, 1, fs.Rows[0].Month)
    assert.Equal(t, 1, fs.Rows[0].ShopEncoded)
    assert.Equal(t, 0, fs.Rows[1].ShopEncoded)
    assert.Equal(t, 2, fs.Rows[2].DaysSinceStart)
    assert.Equal(t, 2, fs.Rows[2].DayOfWeek)
    assert.Equal(t, 3.0, fs.Rows[2].Target)
    assert.Equal(t, []float64{2, 3, 1, 0, 2}, fs.Rows[2].Vector())
}

func TestBuildFeaturesInferenceUsesRememberedStart(t *testing.T) {
    enc := FitShopEncoder([]string{"A"})
    start := day("2024-01-01")

    fs, err := BuildFeatures(Horizon("A", day("2024-02-10"), 3), enc, false, &start)
    require.NoError(t, err)

    require.Len(t, fs.Rows, 3)
    assert.Equal(t, 40, fs.Rows[0].DaysSinceStart)
    assert.Equal(t, 42, fs.Rows[2].DaysSinceStart)
    assert.Equal(t, day("2024-02-12"), fs.Rows[2].Date)
    assert.Equal(t, start, fs.Start)
}

func TestBuildFeaturesInferenceFailures(t *testing.T) {
    enc := FitShopEncoder([]string{"A"})
    start := day("2024-01-10")

    _, err := BuildFeatures(Horizon("A", day("2024-01-11"), 1), nil, false, &start)
    assert.ErrorIs(t, err, ErrNoEncoder)

    _, err = BuildFeatures(Horizon("A", day("2024-01-11"), 1), enc, false, nil)
    assert.ErrorIs(t, err, ErrNoStartDate)

    _, err = BuildFeatures(Horizon("A", day("2024-01-09"), 1), enc, false, &start)
    assert.ErrorIs(t, err, models.ErrInvalidHorizon)

    _, err = BuildFeatures(Horizon("Z", day("2024-01-11"), 1), enc, false, &start)
    var unknown *models.UnknownCategoryError
    require.True(t, errors.As(err, &unknown))
    assert.Equal(t, "Z", unknown.Category)
}

func TestBuildFeaturesEmpty(t *testing.T) {
    _, err := BuildFeatures(nil, nil, true, nil)
    assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestShopEncoderRoundTrip(t *testing.T) {
    names := []string{"north", "south", "east", "north"}
    enc := FitShopEncoder(names)
    assert.Equal(t, []string{"east", "north", "south"}, enc.Classes())

    for _, n := range names {
        code, err := enc.Encode(n)
        require.NoError(t, err)
        back, err := enc.Decode(code)
        require.NoError(t, err)
        assert.Equal(t, n, back)
    }

    _, err := enc.Encode("west")
    var unknown *models.UnknownCategoryError
    assert.True(t, errors.As(err, &unknown))

    _, err = enc.Decode(3)
    assert.Error(t, err)
}

func TestShopEncoderJSON(t *testing.T) {
    enc := FitShopEncoder([]string{"b", "a"})
    b, err := json.Marshal(enc)
    require.NoError(t, err)
    assert.JSONEq(t, `{"classes":["a","b"]}`, string(b))

    var back ShopEncoder
    require.NoError(t, json.Unmarshal(b, &back))
    code, err := back.Encode("b")
    require.NoError(t, err)
    assert.Equal(t, 1, code)

    assert.Error(t, json.Unmarshal([]byte(`{"classes":["a","a"]}`), &back))
}
