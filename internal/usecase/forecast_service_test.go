package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	"SalesPulse/internal/repository"
	"SalesPulse/internal/services/forecast"
	"SalesPulse/pkg/cache"
	"SalesPulse/pkg/metrics"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	records []models.SaleRecord
	err     error
	calls   atomic.Int32
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Pages(context.Context) domrepo.PageIterator { return nil }

func (s *staticSource) FetchAll(context.Context) ([]models.SaleRecord, error) {
	s.calls.Add(1)
	return s.records, s.err
}

type recordingRuns struct {
	repository.NopRunStore
	runs []models.TrainingRun
}

func (r *recordingRuns) Record(_ context.Context, run models.TrainingRun) error {
	r.runs = append(r.runs, run)
	return nil
}

func (r *recordingRuns) Recent(context.Context, int) ([]models.TrainingRun, error) {
	return r.runs, nil
}

type recordingEvents struct {
	repository.NopEventPublisher
	events []models.ModelTrainedEvent
}

func (e *recordingEvents) PublishModelTrained(_ context.Context, ev models.ModelTrainedEvent) error {
	e.events = append(e.events, ev)
	return errors.New("broker down")
}

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func constantSales(days int, amount string) []models.SaleRecord {
	out := make([]models.SaleRecord, 0, days)
	for d := 0; d < days; d++ {
		out = append(out, models.SaleRecord{Date: jan1.AddDate(0, 0, d), Shop: "north", Amount: decimal.RequireFromString(amount)})
	}
	return out
}

type fixture struct {
	svc    *ForecastService
	source *staticSource
	runs   *recordingRuns
	events *recordingEvents
	cache  *cache.MemoryCache
	store  *repository.FileModelStore
}

func newFixture(t *testing.T, records []models.SaleRecord) *fixture {
	t.Helper()
	f := &fixture{
		source: &staticSource{records: records},
		runs:   &recordingRuns{},
		events: &recordingEvents{},
		cache:  cache.NewMemoryCache(),
		store:  repository.NewFileModelStore(t.TempDir(), 2, nil),
	}
	t.Cleanup(func() { f.cache.Close() })
	f.svc = NewForecastService(
		f.source,
		forecast.NewModel(forecast.Config{MinDays: 30}, nil),
		f.store, f.runs, f.events, f.cache, metrics.Nop{}, nil,
		ForecastConfig{},
	)
	return f
}

var trainReq = models.TrainRequest{NEstimators: 10, MaxDepth: 5, TestSize: 0.2, RandomState: 42}

func TestTrainThenPredict(t *testing.T) {
	f := newFixture(t, constantSales(40, "100.00"))
	ctx := context.Background()

	resp, err := f.svc.Train(ctx, trainReq)
	require.NoError(t, err)
	assert.Equal(t, 40, resp.TrainingSamples)
	assert.Equal(t, 40, resp.Records)
	assert.Equal(t, models.DateRange{Start: "2024-01-01", End: "2024-02-09"}, resp.DateRange)
	assert.Equal(t, 40, resp.Metrics.NTrainSamples+resp.Metrics.NTestSamples)

	require.Len(t, f.runs.runs, 1)
	assert.Equal(t, resp.BundleID, f.runs.runs[0].BundleID)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, "2024-02-09", f.events.events[0].EndDate)

	out, err := f.svc.Predict(ctx, PredictParams{Days: 7})
	require.NoError(t, err)
	require.Len(t, out.ForecastDates, 7)
	assert.Equal(t, "2024-02-10", out.ForecastDates[0])
	assert.Equal(t, "2024-02-16", out.ForecastDates[6])
	for i := range out.ForecastValues {
		assert.Equal(t, 100.0, out.ForecastValues[i])
		assert.Equal(t, 100.0, out.LowerBound[i])
		assert.Equal(t, 100.0, out.UpperBound[i])
	}
	assert.True(t, out.ModelTrained)
	assert.Equal(t, models.TotalShop, out.Shop)

	status, err := f.svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.ModelTrained)
	assert.True(t, status.Loaded)
	assert.Equal(t, resp.BundleID, status.BundleID)
}

func TestTrainReleasesLockAfterFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Train(ctx, trainReq)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	f.source.err = &models.TransportError{URL: "http://sales", Err: errors.New("refused")}
	_, err = f.svc.Train(ctx, trainReq)
	var te *models.TransportError
	assert.True(t, errors.As(err, &te))
	assert.Equal(t, int32(2), f.source.calls.Load())
}

func TestTrainRejectsConcurrentTraining(t *testing.T) {
	f := newFixture(t, constantSales(5, "1"))
	ctx := context.Background()

	ok, err := f.cache.TryLock(ctx, trainLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.Train(ctx, trainReq)
	assert.ErrorIs(t, err, models.ErrTrainingInProgress)
	assert.Zero(t, f.source.calls.Load())
}

func TestPredictUntrained(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Predict(context.Background(), PredictParams{Days: 7})
	assert.ErrorIs(t, err, models.ErrModelNotTrained)

	status, err := f.svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, status.ModelTrained)
	assert.Zero(t, status.ModelSizeMB)
}

func TestPredictRejectsHorizon(t *testing.T) {
	f := newFixture(t, nil)
	for _, days := range []int{0, -1, 91} {
		_, err := f.svc.Predict(context.Background(), PredictParams{Days: days})
		assert.ErrorIs(t, err, models.ErrInvalidHorizon, "days=%d", days)
	}
}

func TestPredictLoadsPersistedBundle(t *testing.T) {
	f := newFixture(t, constantSales(10, "12.5"))
	ctx := context.Background()
	_, err := f.svc.Train(ctx, trainReq)
	require.NoError(t, err)

	restarted := NewForecastService(
		f.source,
		forecast.NewModel(forecast.Config{}, nil),
		f.store, f.runs, f.events, cache.NewMemoryCache(), metrics.Nop{}, nil,
		ForecastConfig{},
	)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	out, err := restarted.Predict(ctx, PredictParams{Days: 3, Start: &start})
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02", "2024-03-03"}, out.ForecastDates)
	assert.Equal(t, []float64{12.5, 12.5, 12.5}, out.ForecastValues)
}

type failingStore struct {
	*repository.FileModelStore
}

func (failingStore) Save(context.Context, domrepo.ArtifactBundle) error {
	return errors.New("no space left on device")
}

func TestTrainSaveFailureKeepsModelUntrained(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewForecastService(&staticSource{records: constantSales(40, "100")},
		forecast.NewModel(forecast.Config{}, nil),
		failingStore{repository.NewFileModelStore(t.TempDir(), 2, nil)},
		repository.NopRunStore{}, repository.NopEventPublisher{}, mc, metrics.Nop{}, nil, ForecastConfig{})
	ctx := context.Background()

	_, err := svc.Train(ctx, trainReq)
	require.Error(t, err)

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.ModelTrained)
	assert.False(t, status.Loaded)

	_, err = svc.Predict(ctx, PredictParams{Days: 7})
	assert.ErrorIs(t, err, models.ErrModelNotTrained)
}

func TestPredictKnownShopOnTotalSeries(t *testing.T) {
	f := newFixture(t, constantSales(40, "100.00"))
	ctx := context.Background()
	_, err := f.svc.Train(ctx, trainReq)
	require.NoError(t, err)

	out, err := f.svc.Predict(ctx, PredictParams{Days: 7, Shop: "north"})
	require.NoError(t, err)
	require.Len(t, out.ForecastValues, 7)
	assert.Equal(t, "north", out.Shop)
	for _, v := range out.ForecastValues {
		assert.Equal(t, 100.0, v)
	}

	_, err = f.svc.Predict(ctx, PredictParams{Days: 7, Shop: "south"})
	var unknown *models.UnknownCategoryError
	assert.True(t, errors.As(err, &unknown))
}

// negativeModel emits raw values below zero to check serving-side clipping.
type negativeModel struct {
	predictCalls int
}

func (m *negativeModel) Train(context.Context, []models.SaleRecord, models.TrainParams, domrepo.ModelStore) (models.TrainingMetrics, error) {
	return models.TrainingMetrics{}, nil
}

func (m *negativeModel) Predict(_ context.Context, shop string, target time.Time, days int) ([]models.ForecastPoint, error) {
	m.predictCalls++
	out := make([]models.ForecastPoint, days)
	for i := range out {
		out[i] = models.ForecastPoint{Date: target.AddDate(0, 0, i), Shop: shop, PredictedAmount: -3.2 + float64(i)*2.5, Lower: -9.999, Upper: 4.005}
	}
	return out, nil
}

func (m *negativeModel) Load(context.Context, domrepo.ModelStore) (bool, error) { return true, nil }

func (m *negativeModel) Trained() bool { return true }

func (m *negativeModel) Metadata() (models.ModelMetadata, bool) {
	return models.ModelMetadata{BundleID: "neg", EndDate: jan1, Grouping: models.GroupingTotal}, true
}

func TestPredictClipsAndCaches(t *testing.T) {
	model := &negativeModel{}
	mc := cache.NewMemoryCache()
	defer mc.Close()
	svc := NewForecastService(&staticSource{}, model, repository.NewFileModelStore(t.TempDir(), 2, nil),
		repository.NopRunStore{}, repository.NopEventPublisher{}, mc, metrics.Nop{}, nil, ForecastConfig{})

	out, err := svc.Predict(context.Background(), PredictParams{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1.8}, out.ForecastValues)
	assert.Equal(t, []float64{0, 0, 0}, out.LowerBound)
	assert.Equal(t, []float64{4.01, 4.01, 4.01}, out.UpperBound)
	assert.Equal(t, "2024-01-02", out.ForecastDates[0])

	again, err := svc.Predict(context.Background(), PredictParams{Days: 3})
	require.NoError(t, err)
	assert.Equal(t, out, again)
	assert.Equal(t, 1, model.predictCalls)
}

func TestRunsEmpty(t *testing.T) {
	f := newFixture(t, nil)
	out, err := f.svc.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, out.Runs)
	assert.Empty(t, out.Runs)
}
