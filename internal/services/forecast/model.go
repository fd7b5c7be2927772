package forecast

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"SalesPulse/internal/domain/models"
	"SalesPulse/internal/domain/repository"
	"SalesPulse/internal/services/features"
	"SalesPulse/internal/services/forest"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/util"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config holds model-level settings that are not per-training parameters.
type Config struct {
	Grouping      string  // "total" or "shop"
	IntervalWidth float64 // e.g. 0.95
	MinDays       int     // below this a training only logs a warning
	Workers       int     // tree fitting parallelism, 0 = NumCPU
}

// bundle is one trained model. It is never mutated after construction.
type bundle struct {
	forest  *forest.Forest
	encoder *features.ShopEncoder
	meta    models.ModelMetadata
}

// Model trains and serves the sales forecaster. The live bundle is swapped
// atomically so concurrent predictions always see a complete model.
type Model struct {
	cfg     Config
	z       float64
	log     *applogger.Logger
	now     func() time.Time
	current atomic.Pointer[bundle]
}

// NewModel creates an untrained model.
func NewModel(cfg Config, log *applogger.Logger) *Model {
	if cfg.Grouping == "" {
		cfg.Grouping = models.GroupingTotal
	}
	if cfg.IntervalWidth <= 0 || cfg.IntervalWidth >= 1 {
		cfg.IntervalWidth = 0.95
	}
	if log == nil {
		log = applogger.NewNop()
	}
	return &Model{
		cfg: cfg,
		z:   distuv.UnitNormal.Quantile(0.5 + cfg.IntervalWidth/2),
		log: log,
		now: time.Now,
	}
}

// Trained reports whether a bundle is live.
func (m *Model) Trained() bool {
	return m.current.Load() != nil
}

// Metadata returns the metadata of the live bundle.
func (m *Model) Metadata() (models.ModelMetadata, bool) {
	b := m.current.Load()
	if b == nil {
		return models.ModelMetadata{}, false
	}
	return b.meta, true
}

// Train aggregates records to the configured daily series and fits a forest
// on a seeded random train/test split. The new bundle is written to store
// first and only made live once the save succeeded; on any error the
// previous bundle keeps serving.
func (m *Model) Train(ctx context.Context, records []models.SaleRecord, p models.TrainParams, store repository.ModelStore) (models.TrainingMetrics, error) {
	obs, err := features.AggregateDaily(records, m.cfg.Grouping)
	if err != nil {
		return models.TrainingMetrics{}, err
	}
	if len(obs) == 0 {
		return models.TrainingMetrics{}, models.ErrInsufficientData
	}
	if days := features.DistinctDays(obs); days < m.cfg.MinDays {
		m.log.Warn("training on a short series",
			applogger.Int("days", days),
			applogger.Int("recommended_min_days", m.cfg.MinDays),
		)
	}

	fs, err := features.BuildFeatures(obs, nil, true, nil)
	if err != nil {
		return models.TrainingMetrics{}, err
	}

	trainIdx, testIdx := splitIndexes(len(fs.Rows), p.TestSize, p.RandomState)
	xTrain, yTrain := matrix(fs.Rows, trainIdx)
	xTest, yTest := matrix(fs.Rows, testIdx)

	f, err := forest.Fit(xTrain, yTrain, forest.Params{
		NEstimators:    p.NEstimators,
		MaxDepth:       p.MaxDepth,
		MinSamplesLeaf: p.MinSamplesLeaf,
		Seed:           p.RandomState,
		Workers:        m.cfg.Workers,
	})
	if err != nil {
		return models.TrainingMetrics{}, fmt.Errorf("fit forest: %w", err)
	}

	predTrain := f.PredictBatch(xTrain)
	predTest := f.PredictBatch(xTest)

	residStd := rootMeanSquare(predTrain, yTrain)
	if len(yTest) >= 2 {
		residStd = rootMeanSquare(predTest, yTest)
	}

	importance := make(map[string]float64, len(models.FeatureColumns))
	for i, col := range models.FeatureColumns {
		importance[col] = f.Importances[i]
	}

	trainedAt := m.now().UTC()
	metrics := models.TrainingMetrics{
		TrainR2:           rSquared(predTrain, yTrain),
		TestR2:            rSquared(predTest, yTest),
		FeatureImportance: importance,
		NTrainSamples:     len(trainIdx),
		NTestSamples:      len(testIdx),
		TrainDate:         trainedAt,
	}

	_, end := features.DateSpan(obs)
	b := &bundle{
		forest:  f,
		encoder: fs.Encoder,
		meta: models.ModelMetadata{
			BundleID:       uuid.NewString(),
			StartDate:      fs.Start,
			EndDate:        end,
			TrainDate:      trainedAt,
			FeatureColumns: slices.Clone(models.FeatureColumns),
			Grouping:       m.cfg.Grouping,
			Shops:          shopAliases(records, m.cfg.Grouping),
			NSamples:       len(fs.Rows),
			ResidualStd:    residStd,
			Params:         p,
			Metrics:        metrics,
		},
	}
	if err := save(ctx, store, b); err != nil {
		return models.TrainingMetrics{}, err
	}
	m.current.Store(b)

	m.log.Info("model trained",
		applogger.String("bundle_id", b.meta.BundleID),
		applogger.Int("n_train", metrics.NTrainSamples),
		applogger.Int("n_test", metrics.NTestSamples),
		applogger.String("start_date", util.FormatDate(b.meta.StartDate)),
		applogger.String("end_date", util.FormatDate(end)),
		applogger.Float64("residual_std", residStd),
	)
	return metrics, nil
}

// Predict returns one point per day in [target, target+days) for shop, in
// ascending date order. Values are raw estimator output and may be negative.
// Under "total" grouping an empty shop, "total" and every shop seen in the
// training records resolve to the aggregate series.
func (m *Model) Predict(_ context.Context, shop string, target time.Time, days int) ([]models.ForecastPoint, error) {
	b := m.current.Load()
	if b == nil {
		return nil, models.ErrModelNotTrained
	}
	if days < 1 {
		return nil, fmt.Errorf("%w: days must be >= 1, got %d", models.ErrInvalidHorizon, days)
	}
	if b.meta.Grouping == models.GroupingTotal {
		if shop != "" && shop != models.TotalShop {
			if _, ok := slices.BinarySearch(b.meta.Shops, shop); !ok {
				return nil, &models.UnknownCategoryError{Category: shop}
			}
		}
		shop = models.TotalShop
	} else if shop == "" {
		return nil, &models.UnknownCategoryError{Category: shop}
	}

	start := b.meta.StartDate
	fs, err := features.BuildFeatures(features.Horizon(shop, target, days), b.encoder, false, &start)
	if err != nil {
		return nil, err
	}

	residVar := b.meta.ResidualStd * b.meta.ResidualStd
	points := make([]models.ForecastPoint, 0, len(fs.Rows))
	for _, row := range fs.Rows {
		mean, treeVar := b.forest.PredictSpread(row.Vector())
		half := m.z * math.Sqrt(treeVar+residVar)
		points = append(points, models.ForecastPoint{
			Date:            row.Date,
			Shop:            row.Shop,
			PredictedAmount: mean,
			Lower:           mean - half,
			Upper:           mean + half,
		})
	}
	return points, nil
}

// save persists b as one unit.
func save(ctx context.Context, store repository.ModelStore, b *bundle) error {
	estimator, err := json.Marshal(b.forest)
	if err != nil {
		return fmt.Errorf("encode estimator: %w", err)
	}
	encoder, err := json.Marshal(b.encoder)
	if err != nil {
		return fmt.Errorf("encode encoder: %w", err)
	}
	meta, err := json.Marshal(b.meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	err = store.Save(ctx, repository.ArtifactBundle{
		ID:        b.meta.BundleID,
		Estimator: estimator,
		Encoder:   encoder,
		Metadata:  meta,
	})
	if err != nil {
		return fmt.Errorf("save model bundle: %w", err)
	}
	return nil
}

// Load restores the persisted bundle. It returns false without error when
// nothing has been saved yet.
func (m *Model) Load(ctx context.Context, store repository.ModelStore) (bool, error) {
	art, found, err := store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	b, err := decodeBundle(art)
	if err != nil {
		return false, err
	}
	m.current.Store(b)

	m.log.Info("model loaded",
		applogger.String("bundle_id", b.meta.BundleID),
		applogger.String("train_date", b.meta.TrainDate.Format(time.RFC3339)),
	)
	return true, nil
}

func decodeBundle(art repository.ArtifactBundle) (*bundle, error) {
	var f forest.Forest
	if err := json.Unmarshal(art.Estimator, &f); err != nil {
		return nil, fmt.Errorf("%w: estimator: %v", models.ErrCorruptBundle, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCorruptBundle, err)
	}

	var enc features.ShopEncoder
	if err := json.Unmarshal(art.Encoder, &enc); err != nil {
		return nil, fmt.Errorf("%w: encoder: %v", models.ErrCorruptBundle, err)
	}

	var meta models.ModelMetadata
	if err := json.Unmarshal(art.Metadata, &meta); err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", models.ErrCorruptBundle, err)
	}
	if !slices.Equal(meta.FeatureColumns, models.FeatureColumns) || f.NFeatures != len(meta.FeatureColumns) {
		return nil, fmt.Errorf("%w: feature columns %v do not match %v",
			models.ErrCorruptBundle, meta.FeatureColumns, models.FeatureColumns)
	}
	if meta.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: metadata has no start date", models.ErrCorruptBundle)
	}
	if meta.Grouping == "" {
		meta.Grouping = models.GroupingTotal
	}
	slices.Sort(meta.Shops)

	return &bundle{forest: &f, encoder: &enc, meta: meta}, nil
}

// shopAliases lists the distinct shop names folded into the "total" series,
// sorted for binary search. It is nil under "shop" grouping.
func shopAliases(records []models.SaleRecord, grouping string) []string {
	if grouping != models.GroupingTotal {
		return nil
	}
	seen := make(map[string]struct{})
	for _, r := range records {
		if r.Shop != "" {
			seen[r.Shop] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// splitIndexes shuffles 0..n-1 with seed and returns sorted train and test
// index sets. The test set takes ceil(n*testSize) rows but always leaves at
// least one training row.
func splitIndexes(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	nTest := int(math.Ceil(float64(n)*testSize - 1e-9))
	if nTest > n-1 {
		nTest = n - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	test = append([]int(nil), perm[:nTest]...)
	train = append([]int(nil), perm[nTest:]...)
	sort.Ints(test)
	sort.Ints(train)
	return train, test
}

func matrix(rows []models.FeatureRow, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = rows[j].Vector()
		y[i] = rows[j].Target
	}
	return x, y
}

// rSquared is nil when R² is undefined: fewer than two values or a
// constant target.
func rSquared(est, values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}
	if _, variance := stat.MeanVariance(values, nil); variance == 0 {
		return nil
	}
	r := stat.RSquaredFrom(est, values, nil)
	return &r
}

func rootMeanSquare(est, values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sq := make([]float64, len(values))
	for i := range values {
		d := values[i] - est[i]
		sq[i] = d * d
	}
	return math.Sqrt(stat.Mean(sq, nil))
}
