package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"
	"SalesPulse/internal/domain/service"
	"SalesPulse/pkg/cache"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	forecastCachePrefix = "forecast"
	trainLockKey        = "train:lock"
	maxHorizonDays      = 90
)

// ForecastConfig tunes the service guardrails.
type ForecastConfig struct {
	ForecastTTL    time.Duration
	TrainLockTTL   time.Duration
	MinSamplesLeaf int
}

// PredictParams are the inputs of one forecast request.
type PredictParams struct {
	Days  int
	Shop  string
	Start *time.Time // nil means the day after the last trained date
}

// ForecastService orchestrates fetch, train, persist and predict.
type ForecastService struct {
	source  domrepo.SalesSource
	model   service.Forecaster
	store   domrepo.ModelStore
	runs    domrepo.RunStore
	events  domrepo.EventPublisher
	cache   cache.Service
	metrics domrepo.Metrics
	l       *applogger.Logger
	cfg     ForecastConfig

	loadMu sync.Mutex
	now    func() time.Time
}

func NewForecastService(
	source domrepo.SalesSource,
	model service.Forecaster,
	store domrepo.ModelStore,
	runs domrepo.RunStore,
	events domrepo.EventPublisher,
	c cache.Service,
	m domrepo.Metrics,
	l *applogger.Logger,
	cfg ForecastConfig,
) *ForecastService {
	if cfg.ForecastTTL <= 0 {
		cfg.ForecastTTL = 10 * time.Minute
	}
	if cfg.TrainLockTTL <= 0 {
		cfg.TrainLockTTL = 15 * time.Minute
	}
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &ForecastService{
		source:  source,
		model:   model,
		store:   store,
		runs:    runs,
		events:  events,
		cache:   c,
		metrics: m,
		l:       l,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Warmup loads the persisted bundle once. A missing bundle only logs.
func (s *ForecastService) Warmup(ctx context.Context) error {
	found, err := s.model.Load(ctx, s.store)
	if err != nil {
		return fmt.Errorf("load model bundle: %w", err)
	}
	if !found {
		s.l.Warn("no persisted model, service starts untrained", applogger.String("path", s.store.Path()))
		return nil
	}
	if meta, ok := s.model.Metadata(); ok {
		s.metrics.SetModel(meta.NSamples, meta.TrainDate)
	}
	return nil
}

// Train fetches the whole sales ledger, fits a new model and makes it live.
// Only one training runs at a time across every replica sharing the cache.
func (s *ForecastService) Train(ctx context.Context, req models.TrainRequest) (*models.TrainResponse, error) {
	locked, err := s.cache.TryLock(ctx, trainLockKey, s.cfg.TrainLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire training lock: %w", err)
	}
	if !locked {
		return nil, models.ErrTrainingInProgress
	}
	defer func() {
		if err := s.cache.Unlock(context.Background(), trainLockKey); err != nil {
			s.l.Warn("release training lock", applogger.Error(err))
		}
	}()

	started := s.now()
	resp, err := s.train(ctx, req, started)
	s.metrics.RecordLatency("train", time.Since(started))
	if err != nil {
		s.metrics.RecordTraining("failure")
		return nil, err
	}
	s.metrics.RecordTraining("success")
	return resp, nil
}

func (s *ForecastService) train(ctx context.Context, req models.TrainRequest, started time.Time) (*models.TrainResponse, error) {
	records, err := s.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, models.ErrInsufficientData
	}
	s.l.Info("sales fetched for training",
		applogger.String("source", s.source.Name()),
		applogger.Int("records", len(records)),
	)

	params := models.TrainParams{
		NEstimators:    req.NEstimators,
		MaxDepth:       req.MaxDepth,
		MinSamplesLeaf: s.cfg.MinSamplesLeaf,
		TestSize:       req.TestSize,
		RandomState:    req.RandomState,
	}
	metrics, err := s.model.Train(ctx, records, params, s.store)
	if err != nil {
		return nil, err
	}
	meta, _ := s.model.Metadata()
	s.metrics.SetModel(meta.NSamples, meta.TrainDate)

	if err := s.cache.DeleteByPattern(ctx, cache.BuildPattern(forecastCachePrefix)); err != nil {
		s.l.Warn("invalidate forecast cache", applogger.Error(err))
	}

	run := models.TrainingRun{
		ID:          uuid.NewString(),
		BundleID:    meta.BundleID,
		StartedAt:   started.UTC(),
		FinishedAt:  s.now().UTC(),
		Records:     len(records),
		Samples:     meta.NSamples,
		DateStart:   meta.StartDate,
		DateEnd:     meta.EndDate,
		TrainR2:     metrics.TrainR2,
		TestR2:      metrics.TestR2,
		NEstimators: params.NEstimators,
		MaxDepth:    params.MaxDepth,
	}
	if err := s.runs.Record(ctx, run); err != nil {
		s.l.Warn("record training run", applogger.String("bundle_id", meta.BundleID), applogger.Error(err))
	}

	ev := models.ModelTrainedEvent{
		BundleID:  meta.BundleID,
		Samples:   meta.NSamples,
		StartDate: util.FormatDate(meta.StartDate),
		EndDate:   util.FormatDate(meta.EndDate),
		TrainR2:   metrics.TrainR2,
		TestR2:    metrics.TestR2,
		TrainedAt: meta.TrainDate,
	}
	if err := s.events.PublishModelTrained(ctx, ev); err != nil {
		s.l.Warn("publish model.trained", applogger.String("bundle_id", meta.BundleID), applogger.Error(err))
	}

	return &models.TrainResponse{
		Message:         "Model trained successfully",
		BundleID:        meta.BundleID,
		TrainingSamples: meta.NSamples,
		Records:         len(records),
		DateRange: models.DateRange{
			Start: util.FormatDate(meta.StartDate),
			End:   util.FormatDate(meta.EndDate),
		},
		Metrics: metrics,
	}, nil
}

// Predict serves a clipped, rounded forecast, loading the persisted bundle
// on first use.
func (s *ForecastService) Predict(ctx context.Context, p PredictParams) (*models.ForecastResponse, error) {
	start := s.now()
	resp, cached, err := s.predict(ctx, p)
	s.metrics.RecordLatency("predict", time.Since(start))
	if err != nil {
		s.metrics.RecordPrediction("failure", false)
		return nil, err
	}
	s.metrics.RecordPrediction("success", cached)
	return resp, nil
}

func (s *ForecastService) predict(ctx context.Context, p PredictParams) (*models.ForecastResponse, bool, error) {
	if p.Days < 1 || p.Days > maxHorizonDays {
		return nil, false, fmt.Errorf("%w: days must be between 1 and %d, got %d", models.ErrInvalidHorizon, maxHorizonDays, p.Days)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, false, err
	}
	meta, ok := s.model.Metadata()
	if !ok {
		return nil, false, models.ErrModelNotTrained
	}

	target := util.AddDays(meta.EndDate, 1)
	if p.Start != nil {
		target = util.TruncateDay(*p.Start)
	}
	shop := p.Shop
	if shop == "" && meta.Grouping == models.GroupingTotal {
		shop = models.TotalShop
	}

	key := cache.GenerateKey(forecastCachePrefix, meta.BundleID, shop, util.FormatDate(target), p.Days)
	var hit models.ForecastResponse
	if err := s.cache.Get(ctx, key, &hit); err == nil {
		return &hit, true, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.l.Warn("forecast cache read", applogger.String("key", key), applogger.Error(err))
	}

	points, err := s.model.Predict(ctx, shop, target, p.Days)
	if err != nil {
		return nil, false, err
	}

	resp := &models.ForecastResponse{
		ForecastDates:  make([]string, len(points)),
		ForecastValues: make([]float64, len(points)),
		LowerBound:     make([]float64, len(points)),
		UpperBound:     make([]float64, len(points)),
		ModelTrained:   true,
		Shop:           shop,
		BundleID:       meta.BundleID,
	}
	for i, pt := range points {
		resp.ForecastDates[i] = util.FormatDate(pt.Date)
		resp.ForecastValues[i] = clipRound(pt.PredictedAmount)
		resp.LowerBound[i] = clipRound(pt.Lower)
		resp.UpperBound[i] = clipRound(pt.Upper)
	}

	if err := s.cache.Set(ctx, key, resp, s.cfg.ForecastTTL); err != nil {
		s.l.Warn("forecast cache write", applogger.String("key", key), applogger.Error(err))
	}
	return resp, false, nil
}

func (s *ForecastService) ensureLoaded(ctx context.Context) error {
	if s.model.Trained() {
		return nil
	}
	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if s.model.Trained() {
		return nil
	}
	found, err := s.model.Load(ctx, s.store)
	if err != nil {
		return fmt.Errorf("load model bundle: %w", err)
	}
	if !found {
		return models.ErrModelNotTrained
	}
	return nil
}

// Status reports the persisted bundle as found on disk.
func (s *ForecastService) Status(ctx context.Context) (*models.ModelStatus, error) {
	st, err := s.store.Stat(ctx)
	if err != nil {
		return nil, err
	}
	out := &models.ModelStatus{
		ModelTrained: st.Exists,
		ModelPath:    st.Path,
		Loaded:       s.model.Trained(),
	}
	if st.Exists {
		out.BundleID = st.BundleID
		out.ModelSizeMB = round2(float64(st.SizeBytes) / (1024 * 1024))
	}
	return out, nil
}

// Runs lists recent trainings, newest first.
func (s *ForecastService) Runs(ctx context.Context, limit int) (*models.RunsResponse, error) {
	runs, err := s.runs.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list training runs: %w", err)
	}
	if runs == nil {
		runs = []models.TrainingRun{}
	}
	return &models.RunsResponse{Runs: runs}, nil
}

func clipRound(v float64) float64 {
	return round2(math.Max(0, v))
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
