package di

import (
	"context"
	"path/filepath"
	"testing"

	internalrepo "SalesPulse/internal/repository"
	"SalesPulse/pkg/cache"
	"SalesPulse/pkg/config"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Model.StorePath = t.TempDir()
	cfg.History.SQLitePath = filepath.Join(cfg.Model.StorePath, "history", "runs.db")
	return cfg
}

func TestProvideDisabledBackends(t *testing.T) {
	cfg := testConfig(t)

	producer, err := ProvideKafkaProducer(cfg)
	require.NoError(t, err)
	assert.Nil(t, producer)
	assert.IsType(t, internalrepo.NopEventPublisher{}, ProvideEventPublisher(cfg, producer))

	pg, err := ProvidePostgresClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, pg)

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)

	c, err := ProvideCache(cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.IsType(t, &cache.MemoryCache{}, c)

	cfg.Metrics.Enabled = false
	assert.IsType(t, metrics.Nop{}, ProvideMetrics(cfg))
}

func TestProvideSalesSourceHTTP(t *testing.T) {
	cfg := testConfig(t)
	src, err := ProvideSalesSource(cfg, ProvideHTTPClient(cfg), nil, metrics.Nop{}, applogger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "http", src.Name())

	cfg.Source.Type = "postgres"
	_, err = ProvideSalesSource(cfg, ProvideHTTPClient(cfg), nil, metrics.Nop{}, applogger.NewNop())
	assert.Error(t, err)
}

func TestProvideRunStore(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.NewNop()

	store, err := ProvideRunStore(cfg, nil, l)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &internalrepo.SQLiteRunStore{}, store)
	assert.FileExists(t, cfg.History.SQLitePath)

	runs, err := store.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)

	cfg.History.Backend = "none"
	store, err = ProvideRunStore(cfg, nil, l)
	require.NoError(t, err)
	assert.IsType(t, internalrepo.NopRunStore{}, store)

	cfg.History.Backend = "clickhouse"
	_, err = ProvideRunStore(cfg, nil, l)
	assert.Error(t, err)
}

func TestProvideForecastServiceStartsUntrained(t *testing.T) {
	cfg := testConfig(t)
	l := applogger.NewNop()

	src, err := ProvideSalesSource(cfg, ProvideHTTPClient(cfg), nil, metrics.Nop{}, l)
	require.NoError(t, err)
	c, err := ProvideCache(cfg)
	require.NoError(t, err)
	defer c.Close()

	svc := ProvideForecastService(cfg, src, ProvideForecaster(cfg, l), ProvideModelStore(cfg, l),
		internalrepo.NopRunStore{}, internalrepo.NopEventPublisher{}, c, metrics.Nop{}, l)
	require.NoError(t, svc.Warmup(context.Background()))

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.ModelTrained)
	assert.False(t, st.Loaded)
}

func TestTrainDefaultsFollowConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Model.NEstimators = 250
	cfg.Model.TestSize = 0

	req := TrainDefaults(cfg)
	assert.Equal(t, 250, req.NEstimators)
	assert.Equal(t, cfg.Model.MaxDepth, req.MaxDepth)
	assert.Zero(t, req.TestSize)
	assert.Equal(t, cfg.Model.RandomState, req.RandomState)
}
