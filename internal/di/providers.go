package di

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"SalesPulse/internal/domain/models"
	"SalesPulse/internal/domain/repository"
	"SalesPulse/internal/domain/service"
	"SalesPulse/internal/handler/api"
	internalrepo "SalesPulse/internal/repository"
	"SalesPulse/internal/service/ratelimit"
	"SalesPulse/internal/services/forecast"
	"SalesPulse/internal/usecase"
	"SalesPulse/pkg/cache"
	pkgch "SalesPulse/pkg/clickhouse"
	"SalesPulse/pkg/config"
	pkghttp "SalesPulse/pkg/http"
	pkgkafka "SalesPulse/pkg/kafka"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/metrics"
	"SalesPulse/pkg/postgres"
	"SalesPulse/pkg/server"
)

const (
	serviceName = "salespulse"
	userAgent   = "salespulse/1.0"
	initTimeout = 10 * time.Second
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Error and warn entries are
// also aggregated onto Kafka when a collect topic is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: serviceName,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Log.CollectTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectInterval,
			CountThreshold: cfg.Log.CollectThreshold,
			Topic:          cfg.Log.CollectTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New()
}

// ProvideHTTPClient creates the outbound client used by the sales API source.
func ProvideHTTPClient(cfg *config.Config) *pkghttp.Client {
	return pkghttp.NewClient(
		pkghttp.WithTimeout(cfg.SalesAPI.Timeout),
		pkghttp.WithUserAgent(userAgent),
	)
}

// ProvidePostgresClient opens the sales database pool, or returns nil when
// sales come from the HTTP API.
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, error) {
	if cfg.Source.Type != "postgres" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	client, err := postgres.NewClient(ctx,
		postgres.WithURL(cfg.Postgres.URL),
		postgres.WithMaxConns(cfg.Postgres.MaxConns, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("postgres client: %w", err)
	}
	return client, nil
}

// ProvideSalesSource selects the sales ledger reader from source.type.
func ProvideSalesSource(
	cfg *config.Config,
	httpClient *pkghttp.Client,
	pg *postgres.Client,
	m repository.Metrics,
	l *applogger.Logger,
) (repository.SalesSource, error) {
	switch cfg.Source.Type {
	case "postgres":
		if pg == nil {
			return nil, fmt.Errorf("postgres source selected without a database client")
		}
		return internalrepo.NewPostgresSalesSource(pg.Pool(), cfg.Postgres.Table, cfg.Postgres.BatchSize, m, l), nil
	default:
		src, err := internalrepo.NewHTTPSalesSource(internalrepo.HTTPSourceConfig{
			BaseURL:  cfg.SalesAPI.BaseURL,
			Path:     cfg.SalesAPI.Path,
			PageSize: cfg.SalesAPI.PageSize,
			MaxPages: cfg.SalesAPI.MaxPages,
			RPS:      cfg.SalesAPI.RPS,
		}, httpClient, m, l)
		if err != nil {
			return nil, fmt.Errorf("sales api source: %w", err)
		}
		return src, nil
	}
}

// ProvideModelStore creates the on-disk artifact store.
func ProvideModelStore(cfg *config.Config, l *applogger.Logger) repository.ModelStore {
	return internalrepo.NewFileModelStore(cfg.Model.StorePath, cfg.Model.KeepBundles, l)
}

// ProvideClickHouseClient creates a ClickHouse client when it backs the
// training history, and nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.History.Backend != "clickhouse" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRunStore creates and initializes the training history store.
func ProvideRunStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (repository.RunStore, error) {
	var store repository.RunStore
	switch cfg.History.Backend {
	case "none":
		return internalrepo.NopRunStore{}, nil
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse history selected without a client")
		}
		store = internalrepo.NewCHRunStore(ch, cfg.ClickHouse.Database, l)
	default:
		if dir := filepath.Dir(cfg.History.SQLitePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create history dir: %w", err)
			}
		}
		s, err := internalrepo.NewSQLiteRunStore(cfg.History.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("history schema: %w", err)
	}
	return store, nil
}

// ProvideEventPublisher announces trained models on Kafka, or drops the
// events when Kafka is disabled.
func ProvideEventPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
}

// ProvideCache creates the forecast cache. With Redis enabled it is layered
// (memory L1, Redis L2) and the training lock is shared between replicas.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc, cfg.Cache.MemoryMaxSize), nil
}

// ProvideForecaster creates the untrained forecast model.
func ProvideForecaster(cfg *config.Config, l *applogger.Logger) service.Forecaster {
	return forecast.NewModel(forecast.Config{
		Grouping:      cfg.Model.Grouping,
		IntervalWidth: cfg.Model.IntervalWidth,
		MinDays:       cfg.Model.MinDays,
	}, l)
}

// ProvideForecastService creates the train/predict use case.
func ProvideForecastService(
	cfg *config.Config,
	source repository.SalesSource,
	model service.Forecaster,
	store repository.ModelStore,
	runs repository.RunStore,
	events repository.EventPublisher,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ForecastService {
	return usecase.NewForecastService(source, model, store, runs, events, c, m, l, usecase.ForecastConfig{
		ForecastTTL:    cfg.Cache.ForecastTTL,
		TrainLockTTL:   cfg.Cache.TrainLockTTL,
		MinSamplesLeaf: cfg.Model.MinSamplesLeaf,
	})
}

// ProvideRateLimiter limits POST /train per client address.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.TrainPerMinute, cfg.RateLimit.TrainBurst)
}

// ProvideHandler creates the forecast HTTP handler.
func ProvideHandler(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.ForecastService,
	rl *ratelimit.Limiter,
) *api.ForecastEchoHandler {
	return api.NewForecastEchoHandler(l, svc, rl, cfg.Server.RoutePrefix, TrainDefaults(cfg))
}

// TrainDefaults returns the configured model parameters that seed every
// training request, from HTTP or the CLI.
func TrainDefaults(cfg *config.Config) models.TrainRequest {
	return models.TrainRequest{
		NEstimators: cfg.Model.NEstimators,
		MaxDepth:    cfg.Model.MaxDepth,
		TestSize:    cfg.Model.TestSize,
		RandomState: cfg.Model.RandomState,
	}
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.ForecastService,
	handler *api.ForecastEchoHandler,
	c cache.Service,
	runs repository.RunStore,
	events repository.EventPublisher,
	pg *postgres.Client,
	ch *pkgch.Client,
) *server.App {
	return server.New(cfg, l, svc, handler, server.Resources{
		Cache:    c,
		Runs:     runs,
		Events:   events,
		Postgres: pg,
		CH:       ch,
	})
}
