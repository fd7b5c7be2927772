package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SalesPulse/internal/domain/repository"
	endpointmetrics "SalesPulse/internal/service/metrics"
	"SalesPulse/internal/usecase"
	"SalesPulse/pkg/cache"
	pkgch "SalesPulse/pkg/clickhouse"
	"SalesPulse/pkg/config"
	xhttp "SalesPulse/pkg/http"
	applogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/postgres"

	"github.com/prometheus/client_golang/prometheus"
)

// Resources are the infrastructure handles the App closes on shutdown.
// Postgres and CH are nil when their backend is not configured.
type Resources struct {
	Cache    cache.Service
	Runs     repository.RunStore
	Events   repository.EventPublisher
	Postgres *postgres.Client
	CH       *pkgch.Client
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	l           *applogger.Logger
	svc         *usecase.ForecastService
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
	res         Resources
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.ForecastService,
	handler xhttp.Handler,
	res Resources,
) *App {
	return &App{
		cfg:         cfg,
		l:           l,
		svc:         svc,
		httpHandler: handler,
		res:         res,
	}
}

// Service exposes the forecast use case to one-shot CLI commands.
func (a *App) Service() *usecase.ForecastService { return a.svc }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Run loads the persisted model, starts the HTTP server and blocks until
// SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.svc.Warmup(ctx); err != nil {
		// A corrupt bundle must not keep the API down; /train replaces it.
		a.l.Error("model warmup failed", applogger.Error(err))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		endpointmetrics.Register(prometheus.DefaultRegisterer)
		metricsPath = a.cfg.Metrics.Path
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(a.cfg.Server.SlowThreshold),
		xhttp.WithCORS(a.cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(a.l),
	)

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("salespulse started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("source", a.cfg.Source.Type),
		applogger.String("history", a.cfg.History.Backend),
		applogger.Bool("redis", a.cfg.Redis.Enabled),
		applogger.Bool("kafka", a.cfg.Kafka.Enabled),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.Shutdown(ctx)
}

// Shutdown stops the HTTP server and closes every infrastructure client.
// It is also used by CLI commands that never started the server.
func (a *App) Shutdown(ctx context.Context) error {
	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Flush aggregated logs before the producer behind them goes away.
	a.l.RemoveCollector()

	if a.res.Events != nil {
		if err := a.res.Events.Close(); err != nil {
			a.l.Warn("event publisher close error", applogger.Error(err))
		}
	}
	if a.res.Runs != nil {
		if err := a.res.Runs.Close(); err != nil {
			a.l.Warn("run store close error", applogger.Error(err))
		}
	}
	if a.res.Cache != nil {
		if err := a.res.Cache.Close(); err != nil {
			a.l.Warn("cache close error", applogger.Error(err))
		}
	}
	if a.res.CH != nil {
		if err := a.res.CH.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
	if a.res.Postgres != nil {
		if err := a.res.Postgres.Close(); err != nil {
			a.l.Warn("postgres close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
