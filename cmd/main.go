package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/tally/internal/adapters/http/api"
	"github.com/okian/tally/internal/adapters/http/swagger"
	"github.com/okian/tally/internal/adapters/http/ws"
	"github.com/okian/tally/internal/adapters/mq/redispub"
	workerpool "github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/adapters/repository/postgres"
	"github.com/okian/tally/internal/adapters/repository/sqlite"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/seed"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
	"github.com/okian/tally/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	serviceName               = "tally"
)

func main() {
	// Custom system metrics replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := run(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run() error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.InitWith(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	shutdownTracing, err := tracing.Setup(ctx, serviceName, cfg.OTelEndpoint, cfg.OTelSampleRatio)
	if err != nil {
		log.Warn(ctx, "tracing disabled", logger.Error(err))
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	if cfg.SeedFile != "" {
		if err := applySeed(ctx, store, cfg.SeedFile, log); err != nil {
			_ = store.Close()
			return err
		}
	}

	hub := ws.NewHub(ws.WithLogger(log.Named("ws")))
	sinks, closeSinks := buildSinks(ctx, cfg, hub, log)

	svc := service.New(
		service.WithStore(store),
		service.WithSinks(sinks...),
		service.WithLogger(log.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.EventQueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("failed to start service: %w", err)
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)

	apiServer := api.NewServer(svc, hub,
		api.WithJWTSecret(cfg.JWTSecret),
		api.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithDefaultCeremonyLimit(cfg.CeremonyLimit),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error(ctx, "HTTP server failed", logger.Error(err))
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	_ = hub.Close()
	if err := svc.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "service shutdown failed", logger.Error(err))
	}
	if err := closeSinks(); err != nil {
		log.Warn(ctx, "closing sinks failed", logger.Error(err))
	}
	if err := store.Close(); err != nil {
		log.Warn(ctx, "closing store failed", logger.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore opens the configured relational backend.
func openStore(cfg *config.Config) (repository.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		return postgres.Open(cfg.PostgresDSN)
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	}
	return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.StorageDriver)
}

// applySeed loads path and writes its records into store.
func applySeed(ctx context.Context, store seed.Store, path string, log logger.Logger) error {
	f, err := seed.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load seed: %w", err)
	}
	res, err := seed.Apply(ctx, store, f, time.Now())
	if err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	log.Info(ctx, "seed applied",
		logger.String("file", path),
		logger.Int("created", res.Created),
		logger.Int("existing", res.Existing),
	)
	return nil
}

// buildSinks returns the notification sinks and a func releasing them.
// Redis is optional: an unreachable server is logged and skipped.
func buildSinks(ctx context.Context, cfg *config.Config, hub *ws.Hub, log logger.Logger) ([]workerpool.Sink, func() error) {
	sinks := []workerpool.Sink{hub}
	if cfg.RedisAddr == "" {
		return sinks, func() error { return nil }
	}

	pub := redispub.Dial(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, redispub.WithPrefix(cfg.RedisPrefix))
	if err := pub.Ping(ctx); err != nil {
		log.Warn(ctx, "redis unavailable; notifications stay local",
			logger.String("addr", cfg.RedisAddr), logger.Error(err))
		_ = pub.Close()
		return sinks, func() error { return nil }
	}
	return append(sinks, pub), pub.Close
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.GetStats(ctx)

	queueSize, _ := stats["queueSize"].(int)
	if queueSize > 0 {
		metrics.UpdateQueueCapacity(queueSize)
	}
	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
		if queueSize > 0 {
			metrics.UpdateQueueUtilization(float64(queueLen) / float64(queueSize))
		}
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}
