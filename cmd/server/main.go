package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/costcoplus/offline-relay/internal/api"
	"github.com/costcoplus/offline-relay/internal/config"
	"github.com/costcoplus/offline-relay/internal/connectivity"
	"github.com/costcoplus/offline-relay/internal/db"
	"github.com/costcoplus/offline-relay/internal/metrics"
	"github.com/costcoplus/offline-relay/internal/provider"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/ratelimiter"
	"github.com/costcoplus/offline-relay/internal/service"
	"github.com/costcoplus/offline-relay/internal/storage"
	"github.com/costcoplus/offline-relay/internal/worker"
)

func main() {
	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger, _ := zap.NewProduction()
	if cfg.IsDevelopment() {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync() //nolint:errcheck

	// ---- queue storage ----
	ctx := context.Background()
	kv, closeKV, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open queue storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeKV()

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New(kv, cfg.QueueKey, m.QueueHooks())
	exec := provider.NewHTTPExecutor(cfg.APIBaseURL, cfg.APITimeout)
	limiter := ratelimiter.New(cfg.OutboundRateLimit)
	probe := connectivity.NewHTTPProbe(cfg.APIBaseURL, cfg.ProbePath, cfg.ProbeInterval, cfg.APITimeout, logger)

	drainer := worker.NewDrainer(q, exec, worker.DrainerConfig{
		Limiter:     limiter,
		Online:      probe.IsOnline,
		MinInterval: cfg.DrainMinInterval,
	}, logger, m.WorkerHooks())
	svc := service.NewMutationService(q, exec, drainer, probe.CachedOnline, logger)

	if n, err := q.Len(ctx); err != nil {
		logger.Error("failed to read offline queue at startup", zap.Error(err))
	} else {
		logger.Info("offline queue loaded", zap.Int("pending", n))
	}

	// ---- background workers ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(workerCtx)
		}()
	}

	dispose := drainer.Watch(probe)
	defer dispose()
	run(drainer.Run)
	run(probe.Run)

	if cfg.DrainSchedule != "" {
		sched, err := worker.NewScheduler(cfg.DrainSchedule, drainer, logger)
		if err != nil {
			logger.Fatal("invalid drain schedule", zap.Error(err))
		}
		run(sched.Run)
	}

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Service: svc,
		Queue:   q,
		Drainer: drainer,
		Probe:   probe,
		Metrics: reg,
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Stop the probe, scheduler and drainer. A cycle in flight stops
	// between records; anything unsent stays queued for the next start.
	cancelWorkers()
	wg.Wait()

	logger.Info("server stopped cleanly")
}

// openStorage returns the key-value backend named by STORAGE_DRIVER and a
// function releasing it.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.KV, func(), error) {
	noop := func() {}

	switch cfg.StorageDriver {
	case config.DriverMemory:
		logger.Warn("memory storage selected, queued mutations will not survive a restart")
		return storage.NewMemory(), noop, nil

	case config.DriverSQLite:
		s, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil

	case config.DriverRedis:
		r, err := storage.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, noop, err
		}
		return r, func() { _ = r.Close() }, nil

	case config.DriverPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		if err := db.Migrate(cfg.DatabaseURL, "migrations"); err != nil {
			pool.Close()
			return nil, noop, err
		}
		logger.Info("database migrations applied")
		return storage.NewPostgres(pool), pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}
