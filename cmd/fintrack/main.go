package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/core"
	apphttp "fintrack/internal/http"
	"fintrack/internal/identity"
	"fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(boot)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("fintrack stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("fintrack stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	res, err := cli.BuildBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	statsCache := cache.NewLRUCache[core.AggregateResult](cfg.StatsCacheSize, cfg.StatsCacheTTL)
	caches := cache.NewManager()
	caches.Register("statistics", statsCache)

	stats := services.NewStatsService(res.Backend, statsCache)
	txs := services.NewTransactionService(res.Backend, stats)

	var ready apphttp.Pinger
	if p, ok := res.Backend.(backend.Pinger); ok {
		ready = p
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Stats:        stats,
		Transactions: txs,
		Resolver:     identity.NewResolver(cfg.JWTSecret),
		Ready:        ready,
		RateLimit:    cfg.RateLimit,
		RecentWindow: cfg.RecentWindow,
		Logger:       logger,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, cfg.ShutdownTimeout) })
	g.Go(func() error { return caches.Run(gctx, cfg.CacheSweepInterval) })

	if res.Feed != nil {
		sub := worker.NewSnapshotSubscriber(res.Feed, stats, cfg.RecentWindow)
		g.Go(func() error { return sub.Run(gctx) })
	} else {
		logger.Info("Backend has no change feed; statistics refresh on writes and cache expiry",
			"backend", cfg.DataBackend)
	}
	for _, r := range res.Runners {
		g.Go(func() error { return r.Run(gctx) })
	}

	logger.Info("Starting fintrack",
		"port", cfg.Port, "backend", cfg.DataBackend, "jwt", cfg.JWTSecret != "", "sheets_mirror", cfg.SheetsMirror)
	return g.Wait()
}
