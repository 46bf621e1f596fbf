package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"subscription-tracker/internal/config"
	pg "subscription-tracker/internal/infra/db/postgres"
	"subscription-tracker/internal/infra/logging"
	"subscription-tracker/internal/infra/metrics"
	red "subscription-tracker/internal/infra/redis"
	"subscription-tracker/internal/infra/sched"
	"subscription-tracker/internal/infra/web"
	"subscription-tracker/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode (console logs, relaxed validation)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting subscription tracker")

	// ---- Metrics ----
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	entStore := pg.NewEntitlementStore(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Use cases ----
	ents := usecase.NewEntitlements(entStore, usecase.EntitlementTTLs{
		Plan:         cfg.Cache.PlanTTL,
		Quota:        cfg.Cache.QuotaTTL,
		FetchTimeout: cfg.Cache.FetchTimeout,
	}, logger)
	quotaUC := usecase.NewQuotaUseCase(ents, entStore, logger)
	permUC := usecase.NewPermissionUseCase(ents, quotaUC, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, permUC, quotaUC, logger)
	renewalUC := usecase.NewRenewalUseCase(subRepo, logger)
	statsUC := usecase.NewStatsUseCase(subRepo, logger)

	// ---- Web server ----
	auth := web.NewAuthManager(cfg.API.JWTSecret, cfg.API.AdminKey, 30*time.Minute)
	server := web.NewServer(quotaUC, permUC, subUC, renewalUC, statsUC, ents, auth, rateLimiter, cfg.API.RateLimit, logger)
	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.API.Port),
		Handler: server.Routes(),
	}

	// ---- Renewal worker ----
	worker := sched.NewRenewalWorker(cfg.Renewal.Interval, cfg.Renewal.BatchLimit, cfg.Renewal.LockTTL, renewalUC, locker, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Int("port", cfg.API.Port).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := worker.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		// pool stats gauge, refreshed on the renewal cadence floor
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
		return
	}
	logger.Info().Msg("shutdown complete")
}
