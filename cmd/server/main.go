package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callguard/callguard/internal/handlers"
	"github.com/callguard/callguard/internal/infrastructure/cache"
	"github.com/callguard/callguard/internal/infrastructure/config"
	"github.com/callguard/callguard/internal/infrastructure/logging"
	"github.com/callguard/callguard/internal/infrastructure/metrics"
	"github.com/callguard/callguard/internal/interceptor"
	"github.com/callguard/callguard/internal/repositories/sqlite"
	"github.com/callguard/callguard/internal/repositories/yamlfile"
	"github.com/callguard/callguard/internal/services"
	"github.com/callguard/callguard/internal/services/authorization"
)

const defaultEnv = "dev"

func main() {
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Repositories
	configRepo := yamlfile.NewConfigRepository(cfg.Storage.AccessConfigPath)
	denyLog, err := sqlite.NewDenyLogRepository(cfg.Storage.DenyLogPath)
	if err != nil {
		log.Fatalf("Failed to open deny log: %v", err)
	}
	defer denyLog.Close()

	// Metrics
	exporter, metricsHandler := metrics.NewExporter()

	// Services
	templates, err := authorization.NewCELEvaluator()
	if err != nil {
		log.Fatalf("Failed to create template evaluator: %v", err)
	}

	snapshots := cache.NewSnapshotManager()
	policy := services.NewPolicyService(configRepo, snapshots, templates, exporter, logger)
	if _, err := policy.Load(context.Background()); err != nil {
		log.Fatalf("Failed to load permission configuration: %v", err)
	}

	reports := services.NewDenyReportService(denyLog, nil, nil, logger)
	resolver := authorization.NewResolver(templates, exporter)
	chains := authorization.NewChainTracker(cfg.Chain.TTL)
	decider := authorization.NewDecider(snapshots, resolver, chains, reports)
	hook := interceptor.NewHook(decider, exporter)

	// Background chain sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go chains.Run(sweepCtx, cfg.Chain.SweepInterval)
	go func() {
		ticker := time.NewTicker(cfg.Chain.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				exporter.SetActiveChains(chains.Len())
			}
		}
	}()

	// Admin API
	handler := handlers.NewHandler(policy, snapshots, reports, templates, chains, hook, logger)
	rateLimiter := handlers.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	router := handlers.NewRouter(handler, rateLimiter, metricsHandler)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		log.Fatalf("Admin server error: %v", err)
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
