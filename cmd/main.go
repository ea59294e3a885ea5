package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wordfall/leaderboard/internal/adapters/http/api"
	"github.com/wordfall/leaderboard/internal/adapters/store"
	app "github.com/wordfall/leaderboard/internal/app"
	"github.com/wordfall/leaderboard/internal/config"
	"github.com/wordfall/leaderboard/internal/domain/ratelimit"
	"github.com/wordfall/leaderboard/internal/reconciler"
	"github.com/wordfall/leaderboard/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			os.Stderr.WriteString("failed to sync logger: " + err.Error() + "\n")
		}
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	st, err := newStore(ctx, cfg)
	if err != nil {
		log.Error(ctx, "failed to open store", logger.Error(err))
		return
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error(context.Background(), "store close failed", logger.Error(err))
		}
	}()

	pub, err := reconciler.NewPublisher(cfg.DataDir)
	if err != nil {
		log.Error(ctx, "failed to prepare data dir", logger.Error(err))
		return
	}

	svc := app.New(
		app.WithLogger(log),
		app.WithStore(st),
		app.WithPublisher(pub),
		app.WithDedupeSize(cfg.AdvisoryCacheSize),
		app.WithPolicies(policies(cfg)),
	)
	if err := svc.Start(ctx); err != nil {
		log.Error(ctx, "failed to start service", logger.Error(err))
		return
	}
	defer svc.Stop()

	rec := reconciler.New(st, pub,
		reconciler.WithLogger(logger.Named("reconciler")),
		reconciler.WithVerifyWorkers(cfg.VerifyWorkers),
		reconciler.WithMaxScores(cfg.MaxScores),
		reconciler.WithTopDefault(cfg.TopDefault),
		reconciler.WithFlagThreshold(cfg.FlagThreshold),
	)
	go runReconcileLoop(ctx, rec, cfg)

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc, svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// newStore opens the configured queue store backend.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.StoreBackend == "redis" {
		return store.NewRedisStore(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	}
	return store.NewMemStore(), nil
}

// policies maps configured rate limits onto limiter policies by action.
func policies(cfg *config.Config) map[string]ratelimit.Policy {
	return map[string]ratelimit.Policy{
		"score":         {Limit: cfg.ScoreLimit.Limit, Window: cfg.ScoreLimit.Window()},
		"vote":          {Limit: cfg.VoteLimit.Limit, Window: cfg.VoteLimit.Window()},
		"feedback":      {Limit: cfg.FeedbackLimit.Limit, Window: cfg.FeedbackLimit.Window()},
		"feedback_vote": {Limit: cfg.FeedbackVoteLimit.Limit, Window: cfg.FeedbackVoteLimit.Window()},
	}
}

// runReconcileLoop triggers reconciliation passes on the configured
// cadence until the context is canceled.
func runReconcileLoop(ctx context.Context, rec *reconciler.Reconciler, cfg *config.Config) {
	log := logger.Named("reconcile-loop")

	if cfg.ReconcileOnStart {
		if err := rec.Run(ctx); err != nil {
			log.Error(ctx, "initial pass failed", logger.Error(err))
		}
	}

	ticker := time.NewTicker(cfg.ReconcileInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := rec.Run(ctx); err != nil && !errors.Is(err, reconciler.ErrPassInProgress) {
				log.Error(ctx, "pass failed", logger.Error(err))
			}
		}
	}
}
