// Package main is the entry point for the retail ledger background worker.
// It reconciles account balances against the transaction log and purges
// expired idempotency keys.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"retailledger/internal/app"
	"retailledger/internal/config"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/infrastructure/storage/postgres"
	"retailledger/pkg/logger"
)

// jobTimeout bounds a single reconcile or cleanup run.
const jobTimeout = 2 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting retail ledger worker", "storage", cfg.Storage.Driver)

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to build services", "error", err)
	}
	defer services.Close()

	w := NewWorker(services, cfg.Worker, log)
	if err := w.Run(ctx); err != nil {
		log.Errorw("worker failed", "error", err)
	}
	log.Info("worker stopped")
}

// Worker runs the periodic maintenance jobs.
type Worker struct {
	services *app.Services
	cfg      config.WorkerConfig
	log      *logger.Logger
}

func NewWorker(services *app.Services, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	return &Worker{
		services: services,
		cfg:      cfg,
		log:      log.WithComponent("worker"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ctx = appctx.WithActor(ctx, &appctx.Actor{UserID: "system:worker", Role: appctx.RoleAdmin})
	ctx = logger.WithLogger(ctx, w.log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w.every(ctx, w.cfg.ReconcileInterval, w.reconcile)
		return nil
	})
	if w.services.KeyCleaner != nil {
		g.Go(func() error {
			w.every(ctx, w.cfg.IdempotencyCleanup, w.cleanupIdempotency)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() { job(appctx.WithTrace(ctx, appctx.NewTraceContext())) }
	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}

func (w *Worker) reconcile(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	divergences, err := w.services.Ledger.Reconcile(ctx)
	if err != nil {
		w.log.Errorw("reconcile failed", "error", err)
		return
	}
	if len(divergences) > 0 {
		logger.Warn(ctx, "balance divergences found", "count", len(divergences))
	} else {
		logger.Debug(ctx, "balances consistent")
	}
	if w.services.Pool != nil {
		postgres.LogPoolStats(ctx, w.services.Pool.Unwrap())
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	n, err := w.services.KeyCleaner.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
