// Package app assembles the engines on top of the configured storage backend.
// The server, the worker and the HTTP tests share this wiring.
package app

import (
	"context"
	"fmt"
	"time"

	"retailledger/internal/config"
	"retailledger/internal/core/numerator"
	"retailledger/internal/core/security"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/audit"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/domain/restock"
	"retailledger/internal/domain/settlement"
	"retailledger/internal/infrastructure/cache"
	"retailledger/internal/infrastructure/storage/memory"
	"retailledger/internal/infrastructure/storage/postgres"
	"retailledger/internal/infrastructure/storage/postgres/ledger_repo"
	"retailledger/internal/infrastructure/storage/postgres/restock_repo"
	"retailledger/internal/infrastructure/storage/postgres/sale_repo"
	pgnumerator "retailledger/pkg/numerator"
	"retailledger/pkg/logger"
)

// idempotencyPendingTTL bounds how long a crashed create can hold its key.
const idempotencyPendingTTL = time.Minute

// ReadinessChecker reports whether the storage backend can serve traffic.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ExpiredKeyCleaner purges idempotency keys whose replay window has passed.
type ExpiredKeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Services is the assembled application.
type Services struct {
	Ledger     *ledger.Service
	Restock    *restock.Service
	Settlement *settlement.Service

	// Readiness is nil for the in-memory backend.
	Readiness  ReadinessChecker
	// KeyCleaner is set when idempotency keys live in PostgreSQL.
	KeyCleaner ExpiredKeyCleaner
	// Pool is nil for the in-memory backend.
	Pool       *postgres.Pool
	Storage    string

	closers []func()
}

// Close releases pools and clients in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

type backend struct {
	txm        tx.Manager
	ledgerRepo ledger.Repository
	restock    interface {
		restock.Repository
		restock.MovementLog
	}
	sales     settlement.Repository
	numerator numerator.Generator
	idem      ledger.IdempotencyStore
	audit     audit.Recorder
}

// Build connects the configured storage driver and assembles the engines.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage, data is lost on restart")
		return NewMemory(cfg), nil
	case config.DriverPostgres:
		return newPostgres(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewMemory assembles the engines on a fresh in-memory store.
func NewMemory(cfg *config.Config) *Services {
	store := memory.New()
	idem := cache.NewInMemoryIdempotencyStore(idempotencyPendingTTL, cfg.Ledger.IdempotencyTTL)

	s := assemble(cfg, backend{
		txm:        memory.NewTxManager(store),
		ledgerRepo: memory.NewLedgerRepo(store),
		restock:    memory.NewRestockRepo(store),
		sales:      memory.NewSaleRepo(store),
		numerator:  memory.NewSequences(store),
		idem:       idem,
		audit:      memory.NewAuditLog(store),
	})
	s.Storage = config.DriverMemory
	s.closers = append(s.closers, func() { _ = idem.Close() })
	return s
}

func newPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Services, error) {
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.ApplicationName = cfg.App.Name
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	var closers []func()
	closers = append(closers, pool.Close)
	log.Infow("database connection established", "max_conns", poolCfg.MaxConns)

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Database.StatementTimeout
	txOpts.LockTimeout = cfg.Database.LockTimeout
	txm := postgres.NewTxManager(pool, txOpts)

	auditSvc, err := postgres.NewAuditService(txm, cfg.Ledger.AuditCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init audit: %w", err)
	}

	var (
		idem    ledger.IdempotencyStore
		cleaner ExpiredKeyCleaner
	)
	if cfg.Redis.Enabled {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			pool.Close()
			return nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		idem = cache.NewRedisIdempotencyStore(client, "", idempotencyPendingTTL, cfg.Ledger.IdempotencyTTL)
		log.Infow("idempotency keys stored in redis", "addr", cfg.Redis.Addr)
	} else {
		store := postgres.NewIdempotencyStore(txm, idempotencyPendingTTL, cfg.Ledger.IdempotencyTTL)
		idem, cleaner = store, store
	}

	restockRepo := restock_repo.New(txm)
	s := assemble(cfg, backend{
		txm:        txm,
		ledgerRepo: ledger_repo.New(txm),
		restock:    restockRepo,
		sales:      sale_repo.New(txm),
		numerator: pgnumerator.NewWithQuerierFunc(func(ctx context.Context) pgnumerator.Querier {
			return txm.GetQuerier(ctx)
		}),
		idem:  idem,
		audit: auditSvc,
	})
	s.Storage = config.DriverPostgres
	s.Readiness = pool
	s.Pool = pool
	s.KeyCleaner = cleaner
	s.closers = closers
	return s, nil
}

func assemble(cfg *config.Config, b backend) *Services {
	gate := security.NewGate()
	timeout := cfg.Ledger.OperationTimeout

	ledgerSvc := ledger.NewService(b.ledgerRepo, b.txm, gate, b.numerator, cfg.Ledger.EngineConfig(),
		ledger.WithIdempotencyStore(b.idem),
		ledger.WithAuditRecorder(b.audit),
	)

	restockSvc := restock.NewService(b.restock, b.restock, b.txm, gate, timeout)
	restockSvc.SetAuditRecorder(b.audit)

	return &Services{
		Ledger:     ledgerSvc,
		Restock:    restockSvc,
		Settlement: settlement.NewService(b.sales, ledgerSvc, b.txm, gate, b.numerator, timeout),
	}
}
