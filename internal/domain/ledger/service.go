package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/numerator"
	"retailledger/internal/core/security"
	"retailledger/internal/core/tx"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/audit"
	"retailledger/pkg/logger"
)

var tracer = otel.Tracer("retailledger/ledger")

const entityTransaction = "credit_debit_transaction"

// Config tunes the engine.
type Config struct {
	// OperationTimeout bounds every mutating operation, lock waits included.
	OperationTimeout time.Duration
	Rules            Rules
	Numbering        numerator.Config
}

// DefaultConfig returns a 5s timeout, rejecting rules and CD-YYYY-NNNNN numbers.
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 5 * time.Second,
		Rules:            DefaultRules(),
		Numbering:        numerator.DefaultConfig("CD"),
	}
}

// Option customizes a Service.
type Option func(*Service)

// WithIdempotencyStore enables idempotent creates.
func WithIdempotencyStore(store IdempotencyStore) Option {
	return func(s *Service) { s.idem = store }
}

// WithAuditRecorder enables the post-commit audit trail.
func WithAuditRecorder(rec audit.Recorder) Option {
	return func(s *Service) { s.audit = rec }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service is the credit/debit engine. Every mutation locks the account row,
// checks the balance rules against the locked balance and writes the
// transaction together with the new balance in one database transaction.
type Service struct {
	repo      Repository
	txm       tx.Manager
	gate      *security.Gate
	numerator numerator.Generator
	idem      IdempotencyStore
	audit     audit.Recorder
	cfg       Config
	now       func() time.Time
}

// NewService creates the credit/debit engine.
func NewService(repo Repository, txm tx.Manager, gate *security.Gate, gen numerator.Generator, cfg Config, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		txm:       txm,
		gate:      gate,
		numerator: gen,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateAccount opens an account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, apperror.NewValidation("account name is required")
	}
	if err := in.Scope.Validate(); err != nil {
		return nil, err
	}
	if in.CreditLimit.IsNegative() {
		return nil, apperror.NewValidation("credit limit must not be negative")
	}
	if err := s.gate.AuthorizeWrite(ctx, in.Scope); err != nil {
		return nil, err
	}

	now := s.now()
	acc := &Account{
		ID:             id.New(),
		Name:           in.Name,
		Phone:          strings.TrimSpace(in.Phone),
		Scope:          in.Scope,
		CreditLimit:    types.RoundCents(in.CreditLimit),
		CurrentBalance: types.Zero(),
		Status:         AccountActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateAccount(ctx, acc); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}

	logger.Info(ctx, "account opened", "account_id", acc.ID, "scope", acc.Scope.String())
	return acc, nil
}

// SetAccountStatus activates or deactivates an account.
func (s *Service) SetAccountStatus(ctx context.Context, accountID id.ID, status AccountStatus) (*Account, error) {
	if !status.Valid() {
		return nil, apperror.NewValidation("unknown account status").WithDetail("status", string(status))
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc *Account
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.repo.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		if err := s.gate.AuthorizeWrite(ctx, acc.Scope); err != nil {
			return err
		}
		acc.Status = status
		return s.repo.UpdateAccountStatus(ctx, accountID, status)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}
	return acc, nil
}

// GetAccount returns an account visible to the actor.
func (s *Service) GetAccount(ctx context.Context, accountID id.ID) (*Account, error) {
	acc, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, acc.Scope); err != nil {
		return nil, err
	}
	return acc, nil
}

// Create posts a new CREDIT or DEBIT transaction against an account.
func (s *Service) Create(ctx context.Context, accountID id.ID, entryType EntryType, amount types.Money, meta Meta) (*Transaction, error) {
	if err := validateEntry(entryType, amount); err != nil {
		return nil, err
	}
	if err := meta.Reference.Validate(); err != nil {
		return nil, err
	}

	if meta.IdempotencyKey != "" && s.idem != nil {
		return s.createIdempotent(ctx, accountID, entryType, amount, meta)
	}
	return s.create(ctx, accountID, entryType, amount, meta)
}

func (s *Service) create(ctx context.Context, accountID id.ID, entryType EntryType, amount types.Money, meta Meta) (*Transaction, error) {
	ctx, span := tracer.Start(ctx, "ledger.Create", trace.WithAttributes(
		attribute.String("account_id", accountID.String()),
		attribute.String("type", string(entryType)),
	))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var created *Transaction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.PostInTx(ctx, accountID, entryType, amount, meta)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperror.Normalize(err)
	}

	logger.Info(ctx, "ledger transaction created",
		"transaction_id", created.ID,
		"number", created.Number,
		"account_id", accountID,
		"type", entryType,
		"amount", types.FormatMoney(amount),
	)
	audit.RecordBestEffort(ctx, s.audit, audit.Entry{
		EntityType: entityTransaction,
		EntityID:   created.ID,
		Action:     audit.ActionCreate,
		Changes:    transactionState(created),
	})
	return created, nil
}

// PostInTx writes a transaction and the new account balance.
// It must run inside a transaction opened by the caller; callers composing
// a larger unit of work (such as recording a sale) use it directly.
func (s *Service) PostInTx(ctx context.Context, accountID id.ID, entryType EntryType, amount types.Money, meta Meta) (*Transaction, error) {
	if err := validateEntry(entryType, amount); err != nil {
		return nil, err
	}

	acc, err := s.repo.GetAccountForUpdate(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, acc.Scope); err != nil {
		return nil, err
	}
	if entryType == Credit && acc.Status == AccountInactive {
		return nil, apperror.NewAccountInactive(acc.ID.String())
	}
	if err := s.cfg.Rules.Check(ctx, acc, entryType, amount, meta.Reference); err != nil {
		return nil, err
	}

	now := s.now()
	number, err := s.numerator.GetNextNumber(ctx, s.cfg.Numbering, nil, now)
	if err != nil {
		return nil, fmt.Errorf("allocate transaction number: %w", err)
	}

	actor := appctx.GetActor(ctx)
	t := &Transaction{
		ID:          id.New(),
		Number:      number,
		AccountID:   acc.ID,
		Type:        entryType,
		Amount:      amount,
		Description: strings.TrimSpace(meta.Description),
		Reference:   meta.Reference,
		Scope:       acc.Scope,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		Status:      TxPosted,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	if err := s.repo.UpdateAccountBalance(ctx, acc.ID, acc.CurrentBalance.Add(t.Effect())); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}
	return t, nil
}

func (s *Service) createIdempotent(ctx context.Context, accountID id.ID, entryType EntryType, amount types.Money, meta Meta) (*Transaction, error) {
	key := fmt.Sprintf("ledger:create:%s:%s", appctx.GetUserID(ctx), meta.IdempotencyKey)

	result, acquired, err := s.idem.Acquire(ctx, key)
	if err != nil {
		return nil, apperror.NewStorageFailure(fmt.Errorf("acquire idempotency key: %w", err))
	}
	if !acquired {
		if result == "" {
			return nil, apperror.NewIdempotencyConflict(meta.IdempotencyKey)
		}
		txID, err := id.Parse(result)
		if err != nil {
			return nil, apperror.NewInternal(fmt.Errorf("stored idempotency result %q: %w", result, err))
		}
		logger.Info(ctx, "replaying idempotent create", "idempotency_key", meta.IdempotencyKey, "transaction_id", txID)
		return s.GetTransaction(ctx, txID)
	}

	created, err := s.create(ctx, accountID, entryType, amount, meta)
	if err != nil {
		if relErr := s.idem.Release(context.WithoutCancel(ctx), key); relErr != nil {
			logger.Warn(ctx, "release idempotency key failed", "idempotency_key", meta.IdempotencyKey, "error", relErr)
		}
		return nil, err
	}
	if err := s.idem.Complete(context.WithoutCancel(ctx), key, created.ID.String()); err != nil {
		logger.Warn(ctx, "complete idempotency key failed", "idempotency_key", meta.IdempotencyKey, "error", err)
	}
	return created, nil
}

// Update applies patch to a transaction. When the amount or type changes the
// prior effect is reversed and the new one applied in the same transaction.
// Locks are taken account first, then transaction.
func (s *Service) Update(ctx context.Context, txID id.ID, patch Patch) (*Transaction, error) {
	if patch.IsEmpty() {
		return nil, apperror.NewValidation("nothing to update")
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, apperror.NewValidation("unknown transaction type").WithDetail("type", string(*patch.Type))
	}
	if patch.Amount != nil {
		if err := validateAmount(*patch.Amount); err != nil {
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "ledger.Update", trace.WithAttributes(attribute.String("transaction_id", txID.String())))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var before, after Transaction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		acc, t, err := s.lockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if patch.ExpectedVersion != nil && *patch.ExpectedVersion != t.Version {
			return apperror.NewVersionConflict(entityTransaction, txID.String(), *patch.ExpectedVersion, t.Version)
		}

		before = *t
		if patch.Type != nil {
			t.Type = *patch.Type
		}
		if patch.Amount != nil {
			t.Amount = *patch.Amount
		}
		if patch.Description != nil {
			t.Description = strings.TrimSpace(*patch.Description)
		}

		if !t.Effect().Equal(before.Effect()) {
			reverted := *acc
			reverted.CurrentBalance = acc.CurrentBalance.Sub(before.Effect())
			newBalance := reverted.CurrentBalance.Add(t.Effect())

			// only a change that moves the balance against the rule is re-checked
			worsens := (t.Type == Credit && newBalance.GreaterThan(acc.CurrentBalance)) ||
				(t.Type == Debit && newBalance.LessThan(acc.CurrentBalance))
			if worsens {
				if err := s.cfg.Rules.Check(ctx, &reverted, t.Type, t.Amount, t.Reference); err != nil {
					return err
				}
			}
			if err := s.repo.UpdateAccountBalance(ctx, acc.ID, newBalance); err != nil {
				return fmt.Errorf("update balance: %w", err)
			}
		}

		t.Version = before.Version + 1
		t.UpdatedAt = s.now()
		if err := s.repo.UpdateTransaction(ctx, t, before.Version); err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		after = *t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, apperror.Normalize(err)
	}

	logger.Info(ctx, "ledger transaction updated", "transaction_id", txID, "version", after.Version)
	audit.RecordBestEffort(ctx, s.audit, audit.Entry{
		EntityType: entityTransaction,
		EntityID:   txID,
		Action:     audit.ActionUpdate,
		Changes:    diff(transactionState(&before), transactionState(&after)),
	})
	return &after, nil
}

// Delete removes a transaction and reverses its effect on the balance.
// A nil expectedVersion skips the version check.
func (s *Service) Delete(ctx context.Context, txID id.ID, expectedVersion *int) error {
	ctx, span := tracer.Start(ctx, "ledger.Delete", trace.WithAttributes(attribute.String("transaction_id", txID.String())))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var deleted *Transaction
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		acc, t, err := s.lockTransaction(ctx, txID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != t.Version {
			return apperror.NewVersionConflict(entityTransaction, txID.String(), *expectedVersion, t.Version)
		}

		if err := s.repo.UpdateAccountBalance(ctx, acc.ID, acc.CurrentBalance.Sub(t.Effect())); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}
		if err := s.repo.DeleteTransaction(ctx, txID); err != nil {
			return fmt.Errorf("delete transaction: %w", err)
		}
		deleted = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return apperror.Normalize(err)
	}

	logger.Info(ctx, "ledger transaction deleted", "transaction_id", txID, "account_id", deleted.AccountID)
	audit.RecordBestEffort(ctx, s.audit, audit.Entry{
		EntityType: entityTransaction,
		EntityID:   txID,
		Action:     audit.ActionDelete,
		Changes:    transactionState(deleted),
	})
	return nil
}

// lockTransaction locks the owning account, then the transaction row.
func (s *Service) lockTransaction(ctx context.Context, txID id.ID) (*Account, *Transaction, error) {
	probe, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	acc, err := s.repo.GetAccountForUpdate(ctx, probe.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, acc.Scope); err != nil {
		return nil, nil, err
	}
	t, err := s.repo.GetTransactionForUpdate(ctx, txID)
	if err != nil {
		return nil, nil, err
	}
	return acc, t, nil
}

// GetTransaction returns a transaction visible to the actor.
func (s *Service) GetTransaction(ctx context.Context, txID id.ID) (*Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, t.Scope); err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions pages through an account's transactions, newest first.
func (s *Service) ListTransactions(ctx context.Context, accountID id.ID, limit, offset int) ([]Transaction, error) {
	if _, err := s.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListTransactions(ctx, accountID, limit, max(offset, 0))
}

// GetAccountSummary returns credit/debit totals next to the stored balance.
// It is a plain read and takes no locks.
func (s *Service) GetAccountSummary(ctx context.Context, accountID id.ID) (Summary, error) {
	acc, err := s.GetAccount(ctx, accountID)
	if err != nil {
		return Summary{}, err
	}
	totals, err := s.repo.Summarize(ctx, accountID)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize account: %w", err)
	}
	return Summary{
		AccountID:      accountID,
		TotalCredit:    totals.TotalCredit,
		TotalDebit:     totals.TotalDebit,
		Count:          totals.Count,
		CurrentBalance: acc.CurrentBalance,
	}, nil
}

// Reconcile compares every stored balance with the sum of its log.
// It changes nothing; divergences are returned and logged.
func (s *Service) Reconcile(ctx context.Context) ([]Divergence, error) {
	if err := s.gate.RequireAdmin(ctx); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "ledger.Reconcile")
	defer span.End()

	checks, err := s.repo.ListBalanceChecks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list balance checks: %w", err)
	}

	var out []Divergence
	for _, c := range checks {
		if c.Stored.Equal(c.Computed) {
			continue
		}
		d := Divergence{
			AccountID:  c.AccountID,
			Stored:     c.Stored,
			Computed:   c.Computed,
			Difference: c.Stored.Sub(c.Computed),
		}
		logger.Error(ctx, "account balance diverges from transaction log",
			"account_id", d.AccountID,
			"stored", types.FormatMoney(d.Stored),
			"computed", types.FormatMoney(d.Computed),
		)
		out = append(out, d)
	}
	span.SetAttributes(attribute.Int("accounts", len(checks)), attribute.Int("divergent", len(out)))
	return out, nil
}

func (s *Service) authorizeRead(ctx context.Context, scope security.Scope) error {
	access, err := s.gate.ReadScope(ctx)
	if err != nil {
		return err
	}
	if !access.CanAccess(scope) {
		return apperror.NewScopeAccessDenied("record is outside of the actor's scope").WithDetail("scope", scope.String())
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.OperationTimeout)
}

func validateEntry(entryType EntryType, amount types.Money) error {
	if !entryType.Valid() {
		return apperror.NewValidation("unknown transaction type").WithDetail("type", string(entryType))
	}
	return validateAmount(amount)
}

func validateAmount(amount types.Money) error {
	if !amount.IsPositive() {
		return apperror.NewInvalidAmount(amount.String())
	}
	if !amount.Equal(types.RoundCents(amount)) {
		return apperror.NewValidation("amount must not have more than two decimal places").WithDetail("amount", amount.String())
	}
	return nil
}

func transactionState(t *Transaction) map[string]any {
	return map[string]any{
		"number":      t.Number,
		"account_id":  t.AccountID.String(),
		"type":        string(t.Type),
		"amount":      types.FormatMoney(t.Amount),
		"description": t.Description,
		"reference":   t.Reference,
		"version":     t.Version,
	}
}

func diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		if oldVal := oldState[key]; fmt.Sprint(oldVal) != fmt.Sprint(newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	return changes
}
