package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"retailledger/internal/domain/ledger"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
)

// IdempotencyStore keeps idempotency keys in sys_idempotency.
// It serves deployments that run without Redis.
type IdempotencyStore struct {
	txManager  *TxManager
	pendingTTL time.Duration
	resultTTL  time.Duration
	now        func() time.Time
}

var _ ledger.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a new idempotency store.
func NewIdempotencyStore(txManager *TxManager, pendingTTL, resultTTL time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		txManager:  txManager,
		pendingTTL: pendingTTL,
		resultTTL:  resultTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Acquire claims key. An expired row, such as one left by a crashed
// request, is taken over. Otherwise the stored result is returned, or ""
// while the holder is still running.
func (s *IdempotencyStore) Acquire(ctx context.Context, key string) (string, bool, error) {
	now := s.now()
	q := s.txManager.GetQuerier(ctx)

	var claimed string
	err := q.QueryRow(ctx, `
		INSERT INTO sys_idempotency (idempotency_key, status, result, created_at, updated_at, expires_at)
		VALUES ($1, $2, NULL, $3, $3, $4)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			status = EXCLUDED.status,
			result = NULL,
			updated_at = EXCLUDED.updated_at,
			expires_at = EXCLUDED.expires_at
		WHERE sys_idempotency.expires_at < $3
		RETURNING idempotency_key
	`, key, IdempotencyStatusPending, now, now.Add(s.pendingTTL)).Scan(&claimed)
	if err == nil {
		return "", true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return "", false, fmt.Errorf("acquire idempotency key: %w", err)
	}

	var (
		status IdempotencyStatus
		result *string
	)
	err = q.QueryRow(ctx, `
		SELECT status, result FROM sys_idempotency WHERE idempotency_key = $1
	`, key).Scan(&status, &result)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// released between the two statements
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("read idempotency key: %w", err)
	}
	if status == IdempotencyStatusSuccess && result != nil {
		return *result, false, nil
	}
	return "", false, nil
}

// Complete stores the result of the request holding key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, result string) error {
	now := s.now()
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_idempotency
		SET status = $1, result = $2, updated_at = $3, expires_at = $4
		WHERE idempotency_key = $5
	`, IdempotencyStatusSuccess, result, now, now.Add(s.resultTTL), key)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release drops key after a failed request.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE idempotency_key = $1
	`, key)
	if err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

// CleanupExpired removes expired idempotency records.
func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_idempotency WHERE expires_at < $1
	`, s.now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
