package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"retailledger/internal/core/apperror"
)

// SQLSTATE codes the engines react to.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgQueryCanceled        = "57014"
	pgCheckViolation       = "23514"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// TranslateError maps a database error onto the application taxonomy.
// Lock contention and timeouts become a retryable BUSY, constraint
// violations a validation or conflict error, everything else a storage failure.
// AppErrors pass through unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperror.AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.NewBusy(err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected, pgQueryCanceled:
			return apperror.NewBusy(err)
		case pgCheckViolation:
			return apperror.NewValidation("constraint violated").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgUniqueViolation:
			return apperror.NewConflict("record already exists").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		case pgForeignKeyViolation:
			return apperror.NewValidation("referenced record does not exist").
				WithDetail("constraint", pgErr.ConstraintName).
				WithCause(err)
		}
	}
	return apperror.NewStorageFailure(err)
}
