package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"retailledger/internal/core/apperror"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		retryable bool
	}{
		{"lock timeout", &pgconn.PgError{Code: "55P03"}, apperror.CodeBusy, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, apperror.CodeBusy, true},
		{"deadlock", fmt.Errorf("update: %w", &pgconn.PgError{Code: "40P01"}), apperror.CodeBusy, true},
		{"statement timeout", &pgconn.PgError{Code: "57014"}, apperror.CodeBusy, true},
		{"deadline", fmt.Errorf("begin: %w", context.DeadlineExceeded), apperror.CodeBusy, true},
		{"check constraint", &pgconn.PgError{Code: "23514", ConstraintName: "chk_remaining"}, apperror.CodeValidation, false},
		{"unique", &pgconn.PgError{Code: "23505"}, apperror.CodeConflict, false},
		{"other", errors.New("connection reset"), apperror.CodeStorageFailure, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			assert.True(t, apperror.HasCode(got, tt.wantCode), "got %v", got)
			assert.Equal(t, tt.retryable, apperror.IsRetryable(got))
		})
	}
}

func TestTranslateError_PassThrough(t *testing.T) {
	assert.NoError(t, TranslateError(nil))

	notFound := apperror.NewNotFound("account", "x")
	assert.Same(t, notFound, TranslateError(notFound))

	assert.ErrorIs(t, TranslateError(context.Canceled), context.Canceled)
}
