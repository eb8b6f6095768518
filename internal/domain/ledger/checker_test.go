package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
)

func account(balance, limit string) *ledger.Account {
	return &ledger.Account{CurrentBalance: types.MustMoney(balance), CreditLimit: types.MustMoney(limit)}
}

func TestCanExtendCredit(t *testing.T) {
	require.NoError(t, ledger.CanExtendCredit(account("900", "1000"), types.MustMoney("100")))

	err := ledger.CanExtendCredit(account("900", "1000"), types.MustMoney("101"))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeCreditLimitExceeded, appErr.Code)
	assert.Equal(t, "900.00", appErr.Details["current"])
	assert.Equal(t, "1000.00", appErr.Details["limit"])
	assert.Equal(t, "1001.00", appErr.Details["attempted"])
}

func TestCanDebit(t *testing.T) {
	require.NoError(t, ledger.CanDebit(account("50", "0"), types.MustMoney("50")))

	err := ledger.CanDebit(account("50", "0"), types.MustMoney("50.01"))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperror.CodeInsufficientBalance, appErr.Code)
	assert.Equal(t, "50.00", appErr.Details["current"])
	assert.Equal(t, "50.01", appErr.Details["requested"])
}

func TestRules_Check(t *testing.T) {
	ctx := context.Background()
	broke := account("0", "0")
	amount := types.MustMoney("10")

	tests := []struct {
		name    string
		rules   ledger.Rules
		typ     ledger.EntryType
		ref     ledger.Reference
		wantErr string
	}{
		{"credit rejected", ledger.DefaultRules(), ledger.Credit, ledger.Reference{}, apperror.CodeCreditLimitExceeded},
		{"debit rejected", ledger.DefaultRules(), ledger.Debit, ledger.Reference{}, apperror.CodeInsufficientBalance},
		{"sale debit rejected", ledger.DefaultRules(), ledger.Debit, ledger.Reference{Type: ledger.RefSale}, apperror.CodeInsufficientBalance},
		{"return debit exempt", ledger.DefaultRules(), ledger.Debit, ledger.Reference{Type: ledger.RefReturn}, ""},
		{"adjustment debit exempt", ledger.DefaultRules(), ledger.Debit, ledger.Reference{Type: ledger.RefAdjustment}, ""},
		{"credit warn", ledger.Rules{CreditLimit: ledger.RuleWarn, SufficientBalance: ledger.RuleReject}, ledger.Credit, ledger.Reference{}, ""},
		{"debit off", ledger.Rules{CreditLimit: ledger.RuleReject, SufficientBalance: ledger.RuleOff}, ledger.Debit, ledger.Reference{}, ""},
		{"unknown type", ledger.DefaultRules(), ledger.EntryType("REFUND"), ledger.Reference{}, apperror.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Check(ctx, broke, tt.typ, amount, tt.ref)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestRuleMode_Valid(t *testing.T) {
	assert.True(t, ledger.RuleWarn.Valid())
	assert.False(t, ledger.RuleMode("block").Valid())
}
