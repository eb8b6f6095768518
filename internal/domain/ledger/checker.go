package ledger

import (
	"context"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/types"
	"retailledger/pkg/logger"
)

// CanExtendCredit allows a credit of amount iff the resulting balance stays within the limit.
// A zero credit limit therefore admits no credit at all.
func CanExtendCredit(acc *Account, amount types.Money) error {
	attempted := acc.CurrentBalance.Add(amount)
	if attempted.GreaterThan(acc.CreditLimit) {
		return apperror.NewCreditLimitExceeded(
			types.FormatMoney(acc.CurrentBalance),
			types.FormatMoney(acc.CreditLimit),
			types.FormatMoney(attempted),
		).WithDetail("account_id", acc.ID.String())
	}
	return nil
}

// CanDebit allows a debit of amount iff the balance covers it.
func CanDebit(acc *Account, amount types.Money) error {
	if acc.CurrentBalance.LessThan(amount) {
		return apperror.NewInsufficientBalance(
			types.FormatMoney(acc.CurrentBalance),
			types.FormatMoney(amount),
		).WithDetail("account_id", acc.ID.String())
	}
	return nil
}

// RuleMode controls how a failed balance rule is handled.
type RuleMode string

const (
	RuleReject RuleMode = "reject"
	RuleWarn   RuleMode = "warn"
	RuleOff    RuleMode = "off"
)

func (m RuleMode) Valid() bool {
	return m == RuleReject || m == RuleWarn || m == RuleOff
}

// Rules configures enforcement of the balance rules.
type Rules struct {
	CreditLimit       RuleMode
	SufficientBalance RuleMode
}

// DefaultRules rejects every violation.
func DefaultRules() Rules {
	return Rules{CreditLimit: RuleReject, SufficientBalance: RuleReject}
}

// exemptFromBalance reports whether a debit is a refund or store credit,
// which may take the balance below zero.
func exemptFromBalance(ref Reference) bool {
	return ref.Type == RefReturn || ref.Type == RefAdjustment
}

// Check runs the rule matching entryType against acc, which must have been read under lock.
func (r Rules) Check(ctx context.Context, acc *Account, entryType EntryType, amount types.Money, ref Reference) error {
	switch entryType {
	case Credit:
		return r.apply(ctx, r.CreditLimit, CanExtendCredit(acc, amount))
	case Debit:
		if exemptFromBalance(ref) {
			return nil
		}
		return r.apply(ctx, r.SufficientBalance, CanDebit(acc, amount))
	}
	return apperror.NewValidation("unknown transaction type").WithDetail("type", string(entryType))
}

func (r Rules) apply(ctx context.Context, mode RuleMode, violation error) error {
	if violation == nil {
		return nil
	}
	switch mode {
	case RuleOff:
		return nil
	case RuleWarn:
		logger.Warn(ctx, "balance rule violated, continuing", "violation", violation)
		return nil
	default:
		return violation
	}
}
