// Package settlement resolves how a sale is paid and aggregates what
// customers owe, or are owed, across their sales.
package settlement

import (
	"retailledger/internal/core/apperror"
	"retailledger/internal/core/types"
)

// PaymentStatus of a sale.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentPartial   PaymentStatus = "PARTIAL"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Split is the resolved payment/credit split of a sale.
// PaymentAmount + CreditAmount always equals the sale total to the cent.
type Split struct {
	PaymentAmount types.Money   `json:"paymentAmount"`
	CreditAmount  types.Money   `json:"creditAmount"`
	Status        PaymentStatus `json:"paymentStatus"`
}

// ComputeSplit divides total into the part paid now and the part taken on credit.
//
// A fully credited sale is PENDING with nothing paid. Otherwise whatever the
// payment does not cover goes on credit; a payment above the total is capped
// at the total (the excess is change handed back, not store credit).
func ComputeSplit(total, paymentAmount types.Money, isFullyCredit bool) (Split, error) {
	if total.IsNegative() {
		return Split{}, apperror.NewValidation("total must not be negative").WithDetail("total", total.String())
	}
	if paymentAmount.IsNegative() {
		return Split{}, apperror.NewValidation("payment amount must not be negative").WithDetail("paymentAmount", paymentAmount.String())
	}

	total = types.RoundCents(total)
	if isFullyCredit {
		return Split{
			PaymentAmount: types.Zero(),
			CreditAmount:  total,
			Status:        PaymentPending,
		}, nil
	}

	paid := types.RoundCents(paymentAmount)
	if paid.GreaterThan(total) {
		paid = total
	}
	credit := total.Sub(paid)

	status := PaymentPartial
	if credit.IsZero() {
		status = PaymentCompleted
	}
	return Split{PaymentAmount: paid, CreditAmount: credit, Status: status}, nil
}
