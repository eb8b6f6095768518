package settlement

import (
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
)

// Sale is a recorded sale with its settlement state.
// OutstandingAmount is signed: positive is owed by the customer, negative is
// owed to the customer. It starts at CreditAmount and moves with every ledger
// entry that references the sale or a return linked to it.
type Sale struct {
	ID                  id.ID          `json:"id"`
	Number              string         `json:"number"`
	Scope               security.Scope `json:"scope"`
	AccountID           *id.ID         `json:"accountId,omitempty"`
	CustomerName        string         `json:"customerName"`
	CustomerPhone       string         `json:"customerPhone"`
	Total               types.Money    `json:"total"`
	PaymentAmount       types.Money    `json:"paymentAmount"`
	CreditAmount        types.Money    `json:"creditAmount"`
	OutstandingAmount   types.Money    `json:"outstandingAmount"`
	PaymentStatus       PaymentStatus  `json:"paymentStatus"`
	LedgerTransactionID *id.ID         `json:"ledgerTransactionId,omitempty"`
	CreatedBy           string         `json:"createdBy"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// SaleInput is the input for recording a sale.
type SaleInput struct {
	Scope         security.Scope
	AccountID     *id.ID
	CustomerName  string
	CustomerPhone string
	Total         types.Money
	PaymentAmount types.Money
	FullyCredit   bool
}

// OutstandingBalance is the net amount outstanding for one (name, phone) identity.
type OutstandingBalance struct {
	AccountName       string      `json:"accountName"`
	Phone             string      `json:"phone"`
	TotalOutstanding  types.Money `json:"totalOutstanding"`
	PendingSalesCount int         `json:"pendingSalesCount"`
	IsCredit          bool        `json:"isCredit"`
}

// ClearingEntry returns the ledger entry that settles the balance: a DEBIT
// when the customer pays what they owe, a CREDIT when the store settles
// what it owes. ok is false when nothing is outstanding.
func (b OutstandingBalance) ClearingEntry() (entryType ledger.EntryType, amount types.Money, ok bool) {
	switch {
	case b.TotalOutstanding.IsPositive():
		return ledger.Debit, b.TotalOutstanding, true
	case b.TotalOutstanding.IsNegative():
		return ledger.Credit, b.TotalOutstanding.Neg(), true
	default:
		return "", types.Zero(), false
	}
}

// OutstandingFilter selects the sales to aggregate.
// Empty Phone and Name match every customer.
type OutstandingFilter struct {
	Phone string
	Name  string

	// Scopes limits the sales to these scopes unless Unrestricted.
	Scopes       []security.Scope
	Unrestricted bool
}
