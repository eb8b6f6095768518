// Package ledger implements customer credit/debit accounts and the engine
// that keeps account balances equal to the sum of their transactions.
package ledger

import (
	"time"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
)

// EntryType is the direction of a ledger transaction.
// CREDIT increases the balance owed by the customer, DEBIT decreases it.
type EntryType string

const (
	Credit EntryType = "CREDIT"
	Debit  EntryType = "DEBIT"
)

func (t EntryType) Valid() bool { return t == Credit || t == Debit }

// Effect returns the signed balance change of amount in direction t.
func (t EntryType) Effect(amount types.Money) types.Money {
	if t == Debit {
		return amount.Neg()
	}
	return amount
}

// ReferenceType names the business document a transaction originates from.
type ReferenceType string

const (
	RefSale       ReferenceType = "SALE"
	RefReturn     ReferenceType = "RETURN"
	RefPayment    ReferenceType = "PAYMENT"
	RefAdjustment ReferenceType = "ADJUSTMENT"
)

func (r ReferenceType) Valid() bool {
	switch r {
	case RefSale, RefReturn, RefPayment, RefAdjustment:
		return true
	}
	return false
}

// Reference links a transaction to a sale, return, payment or adjustment.
type Reference struct {
	Type ReferenceType `json:"type,omitempty"`
	ID   string        `json:"id,omitempty"`
}

func (r Reference) IsZero() bool { return r.Type == "" && r.ID == "" }

// Validate accepts the zero reference or a typed one.
func (r Reference) Validate() error {
	if r.IsZero() {
		return nil
	}
	if !r.Type.Valid() {
		return apperror.NewValidation("unknown reference type").WithDetail("reference_type", string(r.Type))
	}
	return nil
}

// AccountStatus of a ledger account.
type AccountStatus string

const (
	AccountActive   AccountStatus = "ACTIVE"
	AccountInactive AccountStatus = "INACTIVE"
)

func (s AccountStatus) Valid() bool { return s == AccountActive || s == AccountInactive }

// Account is a customer's credit/debit account.
// CurrentBalance always equals the signed sum of the account's transactions.
type Account struct {
	ID             id.ID          `json:"id"`
	Name           string         `json:"name"`
	Phone          string         `json:"phone,omitempty"`
	Scope          security.Scope `json:"scope"`
	CreditLimit    types.Money    `json:"creditLimit"`
	CurrentBalance types.Money    `json:"currentBalance"`
	Status         AccountStatus  `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// TxStatus of a ledger transaction. Transactions are posted on creation.
type TxStatus string

const TxPosted TxStatus = "POSTED"

// Transaction is one CREDIT or DEBIT entry against an account.
type Transaction struct {
	ID          id.ID          `json:"id"`
	Number      string         `json:"number"`
	AccountID   id.ID          `json:"accountId"`
	Type        EntryType      `json:"type"`
	Amount      types.Money    `json:"amount"`
	Description string         `json:"description,omitempty"`
	Reference   Reference      `json:"reference"`
	Scope       security.Scope `json:"scope"`
	ActorID     string         `json:"actorId"`
	ActorRole   appctx.Role    `json:"actorRole"`
	Status      TxStatus       `json:"status"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// Effect is the signed change this transaction applies to its account balance.
func (t *Transaction) Effect() types.Money {
	return t.Type.Effect(t.Amount)
}

// Meta carries the optional attributes of a new transaction.
type Meta struct {
	Description string
	Reference   Reference
	// IdempotencyKey makes retries of the same create return the first result.
	IdempotencyKey string
}

// Patch lists the fields an update may change. Nil fields are left untouched.
type Patch struct {
	Type            *EntryType   `json:"type,omitempty"`
	Amount          *types.Money `json:"amount,omitempty"`
	Description     *string      `json:"description,omitempty"`
	ExpectedVersion *int         `json:"expectedVersion,omitempty"`
}

func (p Patch) IsEmpty() bool {
	return p.Type == nil && p.Amount == nil && p.Description == nil
}

// NewAccount is the input for opening an account.
type NewAccount struct {
	Name        string
	Phone       string
	Scope       security.Scope
	CreditLimit types.Money
}

// Totals aggregates the transaction log of one account.
type Totals struct {
	TotalCredit types.Money
	TotalDebit  types.Money
	Count       int
}

// Summary is the balance summary of an account.
type Summary struct {
	AccountID      id.ID       `json:"accountId"`
	TotalCredit    types.Money `json:"totalCredit"`
	TotalDebit     types.Money `json:"totalDebit"`
	Count          int         `json:"count"`
	CurrentBalance types.Money `json:"currentBalance"`
}

// BalanceCheck pairs the stored balance with the one recomputed from the log.
type BalanceCheck struct {
	AccountID id.ID
	Stored    types.Money
	Computed  types.Money
}

// Divergence is an account whose stored balance disagrees with its log.
type Divergence struct {
	AccountID  id.ID       `json:"accountId"`
	Stored     types.Money `json:"stored"`
	Computed   types.Money `json:"computed"`
	Difference types.Money `json:"difference"`
}
