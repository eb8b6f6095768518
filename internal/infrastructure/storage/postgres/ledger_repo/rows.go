package ledger_repo

import (
	"time"

	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/infrastructure/storage/postgres"
)

const (
	accountsTable     = "accounts"
	transactionsTable = "credit_debit_transactions"
)

type accountRow struct {
	ID             id.ID       `db:"id"`
	Name           string      `db:"name"`
	Phone          string      `db:"phone"`
	ScopeKind      string      `db:"scope_kind"`
	ScopeID        string      `db:"scope_id"`
	CreditLimit    types.Money `db:"credit_limit"`
	CurrentBalance types.Money `db:"current_balance"`
	Status         string      `db:"status"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

var accountColumns = postgres.ExtractDBColumns[accountRow]()

func accountToRow(a *ledger.Account) accountRow {
	return accountRow{
		ID:             a.ID,
		Name:           a.Name,
		Phone:          a.Phone,
		ScopeKind:      string(a.Scope.Kind),
		ScopeID:        a.Scope.ID,
		CreditLimit:    a.CreditLimit,
		CurrentBalance: a.CurrentBalance,
		Status:         string(a.Status),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (r accountRow) toDomain() *ledger.Account {
	return &ledger.Account{
		ID:             r.ID,
		Name:           r.Name,
		Phone:          r.Phone,
		Scope:          security.Scope{Kind: security.ScopeKind(r.ScopeKind), ID: r.ScopeID},
		CreditLimit:    r.CreditLimit,
		CurrentBalance: r.CurrentBalance,
		Status:         ledger.AccountStatus(r.Status),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type transactionRow struct {
	ID            id.ID       `db:"id"`
	Number        string      `db:"number"`
	AccountID     id.ID       `db:"account_id"`
	Type          string      `db:"type"`
	Amount        types.Money `db:"amount"`
	Description   string      `db:"description"`
	ReferenceType string      `db:"reference_type"`
	ReferenceID   string      `db:"reference_id"`
	ScopeKind     string      `db:"scope_kind"`
	ScopeID       string      `db:"scope_id"`
	ActorID       string      `db:"actor_id"`
	ActorRole     string      `db:"actor_role"`
	Status        string      `db:"status"`
	Version       int         `db:"version"`
	CreatedAt     time.Time   `db:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"`
}

var transactionColumns = postgres.ExtractDBColumns[transactionRow]()

func transactionToRow(t *ledger.Transaction) transactionRow {
	return transactionRow{
		ID:            t.ID,
		Number:        t.Number,
		AccountID:     t.AccountID,
		Type:          string(t.Type),
		Amount:        t.Amount,
		Description:   t.Description,
		ReferenceType: string(t.Reference.Type),
		ReferenceID:   t.Reference.ID,
		ScopeKind:     string(t.Scope.Kind),
		ScopeID:       t.Scope.ID,
		ActorID:       t.ActorID,
		ActorRole:     string(t.ActorRole),
		Status:        string(t.Status),
		Version:       t.Version,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (r transactionRow) toDomain() *ledger.Transaction {
	return &ledger.Transaction{
		ID:          r.ID,
		Number:      r.Number,
		AccountID:   r.AccountID,
		Type:        ledger.EntryType(r.Type),
		Amount:      r.Amount,
		Description: r.Description,
		Reference:   ledger.Reference{Type: ledger.ReferenceType(r.ReferenceType), ID: r.ReferenceID},
		Scope:       security.Scope{Kind: security.ScopeKind(r.ScopeKind), ID: r.ScopeID},
		ActorID:     r.ActorID,
		ActorRole:   appctx.Role(r.ActorRole),
		Status:      ledger.TxStatus(r.Status),
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
