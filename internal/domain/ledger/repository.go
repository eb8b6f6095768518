package ledger

import (
	"context"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// Repository persists accounts and their transactions.
// Methods run on the transaction carried by ctx when there is one.
type Repository interface {
	// Accounts

	CreateAccount(ctx context.Context, acc *Account) error
	GetAccount(ctx context.Context, accountID id.ID) (*Account, error)

	// GetAccountForUpdate reads the account holding a row lock until the transaction ends.
	GetAccountForUpdate(ctx context.Context, accountID id.ID) (*Account, error)

	UpdateAccountBalance(ctx context.Context, accountID id.ID, balance types.Money) error
	UpdateAccountStatus(ctx context.Context, accountID id.ID, status AccountStatus) error

	// Transactions

	CreateTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, txID id.ID) (*Transaction, error)
	GetTransactionForUpdate(ctx context.Context, txID id.ID) (*Transaction, error)

	// UpdateTransaction stores t if the stored version equals prevVersion.
	UpdateTransaction(ctx context.Context, t *Transaction, prevVersion int) error
	DeleteTransaction(ctx context.Context, txID id.ID) error
	ListTransactions(ctx context.Context, accountID id.ID, limit, offset int) ([]Transaction, error)

	// Aggregates

	Summarize(ctx context.Context, accountID id.ID) (Totals, error)

	// ListBalanceChecks recomputes every account balance from its log.
	ListBalanceChecks(ctx context.Context) ([]BalanceCheck, error)
}

// IdempotencyStore remembers which create requests already produced a transaction.
type IdempotencyStore interface {
	// Acquire reserves key. When the key is taken, result holds the stored
	// transaction id, or is empty while the first request is still running.
	Acquire(ctx context.Context, key string) (result string, acquired bool, err error)

	// Complete stores the result of a reserved key.
	Complete(ctx context.Context, key, result string) error

	// Release drops a reservation after a failed attempt so it can be retried.
	Release(ctx context.Context, key string) error
}
