package settlement

import (
	"context"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
)

// Repository persists sales.
type Repository interface {
	CreateSale(ctx context.Context, sale *Sale) error
	GetSale(ctx context.Context, saleID id.ID) (*Sale, error)

	// AggregateOutstanding groups sales with a non-zero outstanding amount by
	// (customer name, phone). Phone matches exactly, name case-insensitively.
	// The outstanding amount of a sale is netted against the SALE, PAYMENT and
	// RETURN ledger entries that reference it.
	AggregateOutstanding(ctx context.Context, filter OutstandingFilter) ([]OutstandingBalance, error)
}

// CreditPoster posts ledger entries inside the caller's transaction.
type CreditPoster interface {
	PostInTx(ctx context.Context, accountID id.ID, entryType ledger.EntryType, amount types.Money, meta ledger.Meta) (*ledger.Transaction, error)
}
