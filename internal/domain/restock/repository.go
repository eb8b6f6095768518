package restock

import (
	"context"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
)

// Repository persists returns, their lines and inventory stock.
type Repository interface {
	CreateReturn(ctx context.Context, r *Return) error
	GetReturn(ctx context.Context, returnID id.ID) (*Return, error)
	GetReturnForUpdate(ctx context.Context, returnID id.ID) (*Return, error)
	UpdateReturnStatus(ctx context.Context, returnID id.ID, status ReturnStatus) error

	// SaleExists reports whether the sale a return is linked to was recorded.
	SaleExists(ctx context.Context, saleID id.ID) (bool, error)

	ListLines(ctx context.Context, returnID id.ID) ([]ReturnLine, error)
	GetLineForUpdate(ctx context.Context, lineID id.ID) (*ReturnLine, error)
	UpdateLineRemaining(ctx context.Context, lineID id.ID, remaining types.Quantity) error

	CreateItem(ctx context.Context, item *InventoryItem) error
	GetItem(ctx context.Context, itemID id.ID) (*InventoryItem, error)
	GetItemForUpdate(ctx context.Context, itemID id.ID) (*InventoryItem, error)
	UpdateItemStock(ctx context.Context, itemID id.ID, stock types.Quantity) error

	// ListPending returns lines with remaining stock, oldest first.
	ListPending(ctx context.Context, filter PendingFilter) ([]PendingRow, error)
}

// MovementLog appends stock movements. Writes happen after the restock
// commits and may fail independently of it.
type MovementLog interface {
	CreateMovement(ctx context.Context, m *StockMovement) error
}
