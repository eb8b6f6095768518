package restock_repo

import (
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/restock"
	"retailledger/internal/infrastructure/storage/postgres"
)

const (
	returnsTable   = "sales_returns"
	linesTable     = "sales_return_items"
	itemsTable     = "inventory_items"
	movementsTable = "stock_movements"
	salesTable     = "sales"
)

func scopeOf(kind, scopeID string) security.Scope {
	return security.Scope{Kind: security.ScopeKind(kind), ID: scopeID}
}

type returnRow struct {
	ID        id.ID     `db:"id"`
	SaleID    *id.ID    `db:"sale_id"`
	Status    string    `db:"status"`
	ScopeKind string    `db:"scope_kind"`
	ScopeID   string    `db:"scope_id"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

var returnColumns = postgres.ExtractDBColumns[returnRow]()

func (r returnRow) toDomain() *restock.Return {
	return &restock.Return{
		ID:        r.ID,
		SaleID:    r.SaleID,
		Status:    restock.ReturnStatus(r.Status),
		Scope:     scopeOf(r.ScopeKind, r.ScopeID),
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type lineRow struct {
	ID                id.ID          `db:"id"`
	ReturnID          id.ID          `db:"return_id"`
	InventoryItemID   id.ID          `db:"inventory_item_id"`
	OriginalQuantity  types.Quantity `db:"original_quantity"`
	RemainingQuantity types.Quantity `db:"remaining_quantity"`
	ScopeKind         string         `db:"scope_kind"`
	ScopeID           string         `db:"scope_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

var lineColumns = postgres.ExtractDBColumns[lineRow]()

func (r lineRow) toDomain() restock.ReturnLine {
	return restock.ReturnLine{
		ID:                r.ID,
		ReturnID:          r.ReturnID,
		InventoryItemID:   r.InventoryItemID,
		OriginalQuantity:  r.OriginalQuantity,
		RemainingQuantity: r.RemainingQuantity,
		Scope:             scopeOf(r.ScopeKind, r.ScopeID),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// copyValues orders the line in lineColumns order for COPY.
func lineCopyValues(l restock.ReturnLine) []any {
	return []any{
		l.ID, l.ReturnID, l.InventoryItemID,
		l.OriginalQuantity.Int64Scaled(), l.RemainingQuantity.Int64Scaled(),
		string(l.Scope.Kind), l.Scope.ID,
		l.CreatedAt, l.UpdatedAt,
	}
}

type itemRow struct {
	ID           id.ID          `db:"id"`
	SKU          string         `db:"sku"`
	Name         string         `db:"name"`
	ScopeKind    string         `db:"scope_kind"`
	ScopeID      string         `db:"scope_id"`
	CurrentStock types.Quantity `db:"current_stock"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

var itemColumns = postgres.ExtractDBColumns[itemRow]()

func (r itemRow) toDomain() *restock.InventoryItem {
	return &restock.InventoryItem{
		ID:           r.ID,
		SKU:          r.SKU,
		Name:         r.Name,
		Scope:        scopeOf(r.ScopeKind, r.ScopeID),
		CurrentStock: r.CurrentStock,
		UpdatedAt:    r.UpdatedAt,
	}
}

type pendingRow struct {
	LineID            id.ID          `db:"line_id"`
	ReturnID          id.ID          `db:"return_id"`
	ReturnStatus      string         `db:"return_status"`
	SaleID            *id.ID         `db:"sale_id"`
	CustomerName      string         `db:"customer_name"`
	ItemID            id.ID          `db:"item_id"`
	SKU               string         `db:"sku"`
	ItemName          string         `db:"item_name"`
	OriginalQuantity  types.Quantity `db:"original_quantity"`
	RemainingQuantity types.Quantity `db:"remaining_quantity"`
	ScopeKind         string         `db:"scope_kind"`
	ScopeID           string         `db:"scope_id"`
	CreatedBy         string         `db:"created_by"`
	CreatedAt         time.Time      `db:"created_at"`
}

func (r pendingRow) toDomain() restock.PendingRow {
	line := restock.ReturnLine{OriginalQuantity: r.OriginalQuantity, RemainingQuantity: r.RemainingQuantity}
	return restock.PendingRow{
		LineID:            r.LineID,
		ReturnID:          r.ReturnID,
		ReturnStatus:      restock.ReturnStatus(r.ReturnStatus),
		SaleID:            r.SaleID,
		CustomerName:      r.CustomerName,
		ItemID:            r.ItemID,
		SKU:               r.SKU,
		ItemName:          r.ItemName,
		OriginalQuantity:  r.OriginalQuantity,
		RemainingQuantity: r.RemainingQuantity,
		State:             line.State(),
		Scope:             scopeOf(r.ScopeKind, r.ScopeID),
		CreatedBy:         r.CreatedBy,
		CreatedAt:         r.CreatedAt,
	}
}

type movementRow struct {
	ID            id.ID          `db:"id"`
	ItemID        id.ID          `db:"item_id"`
	Quantity      types.Quantity `db:"quantity"`
	StockBefore   types.Quantity `db:"stock_before"`
	StockAfter    types.Quantity `db:"stock_after"`
	ReferenceType string         `db:"reference_type"`
	ReferenceID   id.ID          `db:"reference_id"`
	ReturnID      id.ID          `db:"return_id"`
	ScopeKind     string         `db:"scope_kind"`
	ScopeID       string         `db:"scope_id"`
	ActorID       string         `db:"actor_id"`
	CreatedAt     time.Time      `db:"created_at"`
}
