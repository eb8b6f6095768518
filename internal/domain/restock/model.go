// Package restock tracks returned goods being put back into inventory,
// possibly in several partial steps.
package restock

import (
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
)

// LineState is derived from a line's remaining quantity.
type LineState string

const (
	LinePending   LineState = "PENDING"
	LinePartial   LineState = "PARTIAL"
	LineCompleted LineState = "COMPLETED"
)

// ReturnStatus is derived from the states of all lines of a return.
type ReturnStatus string

const (
	ReturnPending   ReturnStatus = "pending"
	ReturnPartial   ReturnStatus = "partial"
	ReturnCompleted ReturnStatus = "completed"
)

// Return is a sales return awaiting restock.
type Return struct {
	ID        id.ID          `json:"id"`
	SaleID    *id.ID         `json:"linkedSaleId,omitempty"`
	Status    ReturnStatus   `json:"status"`
	Scope     security.Scope `json:"scope"`
	CreatedBy string         `json:"createdBy"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`

	Lines []ReturnLine `json:"lines,omitempty"`
}

// ReturnLine is one returned item. RemainingQuantity only ever decreases
// and stays within [0, OriginalQuantity].
type ReturnLine struct {
	ID                id.ID          `json:"id"`
	ReturnID          id.ID          `json:"returnId"`
	InventoryItemID   id.ID          `json:"inventoryItemId"`
	OriginalQuantity  types.Quantity `json:"originalQuantity"`
	RemainingQuantity types.Quantity `json:"remainingQuantity"`
	Scope             security.Scope `json:"scope"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// State derives the line state from its quantities.
func (l ReturnLine) State() LineState {
	switch {
	case l.RemainingQuantity == 0:
		return LineCompleted
	case l.RemainingQuantity == l.OriginalQuantity:
		return LinePending
	default:
		return LinePartial
	}
}

// DeriveStatus computes a return's status from its lines:
// completed when nothing remains, pending when nothing was restocked, partial otherwise.
func DeriveStatus(lines []ReturnLine) ReturnStatus {
	var remaining types.Quantity
	allPending := true
	for _, l := range lines {
		remaining += l.RemainingQuantity
		if l.State() != LinePending {
			allPending = false
		}
	}
	switch {
	case remaining == 0:
		return ReturnCompleted
	case allPending:
		return ReturnPending
	default:
		return ReturnPartial
	}
}

// InventoryItem is the stock-keeping record restocks add to.
type InventoryItem struct {
	ID           id.ID          `json:"id"`
	SKU          string         `json:"sku"`
	Name         string         `json:"name"`
	Scope        security.Scope `json:"scope"`
	CurrentStock types.Quantity `json:"currentStock"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// MovementReturnRestock is the reference type of restock movements.
const MovementReturnRestock = "RETURN_RESTOCK"

// StockMovement is the append-only trail of a stock change.
type StockMovement struct {
	ID            id.ID          `json:"id"`
	ItemID        id.ID          `json:"itemId"`
	Quantity      types.Quantity `json:"quantity"`
	StockBefore   types.Quantity `json:"stockBefore"`
	StockAfter    types.Quantity `json:"stockAfter"`
	ReferenceType string         `json:"referenceType"`
	ReferenceID   id.ID          `json:"referenceId"`
	ReturnID      id.ID          `json:"returnId"`
	Scope         security.Scope `json:"scope"`
	ActorID       string         `json:"actorId"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Result reports the outcome of a restock.
type Result struct {
	Restocked      types.Quantity `json:"restocked"`
	RemainingAfter types.Quantity `json:"remainingAfter"`
	Completed      bool           `json:"completed"`
	ReturnStatus   ReturnStatus   `json:"returnStatus"`
}

// NewReturn is the input for registering a return.
type NewReturn struct {
	SaleID *id.ID
	Scope  security.Scope
	Lines  []NewReturnLine
}

// NewReturnLine is one item of a new return.
type NewReturnLine struct {
	InventoryItemID id.ID
	Quantity        types.Quantity
}

// NewItem is the input for registering an inventory item.
type NewItem struct {
	SKU          string
	Name         string
	Scope        security.Scope
	InitialStock types.Quantity
}

// PendingFilter narrows the pending-restock listing.
type PendingFilter struct {
	ReturnID    *id.ID
	ItemID      *id.ID
	Scopes      []security.Scope
	States      []LineState
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// PendingRow is a return line with stock left to put back, joined with its context.
type PendingRow struct {
	LineID            id.ID          `json:"lineId"`
	ReturnID          id.ID          `json:"returnId"`
	ReturnStatus      ReturnStatus   `json:"returnStatus"`
	SaleID            *id.ID         `json:"saleId,omitempty"`
	CustomerName      string         `json:"customerName,omitempty"`
	ItemID            id.ID          `json:"itemId"`
	SKU               string         `json:"sku"`
	ItemName          string         `json:"itemName"`
	OriginalQuantity  types.Quantity `json:"originalQuantity"`
	RemainingQuantity types.Quantity `json:"remainingQuantity"`
	State             LineState      `json:"state"`
	Scope             security.Scope `json:"scope"`
	CreatedBy         string         `json:"createdBy"`
	CreatedAt         time.Time      `json:"createdAt"`
}
