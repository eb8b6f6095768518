package dto

import (
	"time"

	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/restock"
)

// RegisterItemRequest adds an inventory item.
type RegisterItemRequest struct {
	SKU          string         `json:"sku" binding:"required,max=100"`
	Name         string         `json:"name" binding:"max=200"`
	Scope        Scope          `json:"scope"`
	InitialStock types.Quantity `json:"initialStock"`
}

// ToDomain converts the request.
func (r RegisterItemRequest) ToDomain() (restock.NewItem, error) {
	scope, err := r.Scope.ToDomain()
	if err != nil {
		return restock.NewItem{}, err
	}
	return restock.NewItem{SKU: r.SKU, Name: r.Name, Scope: scope, InitialStock: r.InitialStock}, nil
}

// ReturnLineRequest is one returned item.
type ReturnLineRequest struct {
	InventoryItemID string         `json:"inventoryItemId" binding:"required"`
	Quantity        types.Quantity `json:"quantity"`
}

// CreateReturnRequest registers a sales return.
type CreateReturnRequest struct {
	SaleID *string             `json:"linkedSaleId"`
	Scope  Scope               `json:"scope"`
	Lines  []ReturnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToDomain converts the request.
func (r CreateReturnRequest) ToDomain() (restock.NewReturn, error) {
	scope, err := r.Scope.ToDomain()
	if err != nil {
		return restock.NewReturn{}, err
	}
	saleID, err := ParseOptionalID("linkedSaleId", r.SaleID)
	if err != nil {
		return restock.NewReturn{}, err
	}

	in := restock.NewReturn{SaleID: saleID, Scope: scope}
	for _, l := range r.Lines {
		itemID, err := ParseID("inventoryItemId", l.InventoryItemID)
		if err != nil {
			return restock.NewReturn{}, err
		}
		in.Lines = append(in.Lines, restock.NewReturnLine{InventoryItemID: itemID, Quantity: l.Quantity})
	}
	return in, nil
}

// RestockRequest puts qty units of a return line back into stock.
type RestockRequest struct {
	Quantity types.Quantity `json:"quantity"`
}

// PendingRestocksQuery filters the pending restock listing.
type PendingRestocksQuery struct {
	PaginationRequest
	ReturnID    string     `form:"returnId"`
	ItemID      string     `form:"itemId"`
	ScopeKind   string     `form:"scopeKind"`
	ScopeID     string     `form:"scopeId"`
	State       []string   `form:"state"`
	CreatedFrom *time.Time `form:"createdFrom" time_format:"2006-01-02T15:04:05Z07:00"`
	CreatedTo   *time.Time `form:"createdTo" time_format:"2006-01-02T15:04:05Z07:00"`
}

// ToFilter converts the query.
func (q PendingRestocksQuery) ToFilter() (restock.PendingFilter, error) {
	q.Defaults()
	f := restock.PendingFilter{
		CreatedFrom: q.CreatedFrom,
		CreatedTo:   q.CreatedTo,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}

	var err error
	if f.ReturnID, err = parseFilterID("returnId", q.ReturnID); err != nil {
		return restock.PendingFilter{}, err
	}
	if f.ItemID, err = parseFilterID("itemId", q.ItemID); err != nil {
		return restock.PendingFilter{}, err
	}
	if q.ScopeKind != "" || q.ScopeID != "" {
		scope, err := Scope{Kind: q.ScopeKind, ID: q.ScopeID}.ToDomain()
		if err != nil {
			return restock.PendingFilter{}, err
		}
		f.Scopes = append(f.Scopes, scope)
	}
	for _, s := range q.State {
		f.States = append(f.States, restock.LineState(s))
	}
	return f, nil
}

func parseFilterID(field, raw string) (*id.ID, error) {
	if raw == "" {
		return nil, nil
	}
	return ParseOptionalID(field, &raw)
}
