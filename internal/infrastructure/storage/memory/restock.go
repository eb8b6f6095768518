package memory

import (
	"context"
	"slices"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/restock"
)

// RestockRepo implements restock.Repository and restock.MovementLog.
type RestockRepo struct {
	store *Store
}

var (
	_ restock.Repository  = (*RestockRepo)(nil)
	_ restock.MovementLog = (*RestockRepo)(nil)
)

func NewRestockRepo(store *Store) *RestockRepo {
	return &RestockRepo{store: store}
}

func (r *RestockRepo) CreateReturn(ctx context.Context, ret *restock.Return) error {
	return r.store.write(ctx, func(st *state) error {
		header := *ret
		header.Lines = nil
		st.returns[ret.ID] = header
		for _, l := range ret.Lines {
			if l.RemainingQuantity < 0 || l.RemainingQuantity > l.OriginalQuantity {
				return apperror.NewValidation("remaining quantity out of range").WithDetail("line_id", l.ID.String())
			}
			st.lines[l.ID] = l
		}
		return nil
	})
}

func (r *RestockRepo) GetReturn(ctx context.Context, returnID id.ID) (*restock.Return, error) {
	var out restock.Return
	err := r.store.read(ctx, func(st *state) error {
		ret, ok := st.returns[returnID]
		if !ok {
			return apperror.NewNotFound("return", returnID.String())
		}
		out = ret
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RestockRepo) SaleExists(ctx context.Context, saleID id.ID) (bool, error) {
	var ok bool
	err := r.store.read(ctx, func(st *state) error {
		_, ok = st.sales[saleID]
		return nil
	})
	return ok, err
}

func (r *RestockRepo) GetReturnForUpdate(ctx context.Context, returnID id.ID) (*restock.Return, error) {
	return r.GetReturn(ctx, returnID)
}

func (r *RestockRepo) UpdateReturnStatus(ctx context.Context, returnID id.ID, status restock.ReturnStatus) error {
	return r.store.write(ctx, func(st *state) error {
		ret, ok := st.returns[returnID]
		if !ok {
			return apperror.NewNotFound("return", returnID.String())
		}
		ret.Status = status
		st.returns[returnID] = ret
		return nil
	})
}

func (r *RestockRepo) ListLines(ctx context.Context, returnID id.ID) ([]restock.ReturnLine, error) {
	var out []restock.ReturnLine
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lines {
			if l.ReturnID == returnID {
				out = append(out, l)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b restock.ReturnLine) int { return compareIDs(a.ID, b.ID) })
	return out, err
}

func (r *RestockRepo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*restock.ReturnLine, error) {
	var out restock.ReturnLine
	err := r.store.read(ctx, func(st *state) error {
		l, ok := st.lines[lineID]
		if !ok {
			return apperror.NewNotFound("return line", lineID.String())
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateLineRemaining enforces the same bounds as the table's CHECK constraint.
func (r *RestockRepo) UpdateLineRemaining(ctx context.Context, lineID id.ID, remaining types.Quantity) error {
	return r.store.write(ctx, func(st *state) error {
		l, ok := st.lines[lineID]
		if !ok {
			return apperror.NewNotFound("return line", lineID.String())
		}
		if remaining < 0 || remaining > l.OriginalQuantity {
			return apperror.NewValidation("remaining quantity out of range").WithDetail("line_id", lineID.String())
		}
		l.RemainingQuantity = remaining
		st.lines[lineID] = l
		return nil
	})
}

func (r *RestockRepo) CreateItem(ctx context.Context, item *restock.InventoryItem) error {
	return r.store.write(ctx, func(st *state) error {
		for _, existing := range st.items {
			if existing.SKU == item.SKU && existing.Scope == item.Scope {
				return apperror.NewConflict("item with this sku already exists in scope").WithDetail("sku", item.SKU)
			}
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (r *RestockRepo) GetItem(ctx context.Context, itemID id.ID) (*restock.InventoryItem, error) {
	var out restock.InventoryItem
	err := r.store.read(ctx, func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return apperror.NewNotFound("inventory item", itemID.String())
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RestockRepo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*restock.InventoryItem, error) {
	return r.GetItem(ctx, itemID)
}

func (r *RestockRepo) UpdateItemStock(ctx context.Context, itemID id.ID, stock types.Quantity) error {
	return r.store.write(ctx, func(st *state) error {
		item, ok := st.items[itemID]
		if !ok {
			return apperror.NewNotFound("inventory item", itemID.String())
		}
		item.CurrentStock = stock
		st.items[itemID] = item
		return nil
	})
}

func (r *RestockRepo) ListPending(ctx context.Context, f restock.PendingFilter) ([]restock.PendingRow, error) {
	var out []restock.PendingRow
	err := r.store.read(ctx, func(st *state) error {
		for _, l := range st.lines {
			if l.RemainingQuantity == 0 || !matchesPending(l, f) {
				continue
			}
			ret := st.returns[l.ReturnID]
			if f.CreatedFrom != nil && ret.CreatedAt.Before(*f.CreatedFrom) {
				continue
			}
			if f.CreatedTo != nil && !ret.CreatedAt.Before(*f.CreatedTo) {
				continue
			}
			item := st.items[l.InventoryItemID]
			row := restock.PendingRow{
				LineID:            l.ID,
				ReturnID:          ret.ID,
				ReturnStatus:      ret.Status,
				SaleID:            ret.SaleID,
				ItemID:            item.ID,
				SKU:               item.SKU,
				ItemName:          item.Name,
				OriginalQuantity:  l.OriginalQuantity,
				RemainingQuantity: l.RemainingQuantity,
				State:             l.State(),
				Scope:             l.Scope,
				CreatedBy:         ret.CreatedBy,
				CreatedAt:         ret.CreatedAt,
			}
			if ret.SaleID != nil {
				row.CustomerName = st.sales[*ret.SaleID].CustomerName
			}
			out = append(out, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b restock.PendingRow) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareIDs(a.LineID, b.LineID)
	})
	return paginate(out, f.Limit, f.Offset), nil
}

func matchesPending(l restock.ReturnLine, f restock.PendingFilter) bool {
	if f.ReturnID != nil && l.ReturnID != *f.ReturnID {
		return false
	}
	if f.ItemID != nil && l.InventoryItemID != *f.ItemID {
		return false
	}
	if len(f.Scopes) > 0 && !slices.Contains(f.Scopes, l.Scope) {
		return false
	}
	if len(f.States) > 0 && !slices.Contains(f.States, l.State()) {
		return false
	}
	return true
}

func (r *RestockRepo) CreateMovement(ctx context.Context, m *restock.StockMovement) error {
	return r.store.write(ctx, func(st *state) error {
		st.movements = append(st.movements, *m)
		return nil
	})
}

// Movements returns the movement log of an item, oldest first.
func (r *RestockRepo) Movements(ctx context.Context, itemID id.ID) []restock.StockMovement {
	var out []restock.StockMovement
	_ = r.store.read(ctx, func(st *state) error {
		for _, m := range st.movements {
			if m.ItemID == itemID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out
}
