package memory

import (
	"context"
	"slices"
	"strings"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/domain/settlement"
)

// SaleRepo implements settlement.Repository.
type SaleRepo struct {
	store *Store
}

var _ settlement.Repository = (*SaleRepo)(nil)

func NewSaleRepo(store *Store) *SaleRepo {
	return &SaleRepo{store: store}
}

func (r *SaleRepo) CreateSale(ctx context.Context, sale *settlement.Sale) error {
	return r.store.write(ctx, func(st *state) error {
		if !sale.PaymentAmount.Add(sale.CreditAmount).Equal(sale.Total) {
			return apperror.NewValidation("payment and credit must add up to the total")
		}
		st.sales[sale.ID] = *sale
		return nil
	})
}

func (r *SaleRepo) GetSale(ctx context.Context, saleID id.ID) (*settlement.Sale, error) {
	var out settlement.Sale
	err := r.store.read(ctx, func(st *state) error {
		sale, ok := st.sales[saleID]
		if !ok {
			return apperror.NewNotFound("sale", saleID.String())
		}
		out = sale
		out.OutstandingAmount = st.outstanding()[saleID]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// outstanding returns the signed open amount of every sale. A sale on an
// account carries its debt through the SALE credit posted to the ledger; a
// walk-in sale starts from its credit part. Ledger entries referencing the
// sale, or a return linked to it, move the amount.
func (st *state) outstanding() map[id.ID]types.Money {
	out := make(map[id.ID]types.Money, len(st.sales))
	for saleID, sale := range st.sales {
		if sale.AccountID == nil {
			out[saleID] = sale.CreditAmount
		} else {
			out[saleID] = types.Zero()
		}
	}

	for _, t := range st.transactions {
		saleID, ok := st.saleOf(t.Reference)
		if !ok {
			continue
		}
		out[saleID] = out[saleID].Add(t.Type.Effect(t.Amount))
	}
	return out
}

func (st *state) saleOf(ref ledger.Reference) (id.ID, bool) {
	switch ref.Type {
	case ledger.RefSale, ledger.RefPayment, ledger.RefReturn:
	default:
		return id.ID{}, false
	}
	refID, err := id.Parse(ref.ID)
	if err != nil {
		return id.ID{}, false
	}
	if _, ok := st.sales[refID]; ok {
		return refID, true
	}
	if ref.Type == ledger.RefReturn {
		if ret, ok := st.returns[refID]; ok && ret.SaleID != nil {
			if _, ok := st.sales[*ret.SaleID]; ok {
				return *ret.SaleID, true
			}
		}
	}
	return id.ID{}, false
}

func (r *SaleRepo) AggregateOutstanding(ctx context.Context, f settlement.OutstandingFilter) ([]settlement.OutstandingBalance, error) {
	type key struct{ name, phone string }
	groups := make(map[key]*settlement.OutstandingBalance)

	err := r.store.read(ctx, func(st *state) error {
		open := st.outstanding()
		for _, sale := range st.sales {
			amount := open[sale.ID]
			if amount.IsZero() {
				continue
			}
			if !f.Unrestricted && !slices.Contains(f.Scopes, sale.Scope) {
				continue
			}
			if f.Phone != "" && sale.CustomerPhone != f.Phone {
				continue
			}
			if f.Name != "" && !strings.EqualFold(sale.CustomerName, f.Name) {
				continue
			}

			k := key{sale.CustomerName, sale.CustomerPhone}
			g, ok := groups[k]
			if !ok {
				g = &settlement.OutstandingBalance{AccountName: k.name, Phone: k.phone, TotalOutstanding: types.Zero()}
				groups[k] = g
			}
			g.TotalOutstanding = g.TotalOutstanding.Add(amount)
			g.PendingSalesCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]settlement.OutstandingBalance, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b settlement.OutstandingBalance) int {
		if c := strings.Compare(a.AccountName, b.AccountName); c != 0 {
			return c
		}
		return strings.Compare(a.Phone, b.Phone)
	})
	return out, nil
}
