package memory

import (
	"bytes"
	"context"
	"slices"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	store *Store
}

var _ ledger.Repository = (*LedgerRepo)(nil)

func NewLedgerRepo(store *Store) *LedgerRepo {
	return &LedgerRepo{store: store}
}

func (r *LedgerRepo) CreateAccount(ctx context.Context, acc *ledger.Account) error {
	return r.store.write(ctx, func(st *state) error {
		if _, exists := st.accounts[acc.ID]; exists {
			return apperror.NewConflict("account already exists").WithDetail("id", acc.ID.String())
		}
		st.accounts[acc.ID] = *acc
		return nil
	})
}

func (r *LedgerRepo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	var out ledger.Account
	err := r.store.read(ctx, func(st *state) error {
		acc, ok := st.accounts[accountID]
		if !ok {
			return apperror.NewNotFound("account", accountID.String())
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccountForUpdate is a plain read: the write slot held by the
// transaction already excludes every other writer.
func (r *LedgerRepo) GetAccountForUpdate(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	return r.GetAccount(ctx, accountID)
}

func (r *LedgerRepo) UpdateAccountBalance(ctx context.Context, accountID id.ID, balance types.Money) error {
	return r.store.write(ctx, func(st *state) error {
		acc, ok := st.accounts[accountID]
		if !ok {
			return apperror.NewNotFound("account", accountID.String())
		}
		acc.CurrentBalance = balance
		st.accounts[accountID] = acc
		return nil
	})
}

func (r *LedgerRepo) UpdateAccountStatus(ctx context.Context, accountID id.ID, status ledger.AccountStatus) error {
	return r.store.write(ctx, func(st *state) error {
		acc, ok := st.accounts[accountID]
		if !ok {
			return apperror.NewNotFound("account", accountID.String())
		}
		acc.Status = status
		st.accounts[accountID] = acc
		return nil
	})
}

func (r *LedgerRepo) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.accounts[t.AccountID]; !ok {
			return apperror.NewNotFound("account", t.AccountID.String())
		}
		st.transactions[t.ID] = *t
		return nil
	})
}

func (r *LedgerRepo) GetTransaction(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	var out ledger.Transaction
	err := r.store.read(ctx, func(st *state) error {
		t, ok := st.transactions[txID]
		if !ok {
			return apperror.NewNotFound("transaction", txID.String())
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *LedgerRepo) GetTransactionForUpdate(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	return r.GetTransaction(ctx, txID)
}

func (r *LedgerRepo) UpdateTransaction(ctx context.Context, t *ledger.Transaction, prevVersion int) error {
	return r.store.write(ctx, func(st *state) error {
		stored, ok := st.transactions[t.ID]
		if !ok {
			return apperror.NewNotFound("transaction", t.ID.String())
		}
		if stored.Version != prevVersion {
			return apperror.NewVersionConflict("credit_debit_transaction", t.ID.String(), prevVersion, stored.Version)
		}
		st.transactions[t.ID] = *t
		return nil
	})
}

func (r *LedgerRepo) DeleteTransaction(ctx context.Context, txID id.ID) error {
	return r.store.write(ctx, func(st *state) error {
		if _, ok := st.transactions[txID]; !ok {
			return apperror.NewNotFound("transaction", txID.String())
		}
		delete(st.transactions, txID)
		return nil
	})
}

func (r *LedgerRepo) ListTransactions(ctx context.Context, accountID id.ID, limit, offset int) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	err := r.store.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.AccountID == accountID {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// UUIDv7 ids sort by creation time
	slices.SortFunc(out, func(a, b ledger.Transaction) int {
		return -compareIDs(a.ID, b.ID)
	})
	return paginate(out, limit, offset), nil
}

func (r *LedgerRepo) Summarize(ctx context.Context, accountID id.ID) (ledger.Totals, error) {
	totals := ledger.Totals{TotalCredit: types.Zero(), TotalDebit: types.Zero()}
	err := r.store.read(ctx, func(st *state) error {
		for _, t := range st.transactions {
			if t.AccountID != accountID {
				continue
			}
			totals.Count++
			if t.Type == ledger.Credit {
				totals.TotalCredit = totals.TotalCredit.Add(t.Amount)
			} else {
				totals.TotalDebit = totals.TotalDebit.Add(t.Amount)
			}
		}
		return nil
	})
	return totals, err
}

func (r *LedgerRepo) ListBalanceChecks(ctx context.Context) ([]ledger.BalanceCheck, error) {
	var out []ledger.BalanceCheck
	err := r.store.read(ctx, func(st *state) error {
		computed := make(map[id.ID]types.Money, len(st.accounts))
		for _, t := range st.transactions {
			computed[t.AccountID] = computed[t.AccountID].Add(t.Effect())
		}
		for _, acc := range st.accounts {
			out = append(out, ledger.BalanceCheck{
				AccountID: acc.ID,
				Stored:    acc.CurrentBalance,
				Computed:  computed[acc.ID],
			})
		}
		return nil
	})
	slices.SortFunc(out, func(a, b ledger.BalanceCheck) int { return compareIDs(a.AccountID, b.AccountID) })
	return out, err
}

func compareIDs(a, b id.ID) int {
	return bytes.Compare(a[:], b[:])
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
