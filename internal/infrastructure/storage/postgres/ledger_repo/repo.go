// Package ledger_repo provides the PostgreSQL implementation of the ledger repository.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/infrastructure/storage/postgres"
)

// Repo implements ledger.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ ledger.Repository = (*Repo)(nil)

// New creates the ledger repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *Repo) CreateAccount(ctx context.Context, acc *ledger.Account) error {
	q := r.builder.Insert(accountsTable).SetMap(postgres.StructToMap(accountToRow(acc)))
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *Repo) selectAccount(accountID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"id": accountID})
}

func (r *Repo) getAccount(ctx context.Context, q squirrel.SelectBuilder, accountID id.ID) (*ledger.Account, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row accountRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("account", accountID.String())
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repo) GetAccount(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	return r.getAccount(ctx, r.selectAccount(accountID), accountID)
}

// GetAccountForUpdate locks the account row until the transaction ends.
func (r *Repo) GetAccountForUpdate(ctx context.Context, accountID id.ID) (*ledger.Account, error) {
	return r.getAccount(ctx, r.selectAccount(accountID).Suffix("FOR UPDATE"), accountID)
}

func (r *Repo) UpdateAccountBalance(ctx context.Context, accountID id.ID, balance types.Money) error {
	return r.updateAccount(ctx, accountID, map[string]any{"current_balance": balance})
}

func (r *Repo) UpdateAccountStatus(ctx context.Context, accountID id.ID, status ledger.AccountStatus) error {
	return r.updateAccount(ctx, accountID, map[string]any{"status": string(status)})
}

func (r *Repo) updateAccount(ctx context.Context, accountID id.ID, set map[string]any) error {
	set["updated_at"] = time.Now().UTC()
	n, err := r.exec(ctx, r.builder.Update(accountsTable).SetMap(set).Where(squirrel.Eq{"id": accountID}))
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("account", accountID.String())
	}
	return nil
}

func (r *Repo) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	q := r.builder.Insert(transactionsTable).SetMap(postgres.StructToMap(transactionToRow(t)))
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *Repo) selectTransaction(txID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"id": txID})
}

func (r *Repo) getTransaction(ctx context.Context, q squirrel.SelectBuilder, txID id.ID) (*ledger.Transaction, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row transactionRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("transaction", txID.String())
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repo) GetTransaction(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	return r.getTransaction(ctx, r.selectTransaction(txID), txID)
}

func (r *Repo) GetTransactionForUpdate(ctx context.Context, txID id.ID) (*ledger.Transaction, error) {
	return r.getTransaction(ctx, r.selectTransaction(txID).Suffix("FOR UPDATE"), txID)
}

// UpdateTransaction rewrites the mutable columns when the stored version is prevVersion.
func (r *Repo) UpdateTransaction(ctx context.Context, t *ledger.Transaction, prevVersion int) error {
	q := r.builder.Update(transactionsTable).
		SetMap(map[string]any{
			"type":        string(t.Type),
			"amount":      t.Amount,
			"description": t.Description,
			"version":     t.Version,
			"updated_at":  t.UpdatedAt,
		}).
		Where(squirrel.Eq{"id": t.ID, "version": prevVersion})

	n, err := r.exec(ctx, q)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n == 0 {
		return apperror.NewConflict("transaction was modified concurrently").WithDetail("id", t.ID.String())
	}
	return nil
}

func (r *Repo) DeleteTransaction(ctx context.Context, txID id.ID) error {
	n, err := r.exec(ctx, r.builder.Delete(transactionsTable).Where(squirrel.Eq{"id": txID}))
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("transaction", txID.String())
	}
	return nil
}

func (r *Repo) listTransactionsQuery(accountID id.ID, limit, offset int) squirrel.SelectBuilder {
	return r.builder.
		Select(transactionColumns...).
		From(transactionsTable).
		Where(squirrel.Eq{"account_id": accountID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset))
}

func (r *Repo) ListTransactions(ctx context.Context, accountID id.ID, limit, offset int) ([]ledger.Transaction, error) {
	sql, args, err := r.listTransactionsQuery(accountID, limit, offset).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []transactionRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row.toDomain())
	}
	return out, nil
}

func (r *Repo) summarizeQuery(accountID id.ID) squirrel.SelectBuilder {
	return r.builder.
		Select(
			"COALESCE(SUM(amount) FILTER (WHERE type = 'CREDIT'), 0) AS total_credit",
			"COALESCE(SUM(amount) FILTER (WHERE type = 'DEBIT'), 0) AS total_debit",
			"COUNT(*) AS count",
		).
		From(transactionsTable).
		Where(squirrel.Eq{"account_id": accountID})
}

func (r *Repo) Summarize(ctx context.Context, accountID id.ID) (ledger.Totals, error) {
	sql, args, err := r.summarizeQuery(accountID).ToSql()
	if err != nil {
		return ledger.Totals{}, fmt.Errorf("build query: %w", err)
	}
	var row struct {
		TotalCredit types.Money `db:"total_credit"`
		TotalDebit  types.Money `db:"total_debit"`
		Count       int         `db:"count"`
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		return ledger.Totals{}, fmt.Errorf("summarize: %w", err)
	}
	return ledger.Totals{TotalCredit: row.TotalCredit, TotalDebit: row.TotalDebit, Count: row.Count}, nil
}

// ListBalanceChecks recomputes every balance from the log in one pass.
func (r *Repo) ListBalanceChecks(ctx context.Context) ([]ledger.BalanceCheck, error) {
	const sql = `
		SELECT a.id AS account_id,
		       a.current_balance AS stored,
		       COALESCE(SUM(CASE WHEN t.type = 'CREDIT' THEN t.amount ELSE -t.amount END), 0) AS computed
		FROM accounts a
		LEFT JOIN credit_debit_transactions t ON t.account_id = a.id
		GROUP BY a.id, a.current_balance
		ORDER BY a.id`

	var rows []struct {
		AccountID id.ID       `db:"account_id"`
		Stored    types.Money `db:"stored"`
		Computed  types.Money `db:"computed"`
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql); err != nil {
		return nil, fmt.Errorf("balance checks: %w", err)
	}
	out := make([]ledger.BalanceCheck, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.BalanceCheck{AccountID: row.AccountID, Stored: row.Stored, Computed: row.Computed})
	}
	return out, nil
}
