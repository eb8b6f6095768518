// Package sale_repo provides the PostgreSQL implementation of the sales repository.
package sale_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/settlement"
	"retailledger/internal/infrastructure/storage/postgres"
)

const salesTable = "sales"

// outstandingJoin computes o.amount, the signed amount still open on sale s.
// A sale on an account carries its debt through the SALE credit posted to the
// ledger; a walk-in sale starts from its credit part. Ledger entries
// referencing the sale, or a return linked to it, move the amount.
const outstandingJoin = "CROSS JOIN LATERAL (" +
	"SELECT CASE WHEN s.account_id IS NULL THEN s.credit_amount ELSE 0 END" +
	" + COALESCE(SUM(CASE WHEN t.type = 'CREDIT' THEN t.amount ELSE -t.amount END), 0) AS amount" +
	" FROM credit_debit_transactions t" +
	" WHERE (t.reference_type IN ('SALE', 'PAYMENT', 'RETURN') AND t.reference_id = s.id::text)" +
	" OR (t.reference_type = 'RETURN' AND t.reference_id IN (SELECT r.id::text FROM sales_returns r WHERE r.sale_id = s.id))" +
	") o"

type saleRow struct {
	ID                  id.ID       `db:"id"`
	Number              string      `db:"number"`
	ScopeKind           string      `db:"scope_kind"`
	ScopeID             string      `db:"scope_id"`
	AccountID           *id.ID      `db:"account_id"`
	CustomerName        string      `db:"customer_name"`
	CustomerPhone       string      `db:"customer_phone"`
	Total               types.Money `db:"total"`
	PaymentAmount       types.Money `db:"payment_amount"`
	CreditAmount        types.Money `db:"credit_amount"`
	PaymentStatus       string      `db:"payment_status"`
	LedgerTransactionID *id.ID      `db:"ledger_transaction_id"`
	CreatedBy           string      `db:"created_by"`
	CreatedAt           time.Time   `db:"created_at"`
}

var saleColumns = postgres.ExtractDBColumns[saleRow]()

// saleView is a sale read together with its outstanding amount.
type saleView struct {
	saleRow
	OutstandingAmount types.Money `db:"outstanding_amount"`
}

func (r saleView) toDomain() *settlement.Sale {
	return &settlement.Sale{
		ID:                  r.ID,
		Number:              r.Number,
		Scope:               security.Scope{Kind: security.ScopeKind(r.ScopeKind), ID: r.ScopeID},
		AccountID:           r.AccountID,
		CustomerName:        r.CustomerName,
		CustomerPhone:       r.CustomerPhone,
		Total:               r.Total,
		PaymentAmount:       r.PaymentAmount,
		CreditAmount:        r.CreditAmount,
		OutstandingAmount:   r.OutstandingAmount,
		PaymentStatus:       settlement.PaymentStatus(r.PaymentStatus),
		LedgerTransactionID: r.LedgerTransactionID,
		CreatedBy:           r.CreatedBy,
		CreatedAt:           r.CreatedAt,
	}
}

// Repo implements settlement.Repository.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ settlement.Repository = (*Repo)(nil)

// New creates the sales repository.
func New(txm *postgres.TxManager) *Repo {
	return &Repo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *Repo) CreateSale(ctx context.Context, s *settlement.Sale) error {
	sql, args, err := r.builder.Insert(salesTable).SetMap(postgres.StructToMap(saleRow{
		ID:                  s.ID,
		Number:              s.Number,
		ScopeKind:           string(s.Scope.Kind),
		ScopeID:             s.Scope.ID,
		AccountID:           s.AccountID,
		CustomerName:        s.CustomerName,
		CustomerPhone:       s.CustomerPhone,
		Total:               s.Total,
		PaymentAmount:       s.PaymentAmount,
		CreditAmount:        s.CreditAmount,
		PaymentStatus:       string(s.PaymentStatus),
		LedgerTransactionID: s.LedgerTransactionID,
		CreatedBy:           s.CreatedBy,
		CreatedAt:           s.CreatedAt,
	})).ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert sale: %w", err)
	}
	return nil
}

func (r *Repo) selectSale(saleID id.ID) squirrel.SelectBuilder {
	cols := make([]string, 0, len(saleColumns)+1)
	for _, c := range saleColumns {
		cols = append(cols, "s."+c)
	}
	return r.builder.
		Select(append(cols, "o.amount AS outstanding_amount")...).
		From(salesTable + " s").
		JoinClause(outstandingJoin).
		Where(squirrel.Eq{"s.id": saleID})
}

func (r *Repo) GetSale(ctx context.Context, saleID id.ID) (*settlement.Sale, error) {
	sql, args, err := r.selectSale(saleID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row saleView
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("sale", saleID.String())
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	return row.toDomain(), nil
}

func (r *Repo) outstandingQuery(f settlement.OutstandingFilter) squirrel.SelectBuilder {
	q := r.builder.
		Select(
			"s.customer_name AS account_name",
			"s.customer_phone AS phone",
			"SUM(o.amount) AS total_outstanding",
			"COUNT(*) AS pending_sales_count",
		).
		From(salesTable + " s").
		JoinClause(outstandingJoin).
		Where("o.amount <> 0")

	if f.Phone != "" {
		q = q.Where(squirrel.Eq{"s.customer_phone": f.Phone})
	}
	if f.Name != "" {
		q = q.Where("lower(s.customer_name) = lower(?)", f.Name)
	}
	if !f.Unrestricted {
		or := make(squirrel.Or, 0, len(f.Scopes))
		for _, sc := range f.Scopes {
			or = append(or, squirrel.And{squirrel.Eq{"s.scope_kind": string(sc.Kind)}, squirrel.Eq{"s.scope_id": sc.ID}})
		}
		q = q.Where(or)
	}

	return q.GroupBy("s.customer_name", "s.customer_phone").OrderBy("s.customer_name", "s.customer_phone")
}

// AggregateOutstanding sums the open amount of every matching sale per (customer name, phone).
func (r *Repo) AggregateOutstanding(ctx context.Context, f settlement.OutstandingFilter) ([]settlement.OutstandingBalance, error) {
	if !f.Unrestricted && len(f.Scopes) == 0 {
		return []settlement.OutstandingBalance{}, nil
	}

	sql, args, err := r.outstandingQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []struct {
		AccountName       string      `db:"account_name"`
		Phone             string      `db:"phone"`
		TotalOutstanding  types.Money `db:"total_outstanding"`
		PendingSalesCount int         `db:"pending_sales_count"`
	}
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("aggregate outstanding: %w", err)
	}

	out := make([]settlement.OutstandingBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, settlement.OutstandingBalance{
			AccountName:       row.AccountName,
			Phone:             row.Phone,
			TotalOutstanding:  row.TotalOutstanding,
			PendingSalesCount: row.PendingSalesCount,
			IsCredit:          row.TotalOutstanding.IsNegative(),
		})
	}
	return out, nil
}
