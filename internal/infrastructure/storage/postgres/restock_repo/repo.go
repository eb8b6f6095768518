// Package restock_repo provides the PostgreSQL implementation of returns,
// their lines, inventory stock and the stock movement log.
package restock_repo

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
	"retailledger/internal/domain/restock"
	"retailledger/internal/infrastructure/storage/postgres"
)

// Repo implements restock.Repository and restock.MovementLog.
type Repo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var (
	_ restock.Repository  = (*Repo)(nil)
	_ restock.MovementLog = (*Repo)(nil)
)

// New creates the restock repository.
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

func (r *Repo) get(ctx context.Context, dst any, q squirrel.Sqlizer, entity string, entityID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), dst, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, entityID.String())
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

func (r *Repo) updateOne(ctx context.Context, table, entity string, entityID id.ID, set map[string]any) error {
	set["updated_at"] = time.Now().UTC()
	n, err := r.exec(ctx, r.builder.Update(table).SetMap(set).Where(squirrel.Eq{"id": entityID}))
	if err != nil {
		return fmt.Errorf("update %s: %w", entity, err)
	}
	if n == 0 {
		return apperror.NewNotFound(entity, entityID.String())
	}
	return nil
}

// --- Returns ---

// CreateReturn inserts the return header and its lines.
func (r *Repo) CreateReturn(ctx context.Context, ret *restock.Return) error {
	q := r.builder.Insert(returnsTable).SetMap(postgres.StructToMap(returnRow{
		ID:        ret.ID,
		SaleID:    ret.SaleID,
		Status:    string(ret.Status),
		ScopeKind: string(ret.Scope.Kind),
		ScopeID:   ret.Scope.ID,
		CreatedBy: ret.CreatedBy,
		CreatedAt: ret.CreatedAt,
		UpdatedAt: ret.UpdatedAt,
	}))
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert return: %w", err)
	}
	return r.insertLines(ctx, ret.Lines)
}

func (r *Repo) insertLines(ctx context.Context, lines []restock.ReturnLine) error {
	if len(lines) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, lineCopyValues(l))
	}

	// Fast path: COPY when inside a transaction.
	if r.txm.GetTx(ctx) != nil {
		if _, err := postgres.NewBatchInserter(r.txm).CopyFromSlice(ctx, linesTable, lineColumns, rows); err != nil {
			return fmt.Errorf("copy return lines: %w", err)
		}
		return nil
	}

	q := r.builder.Insert(linesTable).Columns(lineColumns...)
	for _, row := range rows {
		q = q.Values(row...)
	}
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert return lines: %w", err)
	}
	return nil
}

func (r *Repo) saleExistsQuery(saleID id.ID) squirrel.SelectBuilder {
	return r.builder.Select("1").From(salesTable).Where(squirrel.Eq{"id": saleID}).Prefix("SELECT EXISTS (").Suffix(")")
}

func (r *Repo) SaleExists(ctx context.Context, saleID id.ID) (bool, error) {
	sql, args, err := r.saleExistsQuery(saleID).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var ok bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("check sale: %w", err)
	}
	return ok, nil
}

func (r *Repo) selectReturn(returnID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(returnColumns...).From(returnsTable).Where(squirrel.Eq{"id": returnID})
}

func (r *Repo) GetReturn(ctx context.Context, returnID id.ID) (*restock.Return, error) {
	var row returnRow
	if err := r.get(ctx, &row, r.selectReturn(returnID), "return", returnID); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Repo) GetReturnForUpdate(ctx context.Context, returnID id.ID) (*restock.Return, error) {
	var row returnRow
	if err := r.get(ctx, &row, r.selectReturn(returnID).Suffix("FOR UPDATE"), "return", returnID); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Repo) UpdateReturnStatus(ctx context.Context, returnID id.ID, status restock.ReturnStatus) error {
	return r.updateOne(ctx, returnsTable, "return", returnID, map[string]any{"status": string(status)})
}

// --- Lines ---

func (r *Repo) ListLines(ctx context.Context, returnID id.ID) ([]restock.ReturnLine, error) {
	sql, args, err := r.builder.
		Select(lineColumns...).
		From(linesTable).
		Where(squirrel.Eq{"return_id": returnID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []lineRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list return lines: %w", err)
	}
	lines := make([]restock.ReturnLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, row.toDomain())
	}
	return lines, nil
}

func (r *Repo) GetLineForUpdate(ctx context.Context, lineID id.ID) (*restock.ReturnLine, error) {
	q := r.builder.Select(lineColumns...).From(linesTable).Where(squirrel.Eq{"id": lineID}).Suffix("FOR UPDATE")
	var row lineRow
	if err := r.get(ctx, &row, q, "return line", lineID); err != nil {
		return nil, err
	}
	line := row.toDomain()
	return &line, nil
}

func (r *Repo) UpdateLineRemaining(ctx context.Context, lineID id.ID, remaining types.Quantity) error {
	return r.updateOne(ctx, linesTable, "return line", lineID, map[string]any{"remaining_quantity": remaining.Int64Scaled()})
}

// --- Inventory ---

func (r *Repo) CreateItem(ctx context.Context, item *restock.InventoryItem) error {
	q := r.builder.Insert(itemsTable).SetMap(postgres.StructToMap(itemRow{
		ID:           item.ID,
		SKU:          item.SKU,
		Name:         item.Name,
		ScopeKind:    string(item.Scope.Kind),
		ScopeID:      item.Scope.ID,
		CurrentStock: item.CurrentStock,
		UpdatedAt:    item.UpdatedAt,
	}))
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert inventory item: %w", err)
	}
	return nil
}

func (r *Repo) selectItem(itemID id.ID) squirrel.SelectBuilder {
	return r.builder.Select(itemColumns...).From(itemsTable).Where(squirrel.Eq{"id": itemID})
}

func (r *Repo) GetItem(ctx context.Context, itemID id.ID) (*restock.InventoryItem, error) {
	var row itemRow
	if err := r.get(ctx, &row, r.selectItem(itemID), "inventory item", itemID); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Repo) GetItemForUpdate(ctx context.Context, itemID id.ID) (*restock.InventoryItem, error) {
	var row itemRow
	if err := r.get(ctx, &row, r.selectItem(itemID).Suffix("FOR UPDATE"), "inventory item", itemID); err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *Repo) UpdateItemStock(ctx context.Context, itemID id.ID, stock types.Quantity) error {
	return r.updateOne(ctx, itemsTable, "inventory item", itemID, map[string]any{"current_stock": stock.Int64Scaled()})
}

// --- Pending listing ---

func scopeCondition(prefix string, scopes []security.Scope) squirrel.Or {
	or := make(squirrel.Or, 0, len(scopes))
	for _, s := range scopes {
		or = append(or, squirrel.And{
			squirrel.Eq{prefix + "scope_kind": string(s.Kind)},
			squirrel.Eq{prefix + "scope_id": s.ID},
		})
	}
	return or
}

func (r *Repo) pendingQuery(f restock.PendingFilter) squirrel.SelectBuilder {
	q := r.builder.
		Select(
			"l.id AS line_id",
			"l.return_id",
			"r.status AS return_status",
			"r.sale_id",
			"COALESCE(s.customer_name, '') AS customer_name",
			"i.id AS item_id",
			"i.sku",
			"i.name AS item_name",
			"l.original_quantity",
			"l.remaining_quantity",
			"l.scope_kind",
			"l.scope_id",
			"r.created_by",
			"l.created_at",
		).
		From(linesTable + " l").
		Join(returnsTable + " r ON r.id = l.return_id").
		Join(itemsTable + " i ON i.id = l.inventory_item_id").
		LeftJoin("sales s ON s.id = r.sale_id").
		Where("l.remaining_quantity > 0")

	if f.ReturnID != nil {
		q = q.Where(squirrel.Eq{"l.return_id": *f.ReturnID})
	}
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"l.inventory_item_id": *f.ItemID})
	}
	if len(f.Scopes) > 0 {
		q = q.Where(scopeCondition("l.", f.Scopes))
	}
	if len(f.States) == 1 {
		switch f.States[0] {
		case restock.LinePending:
			q = q.Where("l.remaining_quantity = l.original_quantity")
		case restock.LinePartial:
			q = q.Where("l.remaining_quantity < l.original_quantity")
		}
	}
	if f.CreatedFrom != nil {
		q = q.Where(squirrel.GtOrEq{"l.created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		q = q.Where(squirrel.Lt{"l.created_at": *f.CreatedTo})
	}

	return q.OrderBy("l.created_at", "l.id").Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
}

func (r *Repo) ListPending(ctx context.Context, f restock.PendingFilter) ([]restock.PendingRow, error) {
	sql, args, err := r.pendingQuery(f).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []pendingRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list pending restocks: %w", err)
	}
	out := make([]restock.PendingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// --- Movements ---

func (r *Repo) CreateMovement(ctx context.Context, m *restock.StockMovement) error {
	q := r.builder.Insert(movementsTable).SetMap(postgres.StructToMap(movementRow{
		ID:            m.ID,
		ItemID:        m.ItemID,
		Quantity:      m.Quantity,
		StockBefore:   m.StockBefore,
		StockAfter:    m.StockAfter,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		ReturnID:      m.ReturnID,
		ScopeKind:     string(m.Scope.Kind),
		ScopeID:       m.Scope.ID,
		ActorID:       m.ActorID,
		CreatedAt:     m.CreatedAt,
	}))
	if _, err := r.exec(ctx, q); err != nil {
		return fmt.Errorf("insert stock movement: %w", err)
	}
	return nil
}
