package restock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/tx"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/audit"
	"retailledger/pkg/logger"
)

var tracer = otel.Tracer("retailledger/restock")

// movementWriteTimeout bounds the post-commit movement write.
const movementWriteTimeout = 3 * time.Second

// Service is the restock state machine.
type Service struct {
	repo      Repository
	movements MovementLog
	txm       tx.Manager
	gate      *security.Gate
	audit     audit.Recorder
	timeout   time.Duration
	now       func() time.Time
}

// NewService creates the restock service. timeout bounds each restock, lock waits included.
func NewService(repo Repository, movements MovementLog, txm tx.Manager, gate *security.Gate, timeout time.Duration) *Service {
	return &Service{
		repo:      repo,
		movements: movements,
		txm:       txm,
		gate:      gate,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditRecorder enables the post-commit audit trail.
func (s *Service) SetAuditRecorder(rec audit.Recorder) { s.audit = rec }

// RegisterItem adds an inventory item.
func (s *Service) RegisterItem(ctx context.Context, in NewItem) (*InventoryItem, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	if in.SKU == "" {
		return nil, apperror.NewValidation("sku is required")
	}
	if in.InitialStock.IsNegative() {
		return nil, apperror.NewValidation("initial stock must not be negative")
	}
	if err := in.Scope.Validate(); err != nil {
		return nil, err
	}
	if err := s.gate.AuthorizeWrite(ctx, in.Scope); err != nil {
		return nil, err
	}

	item := &InventoryItem{
		ID:           id.New(),
		SKU:          in.SKU,
		Name:         strings.TrimSpace(in.Name),
		Scope:        in.Scope,
		CurrentStock: in.InitialStock,
		UpdatedAt:    s.now(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	return item, nil
}

// GetItem returns an inventory item visible to the actor.
func (s *Service) GetItem(ctx context.Context, itemID id.ID) (*InventoryItem, error) {
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, item.Scope); err != nil {
		return nil, err
	}
	return item, nil
}

// CreateReturn registers a return with every line pending. The actor must be
// allowed to write both the return's scope and the scope of every returned
// item, since restocking a line later moves that item's stock.
func (s *Service) CreateReturn(ctx context.Context, in NewReturn) (*Return, error) {
	if len(in.Lines) == 0 {
		return nil, apperror.NewValidation("return must have at least one line")
	}
	if err := in.Scope.Validate(); err != nil {
		return nil, err
	}
	for i, l := range in.Lines {
		if !l.Quantity.IsPositive() {
			return nil, apperror.NewInvalidQuantity(l.Quantity.String()).WithDetail("line", i)
		}
	}
	if err := s.gate.AuthorizeWrite(ctx, in.Scope); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	r := &Return{
		ID:        id.New(),
		SaleID:    in.SaleID,
		Status:    ReturnPending,
		Scope:     in.Scope,
		CreatedBy: appctx.GetUserID(ctx),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if in.SaleID != nil {
			ok, err := s.repo.SaleExists(ctx, *in.SaleID)
			if err != nil {
				return fmt.Errorf("check sale: %w", err)
			}
			if !ok {
				return apperror.NewNotFound("sale", in.SaleID.String())
			}
		}
		for i, l := range in.Lines {
			item, err := s.repo.GetItem(ctx, l.InventoryItemID)
			if err != nil {
				return err
			}
			if err := s.gate.AuthorizeWrite(ctx, item.Scope); err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					return appErr.WithDetail("line", i).WithDetail("item_id", item.ID.String())
				}
				return err
			}
			r.Lines = append(r.Lines, ReturnLine{
				ID:                id.New(),
				ReturnID:          r.ID,
				InventoryItemID:   l.InventoryItemID,
				OriginalQuantity:  l.Quantity,
				RemainingQuantity: l.Quantity,
				Scope:             in.Scope,
				CreatedAt:         now,
				UpdatedAt:         now,
			})
		}
		return s.repo.CreateReturn(ctx, r)
	})
	if err != nil {
		return nil, apperror.Normalize(err)
	}

	logger.Info(ctx, "return registered", "return_id", r.ID, "lines", len(r.Lines))
	return r, nil
}

// GetReturn returns a return with its lines and derived status.
func (s *Service) GetReturn(ctx context.Context, returnID id.ID) (*Return, error) {
	r, err := s.repo.GetReturn(ctx, returnID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, r.Scope); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, returnID)
	if err != nil {
		return nil, fmt.Errorf("list lines: %w", err)
	}
	r.Lines = lines
	return r, nil
}

// Restock puts qty units of a return line back into inventory.
//
// The return row is locked first, then the line, then the inventory item, so
// concurrent restocks of one return serialize and can never overshoot the
// remaining quantity. Requests above the remaining quantity fail; they are
// never clamped.
func (s *Service) Restock(ctx context.Context, returnID, lineID id.ID, qty types.Quantity) (Result, error) {
	if !qty.IsPositive() {
		return Result{}, apperror.NewInvalidQuantity(qty.String())
	}

	ctx, span := tracer.Start(ctx, "restock.Restock", trace.WithAttributes(
		attribute.String("return_id", returnID.String()),
		attribute.String("line_id", lineID.String()),
	))
	defer span.End()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		res      Result
		movement *StockMovement
	)
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ret, err := s.repo.GetReturnForUpdate(ctx, returnID)
		if err != nil {
			return err
		}
		line, err := s.repo.GetLineForUpdate(ctx, lineID)
		if err != nil {
			return err
		}
		if line.ReturnID != ret.ID {
			return apperror.NewNotFound("return line", lineID.String()).WithDetail("return_id", returnID.String())
		}
		if err := s.gate.AuthorizeWrite(ctx, line.Scope); err != nil {
			return err
		}
		if qty > line.RemainingQuantity {
			return apperror.NewExceedsRemaining(line.RemainingQuantity.String(), qty.String()).
				WithDetail("line_id", lineID.String())
		}

		remaining := line.RemainingQuantity - qty
		if err := s.repo.UpdateLineRemaining(ctx, lineID, remaining); err != nil {
			return fmt.Errorf("update line: %w", err)
		}

		item, err := s.repo.GetItemForUpdate(ctx, line.InventoryItemID)
		if err != nil {
			return err
		}
		if err := s.gate.AuthorizeWrite(ctx, item.Scope); err != nil {
			return err
		}
		stockAfter := item.CurrentStock + qty
		if err := s.repo.UpdateItemStock(ctx, item.ID, stockAfter); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		lines, err := s.repo.ListLines(ctx, returnID)
		if err != nil {
			return fmt.Errorf("list lines: %w", err)
		}
		status := DeriveStatus(lines)
		if status != ret.Status {
			if err := s.repo.UpdateReturnStatus(ctx, returnID, status); err != nil {
				return fmt.Errorf("update return status: %w", err)
			}
		}

		res = Result{
			Restocked:      qty,
			RemainingAfter: remaining,
			Completed:      status == ReturnCompleted,
			ReturnStatus:   status,
		}
		movement = &StockMovement{
			ID:            id.New(),
			ItemID:        item.ID,
			Quantity:      qty,
			StockBefore:   item.CurrentStock,
			StockAfter:    stockAfter,
			ReferenceType: MovementReturnRestock,
			ReferenceID:   lineID,
			ReturnID:      returnID,
			Scope:         item.Scope,
			ActorID:       appctx.GetUserID(ctx),
			CreatedAt:     s.now(),
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, apperror.Normalize(err)
	}

	logger.Info(ctx, "return line restocked",
		"return_id", returnID,
		"line_id", lineID,
		"quantity", qty.String(),
		"remaining", res.RemainingAfter.String(),
		"return_status", res.ReturnStatus,
	)

	s.logMovement(ctx, movement)
	audit.RecordBestEffort(ctx, s.audit, audit.Entry{
		EntityType: "sales_return_line",
		EntityID:   lineID,
		Action:     audit.ActionRestock,
		Changes: map[string]any{
			"quantity":      qty.String(),
			"remaining":     res.RemainingAfter.String(),
			"return_status": string(res.ReturnStatus),
		},
	})
	return res, nil
}

// logMovement appends the movement row. Failures are logged only: the
// restock itself has already committed.
func (s *Service) logMovement(ctx context.Context, m *StockMovement) {
	if s.movements == nil || m == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), movementWriteTimeout)
	defer cancel()

	if err := s.movements.CreateMovement(wctx, m); err != nil {
		logger.Warn(ctx, "stock movement write failed",
			"item_id", m.ItemID,
			"line_id", m.ReferenceID,
			"quantity", m.Quantity.String(),
			"error", err,
		)
	}
}

// ListPending lists return lines that still have stock to put back. ADMIN only.
func (s *Service) ListPending(ctx context.Context, filter PendingFilter) ([]PendingRow, error) {
	if err := s.gate.RequireAdmin(ctx); err != nil {
		return nil, err
	}
	for _, st := range filter.States {
		if st != LinePending && st != LinePartial {
			return nil, apperror.NewValidation("state filter accepts PENDING or PARTIAL").WithDetail("state", string(st))
		}
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListPending(ctx, filter)
}

func (s *Service) authorizeRead(ctx context.Context, scope security.Scope) error {
	access, err := s.gate.ReadScope(ctx)
	if err != nil {
		return err
	}
	if !access.CanAccess(scope) {
		return apperror.NewScopeAccessDenied("record is outside of the actor's scope").WithDetail("scope", scope.String())
	}
	return nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
