package restock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailledger/internal/core/apperror"
	appctx "retailledger/internal/core/context"
	"retailledger/internal/core/id"
	"retailledger/internal/core/security"
	"retailledger/internal/core/types"
	"retailledger/internal/domain/restock"
	"retailledger/internal/infrastructure/storage/memory"
)

var warehouse = security.WarehouseScope("w1")

func keeperCtx(wh string) context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{UserID: "keeper-" + wh, Role: appctx.RoleWarehouseKeeper, WarehouseID: wh})
}

func adminCtx() context.Context {
	return appctx.WithActor(context.Background(), &appctx.Actor{UserID: "admin", Role: appctx.RoleAdmin})
}

func units(n int64) types.Quantity { return types.NewQuantityFromUnits(n) }

type fixture struct {
	svc  *restock.Service
	repo *memory.RestockRepo
	ctx  context.Context
}

func newFixture(t *testing.T, movements restock.MovementLog) *fixture {
	t.Helper()
	store := memory.New()
	repo := memory.NewRestockRepo(store)
	if movements == nil {
		movements = repo
	}
	svc := restock.NewService(repo, movements, memory.NewTxManager(store), security.NewGate(), 2*time.Second)
	return &fixture{svc: svc, repo: repo, ctx: keeperCtx("w1")}
}

// newReturn registers an item with initial stock and a return with one line per quantity.
func (f *fixture) newReturn(t *testing.T, stock int64, qtys ...int64) (*restock.InventoryItem, *restock.Return) {
	t.Helper()
	item, err := f.svc.RegisterItem(f.ctx, restock.NewItem{SKU: "SKU-1", Name: "Kettle", Scope: warehouse, InitialStock: units(stock)})
	require.NoError(t, err)

	var lines []restock.NewReturnLine
	for _, q := range qtys {
		lines = append(lines, restock.NewReturnLine{InventoryItemID: item.ID, Quantity: units(q)})
	}
	ret, err := f.svc.CreateReturn(f.ctx, restock.NewReturn{Scope: warehouse, Lines: lines})
	require.NoError(t, err)
	assert.Equal(t, restock.ReturnPending, ret.Status)
	return item, ret
}

func TestRestock_PartialThenComplete(t *testing.T) {
	f := newFixture(t, nil)
	item, ret := f.newReturn(t, 5, 10)
	line := ret.Lines[0]

	res, err := f.svc.Restock(f.ctx, ret.ID, line.ID, units(4))
	require.NoError(t, err)
	assert.Equal(t, units(6), res.RemainingAfter)
	assert.False(t, res.Completed)
	assert.Equal(t, restock.ReturnPartial, res.ReturnStatus)

	res, err = f.svc.Restock(f.ctx, ret.ID, line.ID, units(6))
	require.NoError(t, err)
	assert.Equal(t, units(0), res.RemainingAfter)
	assert.True(t, res.Completed)
	assert.Equal(t, restock.ReturnCompleted, res.ReturnStatus)

	_, err = f.svc.Restock(f.ctx, ret.ID, line.ID, units(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeExceedsRemaining), "got %v", err)

	got, err := f.svc.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, units(15), got.CurrentStock)

	moves := f.repo.Movements(f.ctx, item.ID)
	require.Len(t, moves, 2)
	assert.Equal(t, units(5), moves[0].StockBefore)
	assert.Equal(t, units(9), moves[0].StockAfter)
	assert.Equal(t, restock.MovementReturnRestock, moves[1].ReferenceType)
	assert.Equal(t, line.ID, moves[1].ReferenceID)
}

func TestRestock_RejectsInsteadOfClamping(t *testing.T) {
	f := newFixture(t, nil)
	item, ret := f.newReturn(t, 0, 3)

	_, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, units(4))
	require.True(t, apperror.HasCode(err, apperror.CodeExceedsRemaining))

	got, err := f.svc.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Zero(t, got.CurrentStock)

	full, err := f.svc.GetReturn(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, units(3), full.Lines[0].RemainingQuantity)
}

func TestRestock_InvalidInput(t *testing.T) {
	f := newFixture(t, nil)
	_, ret := f.newReturn(t, 0, 3)

	_, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, 0)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.Restock(f.ctx, ret.ID, id.New(), units(1))
	assert.True(t, apperror.IsNotFound(err))

	_, other := f.newReturn(t, 0, 2)
	_, err = f.svc.Restock(f.ctx, ret.ID, other.Lines[0].ID, units(1))
	assert.True(t, apperror.IsNotFound(err), "a line of another return is not found under this one")
}

func TestRestock_FractionalQuantities(t *testing.T) {
	f := newFixture(t, nil)
	item, err := f.svc.RegisterItem(f.ctx, restock.NewItem{SKU: "FLOUR", Scope: warehouse})
	require.NoError(t, err)

	half, err := types.ParseQuantity("2.5")
	require.NoError(t, err)
	ret, err := f.svc.CreateReturn(f.ctx, restock.NewReturn{Scope: warehouse, Lines: []restock.NewReturnLine{{InventoryItemID: item.ID, Quantity: half}}})
	require.NoError(t, err)

	step, _ := types.ParseQuantity("1.25")
	res, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, step)
	require.NoError(t, err)
	assert.Equal(t, "1.2500", res.RemainingAfter.String())
}

func TestRestock_StatusAcrossLines(t *testing.T) {
	f := newFixture(t, nil)
	_, ret := f.newReturn(t, 0, 2, 3)

	res, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, units(2))
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, restock.ReturnPartial, res.ReturnStatus, "one line done, one pending")

	res, err = f.svc.Restock(f.ctx, ret.ID, ret.Lines[1].ID, units(3))
	require.NoError(t, err)
	assert.Equal(t, restock.ReturnCompleted, res.ReturnStatus)

	got, err := f.svc.GetReturn(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, restock.ReturnCompleted, got.Status)
}

func TestRestock_ConcurrentNeverOvershoots(t *testing.T) {
	f := newFixture(t, nil)
	item, ret := f.newReturn(t, 0, 10)
	lineID := ret.Lines[0].ID

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		restored types.Quantity
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Restock(f.ctx, ret.ID, lineID, units(3))
			if err != nil {
				assert.True(t, apperror.HasCode(err, apperror.CodeExceedsRemaining), "got %v", err)
				return
			}
			mu.Lock()
			restored += units(3)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, units(9), restored, "three restocks of 3 fit into 10")

	got, err := f.svc.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, units(9), got.CurrentStock)

	full, err := f.svc.GetReturn(f.ctx, ret.ID)
	require.NoError(t, err)
	assert.Equal(t, units(1), full.Lines[0].RemainingQuantity)
}

type failingMovements struct{}

func (failingMovements) CreateMovement(context.Context, *restock.StockMovement) error {
	return errors.New("movement table unavailable")
}

func TestRestock_MovementFailureDoesNotRollBack(t *testing.T) {
	f := newFixture(t, failingMovements{})
	item, ret := f.newReturn(t, 0, 4)

	res, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, units(4))
	require.NoError(t, err)
	assert.True(t, res.Completed)

	got, err := f.svc.GetItem(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, units(4), got.CurrentStock)
}

func TestRestock_ScopeEnforced(t *testing.T) {
	f := newFixture(t, nil)
	_, ret := f.newReturn(t, 0, 4)

	_, err := f.svc.Restock(keeperCtx("w2"), ret.ID, ret.Lines[0].ID, units(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeScopeAccessDenied))

	_, err = f.svc.GetReturn(keeperCtx("w2"), ret.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeScopeAccessDenied))

	_, err = f.svc.Restock(adminCtx(), ret.ID, ret.Lines[0].ID, units(1))
	assert.NoError(t, err)
}

func TestListPending(t *testing.T) {
	f := newFixture(t, nil)
	_, ret := f.newReturn(t, 0, 2, 5)
	_, err := f.svc.Restock(f.ctx, ret.ID, ret.Lines[0].ID, units(2))
	require.NoError(t, err)
	_, err = f.svc.Restock(f.ctx, ret.ID, ret.Lines[1].ID, units(1))
	require.NoError(t, err)

	_, err = f.svc.ListPending(f.ctx, restock.PendingFilter{})
	assert.True(t, apperror.HasCode(err, apperror.CodeScopeAccessDenied), "admin only")

	rows, err := f.svc.ListPending(adminCtx(), restock.PendingFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1, "completed lines are not pending")
	assert.Equal(t, restock.LinePartial, rows[0].State)
	assert.Equal(t, units(4), rows[0].RemainingQuantity)
	assert.Equal(t, "SKU-1", rows[0].SKU)

	rows, err = f.svc.ListPending(adminCtx(), restock.PendingFilter{States: []restock.LineState{restock.LinePending}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = f.svc.ListPending(adminCtx(), restock.PendingFilter{States: []restock.LineState{restock.LineCompleted}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateReturn_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.CreateReturn(f.ctx, restock.NewReturn{Scope: warehouse})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = f.svc.CreateReturn(f.ctx, restock.NewReturn{Scope: warehouse, Lines: []restock.NewReturnLine{{InventoryItemID: id.New(), Quantity: units(1)}}})
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.CreateReturn(f.ctx, restock.NewReturn{Scope: warehouse, Lines: []restock.NewReturnLine{{InventoryItemID: id.New(), Quantity: 0}}})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestCreateReturn_RequiresWriteAccessToEveryItem(t *testing.T) {
	f := newFixture(t, nil)
	own, err := f.svc.RegisterItem(f.ctx, restock.NewItem{SKU: "OWN", Scope: warehouse})
	require.NoError(t, err)
	foreign, err := f.svc.RegisterItem(adminCtx(), restock.NewItem{SKU: "FOREIGN", Scope: security.WarehouseScope("w2")})
	require.NoError(t, err)

	_, err = f.svc.CreateReturn(f.ctx, restock.NewReturn{
		Scope: warehouse,
		Lines: []restock.NewReturnLine{
			{InventoryItemID: own.ID, Quantity: units(1)},
			{InventoryItemID: foreign.ID, Quantity: units(1)},
		},
	})
	require.True(t, apperror.HasCode(err, apperror.CodeScopeAccessDenied), "got %v", err)

	pending, err := f.svc.ListPending(adminCtx(), restock.PendingFilter{})
	require.NoError(t, err)
	assert.Empty(t, pending, "the rejected return left no lines behind")

	ret, err := f.svc.CreateReturn(adminCtx(), restock.NewReturn{
		Scope: warehouse,
		Lines: []restock.NewReturnLine{{InventoryItemID: foreign.ID, Quantity: units(1)}},
	})
	require.NoError(t, err)
	assert.Len(t, ret.Lines, 1)
}

func TestCreateReturn_UnknownSale(t *testing.T) {
	f := newFixture(t, nil)
	item, err := f.svc.RegisterItem(f.ctx, restock.NewItem{SKU: "SKU-1", Scope: warehouse})
	require.NoError(t, err)

	saleID := id.New()
	_, err = f.svc.CreateReturn(f.ctx, restock.NewReturn{
		SaleID: &saleID,
		Scope:  warehouse,
		Lines:  []restock.NewReturnLine{{InventoryItemID: item.ID, Quantity: units(1)}},
	})
	assert.True(t, apperror.IsNotFound(err), "got %v", err)
}
