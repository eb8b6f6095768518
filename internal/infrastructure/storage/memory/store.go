// Package memory is an in-process implementation of the repositories and
// the transaction manager. Writers are serialized through a single slot and
// work on a private copy of the state that replaces the committed state on
// success; readers outside a transaction see only committed data.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"retailledger/internal/core/apperror"
	"retailledger/internal/core/id"
	"retailledger/internal/core/tx"
	"retailledger/internal/domain/audit"
	"retailledger/internal/domain/ledger"
	"retailledger/internal/domain/restock"
	"retailledger/internal/domain/settlement"
)

type state struct {
	accounts     map[id.ID]ledger.Account
	transactions map[id.ID]ledger.Transaction
	sales        map[id.ID]settlement.Sale
	returns      map[id.ID]restock.Return
	lines        map[id.ID]restock.ReturnLine
	items        map[id.ID]restock.InventoryItem
	movements    []restock.StockMovement
	audit        []audit.Entry
	sequences    map[string]int64
}

func newState() *state {
	return &state{
		accounts:     make(map[id.ID]ledger.Account),
		transactions: make(map[id.ID]ledger.Transaction),
		sales:        make(map[id.ID]settlement.Sale),
		returns:      make(map[id.ID]restock.Return),
		lines:        make(map[id.ID]restock.ReturnLine),
		items:        make(map[id.ID]restock.InventoryItem),
		sequences:    make(map[string]int64),
	}
}

// clone copies the maps; stored values are plain structs so a shallow copy per entry suffices.
func (s *state) clone() *state {
	return &state{
		accounts:     maps.Clone(s.accounts),
		transactions: maps.Clone(s.transactions),
		sales:        maps.Clone(s.sales),
		returns:      maps.Clone(s.returns),
		lines:        maps.Clone(s.lines),
		items:        maps.Clone(s.items),
		movements:    append([]restock.StockMovement(nil), s.movements...),
		audit:        append([]audit.Entry(nil), s.audit...),
		sequences:    maps.Clone(s.sequences),
	}
}

// Store holds the committed state.
type Store struct {
	mu        sync.RWMutex
	committed *state
	writer    chan struct{}
}

// New creates an empty store.
func New() *Store {
	return &Store{
		committed: newState(),
		writer:    make(chan struct{}, 1),
	}
}

type txKey struct{}

type memTx struct {
	state *state
}

// TxManager runs functions against a private copy of the store.
type TxManager struct {
	store *Store
}

var (
	_ tx.Manager         = (*TxManager)(nil)
	_ tx.ReadOnlyManager = (*TxManager)(nil)
)

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn with exclusive write access.
// Nested calls reuse the transaction in ctx. The wait for the write slot
// honours ctx: an expired deadline yields a retryable BUSY error.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	select {
	case m.store.writer <- struct{}{}:
	case <-ctx.Done():
		return apperror.Normalize(fmt.Errorf("acquire write slot: %w", ctx.Err()))
	}
	defer func() { <-m.store.writer }()

	m.store.mu.RLock()
	work := m.store.committed.clone()
	m.store.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, &memTx{state: work})); err != nil {
		return err
	}
	// a cancelled or expired context rolls back even after fn succeeded
	if err := ctx.Err(); err != nil {
		return apperror.Normalize(fmt.Errorf("commit transaction: %w", err))
	}

	m.store.mu.Lock()
	m.store.committed = work
	m.store.mu.Unlock()
	return nil
}

// ReadOnly executes fn against a snapshot of the committed state.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}
	m.store.mu.RLock()
	snapshot := m.store.committed.clone()
	m.store.mu.RUnlock()
	return fn(context.WithValue(ctx, txKey{}, &memTx{state: snapshot}))
}

// read runs fn on the transaction state in ctx, or on the committed state.
func (s *Store) read(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(t.state)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.committed)
}

// write runs fn on the transaction state in ctx, or in its own transaction.
func (s *Store) write(ctx context.Context, fn func(st *state) error) error {
	if t, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(t.state)
	}
	return NewTxManager(s).RunInTransaction(ctx, func(ctx context.Context) error {
		return fn(ctx.Value(txKey{}).(*memTx).state)
	})
}
