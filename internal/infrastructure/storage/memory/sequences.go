package memory

import (
	"context"
	"time"

	"retailledger/internal/core/numerator"
)

// Sequences implements numerator.Generator on the store. Numbers live in the
// transaction state, so a rolled back transaction gives its number back.
type Sequences struct {
	store *Store
}

var _ numerator.Generator = (*Sequences)(nil)

func NewSequences(store *Store) *Sequences {
	return &Sequences{store: store}
}

func (s *Sequences) GetNextNumber(ctx context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	var num int64
	err := s.store.write(ctx, func(st *state) error {
		key := cfg.Key(period)
		st.sequences[key]++
		num = st.sequences[key]
		return nil
	})
	if err != nil {
		return "", err
	}
	return cfg.Format(period, num), nil
}

func (s *Sequences) SetNextNumber(ctx context.Context, cfg numerator.Config, period time.Time, value int64) error {
	return s.store.write(ctx, func(st *state) error {
		st.sequences[cfg.Key(period)] = value
		return nil
	})
}
