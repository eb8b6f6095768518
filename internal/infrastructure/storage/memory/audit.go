package memory

import (
	"context"

	"retailledger/internal/domain/audit"
)

// AuditLog implements audit.Recorder.
type AuditLog struct {
	store *Store
}

var _ audit.Recorder = (*AuditLog)(nil)

func NewAuditLog(store *Store) *AuditLog {
	return &AuditLog{store: store}
}

func (a *AuditLog) Record(ctx context.Context, entry audit.Entry) error {
	return a.store.write(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// Entries returns every recorded entry in write order.
func (a *AuditLog) Entries(ctx context.Context) []audit.Entry {
	var out []audit.Entry
	_ = a.store.read(ctx, func(st *state) error {
		out = append(out, st.audit...)
		return nil
	})
	return out
}
