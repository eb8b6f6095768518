// Package audit records who changed ledger and inventory state.
// Entries are written after the business transaction commits; a failed
// write is logged and never surfaces to the caller.
package audit

import (
	"context"
	"time"

	"retailledger/internal/core/id"
	"retailledger/pkg/logger"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionRestock Action = "restock"
)

// Entry is a single audit record.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	Changes    map[string]any
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// writeTimeout bounds a best-effort write issued after the request context may be gone.
const writeTimeout = 3 * time.Second

// RecordBestEffort writes entry detached from ctx cancellation and logs failures.
func RecordBestEffort(ctx context.Context, rec Recorder, entry Entry) {
	if rec == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := rec.Record(wctx, entry); err != nil {
		logger.Warn(ctx, "audit write failed",
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"action", entry.Action,
			"error", err,
		)
	}
}
