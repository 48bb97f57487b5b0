package audit

import (
	"context"
	"time"
)

// Store defines persistence operations for the audit trail.
type Store interface {
	// CreateAuditEvent appends an event.
	CreateAuditEvent(ctx context.Context, e *Event) error

	// ListAuditEvents returns events matching the filter, newest first.
	ListAuditEvents(ctx context.Context, filter *QueryFilter) ([]*Event, error)

	// CountAuditEvents returns the number of events matching the filter.
	CountAuditEvents(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeAuditEvents removes events older than before.
	PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error)
}
