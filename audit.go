package warrant

import (
	"context"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/id"
)

// record appends an audit event. A failing audit write is logged and never
// fails the mutation it describes.
func (e *Engine) record(ctx context.Context, action, entityType, entityID string, details map[string]any) {
	ev := &audit.Event{
		ID:         id.NewAuditID(),
		Actor:      e.actor(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Timestamp:  e.now().UTC(),
		Details:    details,
	}
	if !e.config.DisableAudit {
		if err := e.store.CreateAuditEvent(ctx, ev); err != nil {
			e.logger.Warn("warrant: audit write failed",
				"action", action,
				"entity_id", entityID,
				"error", err,
			)
		}
	}
	e.plugins.EmitAuditRecorded(ctx, ev)
}

// ListAuditEvents returns audit events matching the filter, newest first.
func (e *Engine) ListAuditEvents(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	return e.store.ListAuditEvents(ctx, filter)
}

// CountAuditEvents returns the number of audit events matching the filter.
func (e *Engine) CountAuditEvents(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	return e.store.CountAuditEvents(ctx, filter)
}
