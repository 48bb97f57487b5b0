// Package plugin defines the plugin system for Warrant.
// Plugins are notified of lifecycle events (group saved, grant revoked,
// elevation reviewed, etc.) and can react with logging, metrics or
// outbound notifications.
//
// Each lifecycle hook is a separate interface so plugins opt in only
// to the events they care about.
package plugin

import (
	"context"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
)

// Plugin is the base interface all plugins must implement.
type Plugin interface {
	// Name returns a unique human-readable name for the plugin.
	Name() string
}

// ──────────────────────────────────────────────────
// Group lifecycle hooks
// ──────────────────────────────────────────────────

// GroupSaved is called after a group is created or updated.
type GroupSaved interface {
	OnGroupSaved(ctx context.Context, g *group.Group, created bool) error
}

// GroupDeleted is called after a group and its memberships are removed.
type GroupDeleted interface {
	OnGroupDeleted(ctx context.Context, groupID id.GroupID) error
}

// GroupPermissionsSet is called after a group's permission set is replaced.
type GroupPermissionsSet interface {
	OnGroupPermissionsSet(ctx context.Context, g *group.Group) error
}

// MemberAdded is called after a user joins a group.
type MemberAdded interface {
	OnMemberAdded(ctx context.Context, m *group.Membership) error
}

// MemberRemoved is called after a user leaves a group.
type MemberRemoved interface {
	OnMemberRemoved(ctx context.Context, userID string, groupID id.GroupID) error
}

// ──────────────────────────────────────────────────
// Direct grant hooks
// ──────────────────────────────────────────────────

// GrantCreated is called after a direct grant is created.
type GrantCreated interface {
	OnGrantCreated(ctx context.Context, g *grant.DirectGrant) error
}

// GrantRevoked is called after a direct grant is revoked.
type GrantRevoked interface {
	OnGrantRevoked(ctx context.Context, g *grant.DirectGrant) error
}

// ──────────────────────────────────────────────────
// Elevation hooks
// ──────────────────────────────────────────────────

// ElevationRequested is called after a request is filed.
type ElevationRequested interface {
	OnElevationRequested(ctx context.Context, r *elevation.Request) error
}

// ElevationReviewed is called after a request is approved or rejected.
// The new status is on r.
type ElevationReviewed interface {
	OnElevationReviewed(ctx context.Context, r *elevation.Request) error
}

// ElevationCancelled is called after a requester withdraws a request.
type ElevationCancelled interface {
	OnElevationCancelled(ctx context.Context, r *elevation.Request) error
}

// ──────────────────────────────────────────────────
// Resolution hooks
// ──────────────────────────────────────────────────

// AfterResolve is called after a user's access is resolved.
// The res parameter is *warrant.Resolution (passed as any to avoid import cycle).
type AfterResolve interface {
	OnAfterResolve(ctx context.Context, res any) error
}

// ConflictResolved is called after a conflict is resolved.
// The res parameter is *warrant.ConflictResolution.
type ConflictResolved interface {
	OnConflictResolved(ctx context.Context, res any) error
}

// AuditRecorded is called for every audit event, persisted or not.
type AuditRecorded interface {
	OnAuditRecorded(ctx context.Context, e *audit.Event) error
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
