package plugin

import (
	"context"
	"log/slog"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
)

// entry pairs a hook with the plugin name for logging.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered plugins and dispatches lifecycle events.
// It type-caches plugins at registration time so emit calls iterate
// only over plugins implementing the relevant hook. A nil *Registry
// accepts every Emit call and does nothing.
type Registry struct {
	plugins []Plugin
	logger  *slog.Logger

	groupSaved          []entry[GroupSaved]
	groupDeleted        []entry[GroupDeleted]
	groupPermissionsSet []entry[GroupPermissionsSet]
	memberAdded         []entry[MemberAdded]
	memberRemoved       []entry[MemberRemoved]
	grantCreated        []entry[GrantCreated]
	grantRevoked        []entry[GrantRevoked]
	elevationRequested  []entry[ElevationRequested]
	elevationReviewed   []entry[ElevationReviewed]
	elevationCancelled  []entry[ElevationCancelled]
	afterResolve        []entry[AfterResolve]
	conflictResolved    []entry[ConflictResolved]
	auditRecorded       []entry[AuditRecorded]
	shutdown            []entry[Shutdown]
}

// NewRegistry creates a plugin registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

func cache[H any](list []entry[H], name string, p Plugin) []entry[H] {
	if h, ok := p.(H); ok {
		return append(list, entry[H]{name, h})
	}
	return list
}

// Register adds a plugin and type-asserts it into all applicable
// hook caches. Plugins are notified in registration order.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
	name := p.Name()

	r.groupSaved = cache(r.groupSaved, name, p)
	r.groupDeleted = cache(r.groupDeleted, name, p)
	r.groupPermissionsSet = cache(r.groupPermissionsSet, name, p)
	r.memberAdded = cache(r.memberAdded, name, p)
	r.memberRemoved = cache(r.memberRemoved, name, p)
	r.grantCreated = cache(r.grantCreated, name, p)
	r.grantRevoked = cache(r.grantRevoked, name, p)
	r.elevationRequested = cache(r.elevationRequested, name, p)
	r.elevationReviewed = cache(r.elevationReviewed, name, p)
	r.elevationCancelled = cache(r.elevationCancelled, name, p)
	r.afterResolve = cache(r.afterResolve, name, p)
	r.conflictResolved = cache(r.conflictResolved, name, p)
	r.auditRecorded = cache(r.auditRecorded, name, p)
	r.shutdown = cache(r.shutdown, name, p)
}

// Plugins returns all registered plugins.
func (r *Registry) Plugins() []Plugin {
	if r == nil {
		return nil
	}
	return r.plugins
}

// emit calls fn for every entry and logs hook errors.
func emit[H any](r *Registry, list []entry[H], hook string, fn func(H) error) {
	for _, e := range list {
		if err := fn(e.hook); err != nil {
			r.logHookError(hook, e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Group event emitters
// ──────────────────────────────────────────────────

// EmitGroupSaved notifies all plugins that implement GroupSaved.
func (r *Registry) EmitGroupSaved(ctx context.Context, g *group.Group, created bool) {
	if r == nil {
		return
	}
	emit(r, r.groupSaved, "OnGroupSaved", func(h GroupSaved) error { return h.OnGroupSaved(ctx, g, created) })
}

// EmitGroupDeleted notifies all plugins that implement GroupDeleted.
func (r *Registry) EmitGroupDeleted(ctx context.Context, groupID id.GroupID) {
	if r == nil {
		return
	}
	emit(r, r.groupDeleted, "OnGroupDeleted", func(h GroupDeleted) error { return h.OnGroupDeleted(ctx, groupID) })
}

// EmitGroupPermissionsSet notifies all plugins that implement GroupPermissionsSet.
func (r *Registry) EmitGroupPermissionsSet(ctx context.Context, g *group.Group) {
	if r == nil {
		return
	}
	emit(r, r.groupPermissionsSet, "OnGroupPermissionsSet", func(h GroupPermissionsSet) error {
		return h.OnGroupPermissionsSet(ctx, g)
	})
}

// EmitMemberAdded notifies all plugins that implement MemberAdded.
func (r *Registry) EmitMemberAdded(ctx context.Context, m *group.Membership) {
	if r == nil {
		return
	}
	emit(r, r.memberAdded, "OnMemberAdded", func(h MemberAdded) error { return h.OnMemberAdded(ctx, m) })
}

// EmitMemberRemoved notifies all plugins that implement MemberRemoved.
func (r *Registry) EmitMemberRemoved(ctx context.Context, userID string, groupID id.GroupID) {
	if r == nil {
		return
	}
	emit(r, r.memberRemoved, "OnMemberRemoved", func(h MemberRemoved) error {
		return h.OnMemberRemoved(ctx, userID, groupID)
	})
}

// ──────────────────────────────────────────────────
// Grant event emitters
// ──────────────────────────────────────────────────

// EmitGrantCreated notifies all plugins that implement GrantCreated.
func (r *Registry) EmitGrantCreated(ctx context.Context, g *grant.DirectGrant) {
	if r == nil {
		return
	}
	emit(r, r.grantCreated, "OnGrantCreated", func(h GrantCreated) error { return h.OnGrantCreated(ctx, g) })
}

// EmitGrantRevoked notifies all plugins that implement GrantRevoked.
func (r *Registry) EmitGrantRevoked(ctx context.Context, g *grant.DirectGrant) {
	if r == nil {
		return
	}
	emit(r, r.grantRevoked, "OnGrantRevoked", func(h GrantRevoked) error { return h.OnGrantRevoked(ctx, g) })
}

// ──────────────────────────────────────────────────
// Elevation event emitters
// ──────────────────────────────────────────────────

// EmitElevationRequested notifies all plugins that implement ElevationRequested.
func (r *Registry) EmitElevationRequested(ctx context.Context, req *elevation.Request) {
	if r == nil {
		return
	}
	emit(r, r.elevationRequested, "OnElevationRequested", func(h ElevationRequested) error {
		return h.OnElevationRequested(ctx, req)
	})
}

// EmitElevationReviewed notifies all plugins that implement ElevationReviewed.
func (r *Registry) EmitElevationReviewed(ctx context.Context, req *elevation.Request) {
	if r == nil {
		return
	}
	emit(r, r.elevationReviewed, "OnElevationReviewed", func(h ElevationReviewed) error {
		return h.OnElevationReviewed(ctx, req)
	})
}

// EmitElevationCancelled notifies all plugins that implement ElevationCancelled.
func (r *Registry) EmitElevationCancelled(ctx context.Context, req *elevation.Request) {
	if r == nil {
		return
	}
	emit(r, r.elevationCancelled, "OnElevationCancelled", func(h ElevationCancelled) error {
		return h.OnElevationCancelled(ctx, req)
	})
}

// ──────────────────────────────────────────────────
// Resolution and audit emitters
// ──────────────────────────────────────────────────

// EmitAfterResolve notifies all plugins that implement AfterResolve.
func (r *Registry) EmitAfterResolve(ctx context.Context, res any) {
	if r == nil {
		return
	}
	emit(r, r.afterResolve, "OnAfterResolve", func(h AfterResolve) error { return h.OnAfterResolve(ctx, res) })
}

// EmitConflictResolved notifies all plugins that implement ConflictResolved.
func (r *Registry) EmitConflictResolved(ctx context.Context, res any) {
	if r == nil {
		return
	}
	emit(r, r.conflictResolved, "OnConflictResolved", func(h ConflictResolved) error {
		return h.OnConflictResolved(ctx, res)
	})
}

// EmitAuditRecorded notifies all plugins that implement AuditRecorded.
func (r *Registry) EmitAuditRecorded(ctx context.Context, ev *audit.Event) {
	if r == nil {
		return
	}
	emit(r, r.auditRecorded, "OnAuditRecorded", func(h AuditRecorded) error { return h.OnAuditRecorded(ctx, ev) })
}

// EmitShutdown notifies all plugins that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	if r == nil {
		return
	}
	emit(r, r.shutdown, "OnShutdown", func(h Shutdown) error { return h.OnShutdown(ctx) })
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the caller.
func (r *Registry) logHookError(hook, pluginName string, err error) {
	r.logger.Warn("plugin hook error",
		slog.String("hook", hook),
		slog.String("plugin", pluginName),
		slog.String("error", err.Error()),
	)
}
