package warrant

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/id"
)

// GrantDirect gives a user one permission outside any group. Duplicate
// grants are accepted and later surface as conflicts.
func (e *Engine) GrantDirect(ctx context.Context, in GrantInput) (*grant.DirectGrant, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, validationf("user id is required")
	}
	if !e.catalog.Has(in.PermissionKey) {
		return nil, validationf("unknown permission key %q", in.PermissionKey)
	}
	justification := strings.TrimSpace(in.Justification)
	if justification == "" {
		return nil, validationf("justification is required")
	}
	now := e.now().UTC()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, validationf("expiry %s is not in the future", in.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	g := &grant.DirectGrant{
		ID:            id.NewGrantID(),
		UserID:        userID,
		PermissionKey: in.PermissionKey,
		Justification: justification,
		GrantedBy:     e.actor(ctx),
		CreatedAt:     now,
	}
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		g.ExpiresAt = &exp
	}
	if err := e.store.CreateGrant(ctx, g); err != nil {
		return nil, fmt.Errorf("warrant: create grant: %w", err)
	}

	e.invalidateUser(ctx, userID)
	details := map[string]any{
		"user_id":        userID,
		"permission_key": string(g.PermissionKey),
		"justification":  g.Justification,
	}
	if g.ExpiresAt != nil {
		details["expires_at"] = *g.ExpiresAt
	}
	e.record(ctx, audit.ActionGrantCreated, audit.EntityGrant, g.ID.String(), details)
	e.plugins.EmitGrantCreated(ctx, g)
	return g, nil
}

// RevokeDirect revokes a direct grant. Revoking an already revoked grant
// returns it unchanged.
func (e *Engine) RevokeDirect(ctx context.Context, grantID id.GrantID) (*grant.DirectGrant, error) {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, storeErr(err, "grant "+grantID.String())
	}

	unlock := e.locks.lock(g.UserID)
	defer unlock()

	if _, err := e.revokeLocked(ctx, g, nil); err != nil {
		return nil, err
	}
	updated, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, storeErr(err, "grant "+grantID.String())
	}
	return updated, nil
}

// revokeLocked revokes g; the caller holds g.UserID's write lock.
func (e *Engine) revokeLocked(ctx context.Context, g *grant.DirectGrant, extra map[string]any) (bool, error) {
	changed, err := e.store.RevokeGrant(ctx, g.ID, e.actor(ctx), e.now().UTC())
	if err != nil {
		return false, storeErr(err, "grant "+g.ID.String())
	}
	if !changed {
		return false, nil
	}
	e.invalidateUser(ctx, g.UserID)

	details := map[string]any{
		"user_id":        g.UserID,
		"permission_key": string(g.PermissionKey),
	}
	for k, v := range extra {
		details[k] = v
	}
	e.record(ctx, audit.ActionGrantRevoked, audit.EntityGrant, g.ID.String(), details)
	e.plugins.EmitGrantRevoked(ctx, g)
	return true, nil
}

// GetGrant returns a direct grant by ID.
func (e *Engine) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.DirectGrant, error) {
	g, err := e.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, storeErr(err, "grant "+grantID.String())
	}
	return g, nil
}

// ListDirectGrants returns a user's grants, oldest first. Unless
// includeInactive is set only grants active now are returned.
func (e *Engine) ListDirectGrants(ctx context.Context, userID string, includeInactive bool) ([]*grant.DirectGrant, error) {
	filter := &grant.ListFilter{UserID: userID}
	if !includeInactive {
		now := e.now()
		filter.ActiveAt = &now
	}
	return e.store.ListGrants(ctx, filter)
}
