package warrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// SaveGroup creates or updates a group. A group with a nil ID is created
// with a fresh one. Names are trimmed and must be non-blank; permission
// keys are de-duplicated and must exist in the catalog.
func (e *Engine) SaveGroup(ctx context.Context, g *group.Group) (*group.Group, error) {
	if g == nil {
		return nil, validationf("group is required")
	}
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return nil, validationf("group name is required")
	}
	keys, err := e.validKeys(g.PermissionKeys)
	if err != nil {
		return nil, err
	}

	now := e.now().UTC()
	actor := e.actor(ctx)
	out := *g
	out.Name = name
	out.Description = strings.TrimSpace(g.Description)
	out.PermissionKeys = keys

	var existing *group.Group
	if !g.ID.IsNil() {
		existing, err = e.store.GetGroup(ctx, g.ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("warrant: get group: %w", err)
		}
	}

	created := existing == nil
	if created {
		if out.ID.IsNil() {
			out.ID = id.NewGroupID()
		}
		out.CreatedAt = now
		out.CreatedBy = actor
		out.UpdatedAt = nil
		out.UpdatedBy = ""
		if err := e.store.CreateGroup(ctx, &out); err != nil {
			return nil, fmt.Errorf("warrant: create group: %w", err)
		}
	} else {
		out.CreatedAt = existing.CreatedAt
		out.CreatedBy = existing.CreatedBy
		out.UpdatedAt = &now
		out.UpdatedBy = actor
		if err := e.store.UpdateGroup(ctx, &out); err != nil {
			return nil, storeErr(err, "group "+out.ID.String())
		}
	}

	e.invalidateAll(ctx)

	action := audit.ActionGroupUpdated
	if created {
		action = audit.ActionGroupCreated
	}
	e.record(ctx, action, audit.EntityGroup, out.ID.String(), map[string]any{
		"name":            out.Name,
		"is_active":       out.IsActive,
		"permission_keys": keyStrings(out.PermissionKeys),
	})
	e.plugins.EmitGroupSaved(ctx, &out, created)
	return &out, nil
}

// GetGroup returns a group by ID.
func (e *Engine) GetGroup(ctx context.Context, groupID id.GroupID) (*group.Group, error) {
	g, err := e.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, storeErr(err, "group "+groupID.String())
	}
	return g, nil
}

// ListGroups returns groups matching the filter, ordered by name.
func (e *Engine) ListGroups(ctx context.Context, filter *group.ListFilter) ([]*group.Group, error) {
	return e.store.ListGroups(ctx, filter)
}

// CountGroups returns the number of groups matching the filter.
func (e *Engine) CountGroups(ctx context.Context, filter *group.ListFilter) (int64, error) {
	return e.store.CountGroups(ctx, filter)
}

// DeleteGroup removes a group and all of its memberships.
func (e *Engine) DeleteGroup(ctx context.Context, groupID id.GroupID) error {
	if err := e.store.DeleteGroup(ctx, groupID); err != nil {
		return storeErr(err, "group "+groupID.String())
	}
	e.invalidateAll(ctx)
	e.record(ctx, audit.ActionGroupDeleted, audit.EntityGroup, groupID.String(), nil)
	e.plugins.EmitGroupDeleted(ctx, groupID)
	return nil
}

// SetGroupPermissions replaces a group's permission set atomically.
func (e *Engine) SetGroupPermissions(ctx context.Context, groupID id.GroupID, keys []catalog.Key) (*group.Group, error) {
	valid, err := e.validKeys(keys)
	if err != nil {
		return nil, err
	}
	if err := e.store.SetGroupPermissions(ctx, groupID, valid); err != nil {
		return nil, storeErr(err, "group "+groupID.String())
	}
	e.invalidateAll(ctx)

	g, err := e.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	e.record(ctx, audit.ActionGroupPermissions, audit.EntityGroup, groupID.String(), map[string]any{
		"permission_keys": keyStrings(valid),
	})
	e.plugins.EmitGroupPermissionsSet(ctx, g)
	return g, nil
}

// AddMember adds userID to a group. Adding an existing member is a no-op.
func (e *Engine) AddMember(ctx context.Context, userID string, groupID id.GroupID) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return validationf("user id is required")
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	m := &group.Membership{
		ID:      id.NewMembershipID(),
		UserID:  userID,
		GroupID: groupID,
		AddedAt: e.now().UTC(),
		AddedBy: e.actor(ctx),
	}
	added, err := e.store.AddMember(ctx, m)
	if err != nil {
		return storeErr(err, "group "+groupID.String())
	}
	if !added {
		return nil
	}
	e.invalidateUser(ctx, userID)
	e.record(ctx, audit.ActionMemberAdded, audit.EntityMembership, m.ID.String(), map[string]any{
		"user_id":  userID,
		"group_id": groupID.String(),
	})
	e.plugins.EmitMemberAdded(ctx, m)
	return nil
}

// RemoveMember removes userID from a group. Removing a non-member is a no-op.
func (e *Engine) RemoveMember(ctx context.Context, userID string, groupID id.GroupID) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return validationf("user id is required")
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	removed, err := e.store.RemoveMember(ctx, userID, groupID)
	if err != nil {
		return storeErr(err, "group "+groupID.String())
	}
	if !removed {
		return nil
	}
	e.invalidateUser(ctx, userID)
	e.record(ctx, audit.ActionMemberRemoved, audit.EntityMembership, userID+"|"+groupID.String(), map[string]any{
		"user_id":  userID,
		"group_id": groupID.String(),
	})
	e.plugins.EmitMemberRemoved(ctx, userID, groupID)
	return nil
}

// ListMembers returns the membership edges of a group.
func (e *Engine) ListMembers(ctx context.Context, groupID id.GroupID) ([]*group.Membership, error) {
	if _, err := e.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return e.store.ListMembers(ctx, groupID)
}

// ListMemberDetails returns a group's members enriched from the directory.
// Without a directory the User field stays nil.
func (e *Engine) ListMemberDetails(ctx context.Context, groupID id.GroupID) ([]MemberDetail, error) {
	members, err := e.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]MemberDetail, 0, len(members))
	for _, m := range members {
		d := MemberDetail{Membership: m}
		if e.directory != nil {
			u, lerr := e.directory.LookupUser(ctx, m.UserID)
			if lerr != nil {
				return nil, fmt.Errorf("warrant: lookup user %s: %w", m.UserID, lerr)
			}
			d.User = u
		}
		out = append(out, d)
	}
	return out, nil
}

// ListUserGroups returns every group userID belongs to, active or not.
func (e *Engine) ListUserGroups(ctx context.Context, userID string) ([]*group.Group, error) {
	memberships, err := e.store.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*group.Group, 0, len(memberships))
	for _, m := range memberships {
		g, gerr := e.store.GetGroup(ctx, m.GroupID)
		if errors.Is(gerr, store.ErrNotFound) {
			continue
		}
		if gerr != nil {
			return nil, gerr
		}
		out = append(out, g)
	}
	sortGroups(out)
	return out, nil
}

// validKeys normalizes keys and rejects any not in the catalog.
func (e *Engine) validKeys(keys []catalog.Key) ([]catalog.Key, error) {
	keys = catalog.Normalize(keys)
	if unknown := e.catalog.Unknown(keys); len(unknown) > 0 {
		return nil, validationf("unknown permission keys: %s", strings.Join(keyStrings(unknown), ", "))
	}
	return keys, nil
}

func keyStrings(keys []catalog.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
