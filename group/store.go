package group

import (
	"context"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for groups and memberships.
type Store interface {
	// CreateGroup persists a new group with its permission keys.
	CreateGroup(ctx context.Context, g *Group) error

	// GetGroup retrieves a group, including its permission keys.
	GetGroup(ctx context.Context, groupID id.GroupID) (*Group, error)

	// UpdateGroup persists changes to a group, including its permission keys.
	UpdateGroup(ctx context.Context, g *Group) error

	// DeleteGroup removes a group and every membership edge pointing at it.
	DeleteGroup(ctx context.Context, groupID id.GroupID) error

	// ListGroups returns groups matching the filter, ordered by name.
	ListGroups(ctx context.Context, filter *ListFilter) ([]*Group, error)

	// CountGroups returns the number of groups matching the filter.
	CountGroups(ctx context.Context, filter *ListFilter) (int64, error)

	// SetGroupPermissions replaces the permission set of a group in one step.
	SetGroupPermissions(ctx context.Context, groupID id.GroupID, keys []catalog.Key) error

	// AddMember creates a membership edge and reports whether it was new.
	// Adding an existing member is a no-op; an unknown group is not found.
	AddMember(ctx context.Context, m *Membership) (bool, error)

	// RemoveMember deletes a membership edge and reports whether one existed.
	RemoveMember(ctx context.Context, userID string, groupID id.GroupID) (bool, error)

	// ListMembers returns the membership edges of a group.
	ListMembers(ctx context.Context, groupID id.GroupID) ([]*Membership, error)

	// ListUserMemberships returns the membership edges of a user.
	ListUserMemberships(ctx context.Context, userID string) ([]*Membership, error)
}
