// Package group defines permission groups, their membership edges and the
// group store interface.
package group

import (
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

// Group owns a set of permission keys granted to every member while the
// group is active.
type Group struct {
	ID             id.GroupID    `json:"id" db:"id"`
	Name           string        `json:"name" db:"name"`
	Description    string        `json:"description,omitempty" db:"description"`
	IsActive       bool          `json:"is_active" db:"is_active"`
	PermissionKeys []catalog.Key `json:"permission_keys" db:"-"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	CreatedBy      string        `json:"created_by,omitempty" db:"created_by"`
	UpdatedAt      *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
	UpdatedBy      string        `json:"updated_by,omitempty" db:"updated_by"`
}

// HasPermission reports whether the group carries key.
func (g *Group) HasPermission(key catalog.Key) bool {
	for _, k := range g.PermissionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Membership is a user↔group edge.
type Membership struct {
	ID      id.MembershipID `json:"id" db:"id"`
	UserID  string          `json:"user_id" db:"user_id"`
	GroupID id.GroupID      `json:"group_id" db:"group_id"`
	AddedAt time.Time       `json:"added_at" db:"added_at"`
	AddedBy string          `json:"added_by,omitempty" db:"added_by"`
}

// ListFilter contains filters for listing groups.
type ListFilter struct {
	Search   string `json:"search,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
