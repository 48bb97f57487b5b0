// Package grant defines per-user direct permission grants.
package grant

import (
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

// DirectGrant gives one user one permission outside any group.
// Revocation and expiry never delete the row; history is kept for audit.
type DirectGrant struct {
	ID            id.GrantID  `json:"id" db:"id"`
	UserID        string      `json:"user_id" db:"user_id"`
	PermissionKey catalog.Key `json:"permission_key" db:"permission_key"`
	Justification string      `json:"justification" db:"justification"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty" db:"expires_at"`
	GrantedBy     string      `json:"granted_by,omitempty" db:"granted_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	RevokedAt     *time.Time  `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedBy     string      `json:"revoked_by,omitempty" db:"revoked_by"`
}

// IsRevoked reports whether the grant has been explicitly revoked.
func (g *DirectGrant) IsRevoked() bool { return g.RevokedAt != nil }

// IsActiveAt reports whether the grant is neither revoked nor expired at t.
func (g *DirectGrant) IsActiveAt(t time.Time) bool {
	if g.RevokedAt != nil && !t.Before(*g.RevokedAt) {
		return false
	}
	if g.ExpiresAt != nil && !g.ExpiresAt.After(t) {
		return false
	}
	return true
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	UserID        string      `json:"user_id,omitempty"`
	PermissionKey catalog.Key `json:"permission_key,omitempty"`

	// ActiveAt, when set, keeps only grants active at that instant.
	ActiveAt *time.Time `json:"active_at,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
