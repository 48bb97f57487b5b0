package grant

import (
	"context"
	"time"

	"github.com/xraph/warrant/id"
)

// Store defines persistence operations for direct grants.
type Store interface {
	// CreateGrant persists a new grant. Duplicate (user, permission) pairs
	// are allowed.
	CreateGrant(ctx context.Context, g *DirectGrant) error

	// GetGrant retrieves a grant by ID.
	GetGrant(ctx context.Context, grantID id.GrantID) (*DirectGrant, error)

	// RevokeGrant stamps revokedAt/revokedBy if the grant is not already revoked.
	// It reports whether the row changed.
	RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) (bool, error)

	// ListGrants returns grants matching the filter, oldest first.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*DirectGrant, error)
}
