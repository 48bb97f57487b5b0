package warrant

import (
	"context"
	"time"
)

// Cache provides short-lived caching of resolutions.
type Cache interface {
	// Get returns a resolution for userID that is still valid at asOf.
	Get(ctx context.Context, userID string, asOf time.Time) (*Resolution, bool)

	// Set stores a resolution.
	Set(ctx context.Context, res *Resolution)

	// InvalidateUser drops cached resolutions for one user.
	InvalidateUser(ctx context.Context, userID string)

	// InvalidateAll drops every cached resolution.
	InvalidateAll(ctx context.Context)
}
