package elevation

import (
	"context"
	"time"

	"github.com/xraph/warrant/id"
)

// Transition describes a compare-and-set status change.
type Transition struct {
	From       Status
	To         Status
	ReviewedBy string
	ReviewedAt *time.Time
}

// Store defines persistence operations for elevation requests.
type Store interface {
	// CreateElevation persists a new request.
	CreateElevation(ctx context.Context, r *Request) error

	// GetElevation retrieves a request by ID.
	GetElevation(ctx context.Context, reqID id.ElevationID) (*Request, error)

	// TransitionElevation moves a request from t.From to t.To atomically.
	// It fails with store.ErrStateConflict when the stored status is not
	// t.From, and returns the updated request on success.
	TransitionElevation(ctx context.Context, reqID id.ElevationID, t Transition) (*Request, error)

	// ListElevations returns requests matching the filter, newest first.
	ListElevations(ctx context.Context, filter *ListFilter) ([]*Request, error)

	// ExpireElevations marks approved requests whose window closed before
	// now as expired and returns how many rows changed.
	ExpireElevations(ctx context.Context, now time.Time) (int64, error)
}
