package warrant

import (
	"context"

	"github.com/xraph/warrant/group"
)

// User is the slice of a user profile the engine displays. Users are owned
// by an external directory and referenced by id only.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Directory looks up users. Unknown ids return (nil, nil).
type Directory interface {
	LookupUser(ctx context.Context, userID string) (*User, error)
}

// MemberDetail is a membership edge with the member's profile, when known.
type MemberDetail struct {
	*group.Membership
	User *User `json:"user,omitempty"`
}
