// Package elevation defines time-bounded elevation requests and their
// approval state machine.
//
//	pending ──approve──▶ approved ──(validUntil passes)──▶ expired
//	   │
//	   ├──reject──▶ rejected
//	   └──cancel──▶ cancelled
//
// The approved→expired edge is derived from the clock. A sweep may persist
// it, but readers must always re-check the validity window themselves.
package elevation

import (
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

// Status is the lifecycle state of a request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Action is a reviewer decision.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Target returns the status an action moves a pending request to.
func (a Action) Target() (Status, bool) {
	switch a {
	case ActionApprove:
		return StatusApproved, true
	case ActionReject:
		return StatusRejected, true
	}
	return "", false
}

// Request asks for one permission for a bounded window.
type Request struct {
	ID            id.ElevationID `json:"id" db:"id"`
	UserID        string         `json:"user_id" db:"user_id"`
	PermissionKey catalog.Key    `json:"permission_key" db:"permission_key"`
	Justification string         `json:"justification" db:"justification"`
	ValidFrom     time.Time      `json:"valid_from" db:"valid_from"`
	ValidUntil    time.Time      `json:"valid_until" db:"valid_until"`
	Status        Status         `json:"status" db:"status"`
	ReviewedBy    string         `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// InWindow reports whether t falls inside [ValidFrom, ValidUntil].
func (r *Request) InWindow(t time.Time) bool {
	return !t.Before(r.ValidFrom) && !t.After(r.ValidUntil)
}

// EffectiveStatus returns the status as of t, deriving expiry for approved
// requests whose window has closed.
func (r *Request) EffectiveStatus(t time.Time) Status {
	if r.Status == StatusApproved && t.After(r.ValidUntil) {
		return StatusExpired
	}
	return r.Status
}

// ContributesAt reports whether the request grants its permission at t.
// A swept request keeps contributing to resolutions taken inside its
// window, since expired is only reachable from approved.
func (r *Request) ContributesAt(t time.Time) bool {
	switch r.Status {
	case StatusApproved, StatusExpired:
		return r.InWindow(t)
	}
	return false
}

// CanCancel reports whether actorID may cancel the request.
func (r *Request) CanCancel(actorID string) bool {
	return r.Status == StatusPending && actorID != "" && actorID == r.UserID
}

// ListFilter contains filters for listing requests.
type ListFilter struct {
	UserID string `json:"user_id,omitempty"`

	// Statuses matches the stored status column.
	Statuses []Status `json:"statuses,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
