// Package audit defines the structured audit trail record emitted by every
// mutating access-control operation.
package audit

import (
	"time"

	"github.com/xraph/warrant/id"
)

// Entity types recorded in Event.EntityType.
const (
	EntityGroup      = "group"
	EntityMembership = "membership"
	EntityGrant      = "direct_grant"
	EntityElevation  = "elevation_request"
	EntityConflict   = "conflict"
)

// Actions recorded in Event.Action.
const (
	ActionGroupCreated       = "group.created"
	ActionGroupUpdated       = "group.updated"
	ActionGroupDeleted       = "group.deleted"
	ActionGroupPermissions   = "group.permissions_set"
	ActionMemberAdded        = "membership.added"
	ActionMemberRemoved      = "membership.removed"
	ActionGrantCreated       = "grant.created"
	ActionGrantRevoked       = "grant.revoked"
	ActionElevationRequested = "elevation.requested"
	ActionElevationApproved  = "elevation.approved"
	ActionElevationRejected  = "elevation.rejected"
	ActionElevationCancelled = "elevation.cancelled"
	ActionElevationExpired   = "elevation.expired"
	ActionConflictResolved   = "conflict.resolved"
)

// Event is one audit trail record.
type Event struct {
	ID         id.AuditID     `json:"id" db:"id"`
	Actor      string         `json:"actor" db:"actor"`
	Action     string         `json:"action" db:"action"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	Timestamp  time.Time      `json:"timestamp" db:"timestamp"`
	Details    map[string]any `json:"details,omitempty" db:"details"`
}

// QueryFilter contains filters for querying the audit trail.
type QueryFilter struct {
	Actor      string     `json:"actor,omitempty"`
	Action     string     `json:"action,omitempty"`
	EntityType string     `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
	After      *time.Time `json:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
