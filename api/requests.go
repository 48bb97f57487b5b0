package api

import "time"

// ──────────────────────────────────────────────────
// Catalog requests
// ──────────────────────────────────────────────────

// ListPermissionsRequest holds query parameters for listing catalog entries.
type ListPermissionsRequest struct {
	Module string `query:"module" description:"Only entries of this module"`
}

// ──────────────────────────────────────────────────
// Group requests
// ──────────────────────────────────────────────────

// SaveGroupRequest is the body for creating or updating a group.
type SaveGroupRequest struct {
	Name           string   `json:"name" description:"Group name"`
	Description    string   `json:"description,omitempty" description:"Human-readable description"`
	IsActive       *bool    `json:"is_active,omitempty" description:"Whether membership confers access (default: true)"`
	PermissionKeys []string `json:"permission_keys,omitempty" description:"Catalog keys granted to members"`
}

// GetGroupRequest is the path parameter for a group.
type GetGroupRequest struct {
	GroupID string `path:"groupId" description:"Group ID"`
}

// ListGroupsRequest holds query parameters for listing groups.
type ListGroupsRequest struct {
	Search     string `query:"search" description:"Search by name"`
	ActiveOnly bool   `query:"active_only" description:"Only active groups"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}

// SetGroupPermissionsRequest replaces a group's permission set.
type SetGroupPermissionsRequest struct {
	PermissionKeys []string `json:"permission_keys" description:"Full permission set"`
}

// AddMemberRequest is the body for adding a member to a group.
type AddMemberRequest struct {
	UserID string `json:"user_id" description:"User to add"`
}

// ──────────────────────────────────────────────────
// Grant requests
// ──────────────────────────────────────────────────

// CreateGrantRequest is the body for a direct grant.
type CreateGrantRequest struct {
	UserID        string     `json:"user_id" description:"Grantee"`
	PermissionKey string     `json:"permission_key" description:"Catalog key"`
	Justification string     `json:"justification" description:"Why the grant is needed"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" description:"Optional expiry (must be in the future)"`
}

// ListUserGrantsRequest holds query parameters for a user's direct grants.
type ListUserGrantsRequest struct {
	IncludeInactive bool `query:"include_inactive" description:"Include revoked and expired grants"`
}

// ──────────────────────────────────────────────────
// Elevation requests
// ──────────────────────────────────────────────────

// CreateElevationRequest is the body for a temporary elevation request.
type CreateElevationRequest struct {
	UserID        string     `json:"user_id" description:"Requesting user"`
	PermissionKey string     `json:"permission_key" description:"Catalog key"`
	Justification string     `json:"justification" description:"Why the elevation is needed"`
	ValidFrom     *time.Time `json:"valid_from,omitempty" description:"Window start (default: now)"`
	ValidUntil    time.Time  `json:"valid_until" description:"Window end"`
}

// ListElevationsRequest holds query parameters for listing elevation requests.
type ListElevationsRequest struct {
	UserID string `query:"user_id" description:"Filter by requesting user"`
	Status string `query:"status" description:"Filter by effective status"`
	Limit  int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset int    `query:"offset" description:"Results to skip"`
}

// ReviewElevationRequest is the body for approving or rejecting a request.
type ReviewElevationRequest struct {
	Action     string `json:"action" description:"approve or reject"`
	ReviewerID string `json:"reviewer_id,omitempty" description:"Reviewer (default: caller)"`
}

// CancelElevationRequest is the body for cancelling a request.
type CancelElevationRequest struct {
	ActorID string `json:"actor_id,omitempty" description:"Cancelling user (default: caller)"`
}

// ──────────────────────────────────────────────────
// Access requests
// ──────────────────────────────────────────────────

// ResolveAccessRequest holds query parameters for a resolution.
type ResolveAccessRequest struct {
	AsOf string `query:"as_of" description:"RFC 3339 instant (default: now)"`
}

// ResolveConflictRequest is the body for resolving a conflict.
type ResolveConflictRequest struct {
	Strategy string `json:"strategy" description:"Resolution strategy (revoke_direct)"`
}

// SimulateRequest is the body for a what-if simulation.
type SimulateRequest struct {
	Action        string `json:"action" description:"grant_permission, revoke_permission, join_group or leave_group"`
	PermissionKey string `json:"permission_key,omitempty" description:"Catalog key (grant and revoke)"`
	GroupID       string `json:"group_id,omitempty" description:"Group (join and leave)"`
}

// ──────────────────────────────────────────────────
// Audit requests
// ──────────────────────────────────────────────────

// ListAuditEventsRequest holds query parameters for the audit trail.
type ListAuditEventsRequest struct {
	Actor      string `query:"actor" description:"Filter by actor"`
	Action     string `query:"action" description:"Filter by action"`
	EntityType string `query:"entity_type" description:"Filter by entity type"`
	EntityID   string `query:"entity_id" description:"Filter by entity ID"`
	Limit      int    `query:"limit" description:"Maximum results (default: 50)"`
	Offset     int    `query:"offset" description:"Results to skip"`
}
