package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
)

// ──────────────────────────────────────────────────
// Group model
// ──────────────────────────────────────────────────

// groupModel embeds the permission set; a group document is replaced as a
// whole, so key changes are atomic per group.
type groupModel struct {
	grove.BaseModel `grove:"table:warrant_groups"`
	ID              string     `grove:"id,pk"           bson:"_id"`
	Name            string     `grove:"name"            bson:"name"`
	Description     string     `grove:"description"     bson:"description"`
	IsActive        bool       `grove:"is_active"       bson:"is_active"`
	PermissionKeys  []string   `grove:"permission_keys" bson:"permission_keys"`
	CreatedAt       time.Time  `grove:"created_at"      bson:"created_at"`
	CreatedBy       string     `grove:"created_by"      bson:"created_by"`
	UpdatedAt       *time.Time `grove:"updated_at"      bson:"updated_at,omitempty"`
	UpdatedBy       string     `grove:"updated_by"      bson:"updated_by"`
}

func groupToModel(g *group.Group) *groupModel {
	return &groupModel{
		ID:             g.ID.String(),
		Name:           g.Name,
		Description:    g.Description,
		IsActive:       g.IsActive,
		PermissionKeys: keyStrings(catalog.Normalize(g.PermissionKeys)),
		CreatedAt:      g.CreatedAt,
		CreatedBy:      g.CreatedBy,
		UpdatedAt:      g.UpdatedAt,
		UpdatedBy:      g.UpdatedBy,
	}
}

func groupFromModel(m *groupModel) *group.Group {
	gid, _ := id.ParseGroupID(m.ID) //nolint:errcheck // stored IDs are always valid
	keys := make([]catalog.Key, len(m.PermissionKeys))
	for i, k := range m.PermissionKeys {
		keys[i] = catalog.Key(k)
	}
	return &group.Group{
		ID:             gid,
		Name:           m.Name,
		Description:    m.Description,
		IsActive:       m.IsActive,
		PermissionKeys: catalog.Normalize(keys),
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
		UpdatedAt:      m.UpdatedAt,
		UpdatedBy:      m.UpdatedBy,
	}
}

func keyStrings(keys []catalog.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

// ──────────────────────────────────────────────────
// Membership model
// ──────────────────────────────────────────────────

type membershipModel struct {
	grove.BaseModel `grove:"table:warrant_memberships"`
	ID              string    `grove:"id,pk"     bson:"_id"`
	UserID          string    `grove:"user_id"   bson:"user_id"`
	GroupID         string    `grove:"group_id"  bson:"group_id"`
	AddedAt         time.Time `grove:"added_at"  bson:"added_at"`
	AddedBy         string    `grove:"added_by"  bson:"added_by"`
}

func membershipToModel(m *group.Membership) *membershipModel {
	return &membershipModel{
		ID:      m.ID.String(),
		UserID:  m.UserID,
		GroupID: m.GroupID.String(),
		AddedAt: m.AddedAt,
		AddedBy: m.AddedBy,
	}
}

func membershipFromModel(m *membershipModel) *group.Membership {
	mid, _ := id.ParseMembershipID(m.ID) //nolint:errcheck // stored IDs are always valid
	gid, _ := id.ParseGroupID(m.GroupID) //nolint:errcheck // stored IDs are always valid
	return &group.Membership{
		ID:      mid,
		UserID:  m.UserID,
		GroupID: gid,
		AddedAt: m.AddedAt,
		AddedBy: m.AddedBy,
	}
}

// ──────────────────────────────────────────────────
// Direct grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:warrant_direct_grants"`
	ID              string     `grove:"id,pk"          bson:"_id"`
	UserID          string     `grove:"user_id"        bson:"user_id"`
	PermissionKey   string     `grove:"permission_key" bson:"permission_key"`
	Justification   string     `grove:"justification"  bson:"justification"`
	ExpiresAt       *time.Time `grove:"expires_at"     bson:"expires_at"`
	GrantedBy       string     `grove:"granted_by"     bson:"granted_by"`
	CreatedAt       time.Time  `grove:"created_at"     bson:"created_at"`
	RevokedAt       *time.Time `grove:"revoked_at"     bson:"revoked_at"`
	RevokedBy       string     `grove:"revoked_by"     bson:"revoked_by"`
}

func grantToModel(g *grant.DirectGrant) *grantModel {
	return &grantModel{
		ID:            g.ID.String(),
		UserID:        g.UserID,
		PermissionKey: string(g.PermissionKey),
		Justification: g.Justification,
		ExpiresAt:     g.ExpiresAt,
		GrantedBy:     g.GrantedBy,
		CreatedAt:     g.CreatedAt,
		RevokedAt:     g.RevokedAt,
		RevokedBy:     g.RevokedBy,
	}
}

func grantFromModel(m *grantModel) *grant.DirectGrant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &grant.DirectGrant{
		ID:            gid,
		UserID:        m.UserID,
		PermissionKey: catalog.Key(m.PermissionKey),
		Justification: m.Justification,
		ExpiresAt:     m.ExpiresAt,
		GrantedBy:     m.GrantedBy,
		CreatedAt:     m.CreatedAt,
		RevokedAt:     m.RevokedAt,
		RevokedBy:     m.RevokedBy,
	}
}

// ──────────────────────────────────────────────────
// Elevation model
// ──────────────────────────────────────────────────

type elevationModel struct {
	grove.BaseModel `grove:"table:warrant_elevations"`
	ID              string     `grove:"id,pk"          bson:"_id"`
	UserID          string     `grove:"user_id"        bson:"user_id"`
	PermissionKey   string     `grove:"permission_key" bson:"permission_key"`
	Justification   string     `grove:"justification"  bson:"justification"`
	ValidFrom       time.Time  `grove:"valid_from"     bson:"valid_from"`
	ValidUntil      time.Time  `grove:"valid_until"    bson:"valid_until"`
	Status          string     `grove:"status"         bson:"status"`
	ReviewedBy      string     `grove:"reviewed_by"    bson:"reviewed_by"`
	ReviewedAt      *time.Time `grove:"reviewed_at"    bson:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `grove:"created_at"     bson:"created_at"`
}

func elevationToModel(r *elevation.Request) *elevationModel {
	return &elevationModel{
		ID:            r.ID.String(),
		UserID:        r.UserID,
		PermissionKey: string(r.PermissionKey),
		Justification: r.Justification,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
		Status:        string(r.Status),
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
		CreatedAt:     r.CreatedAt,
	}
}

func elevationFromModel(m *elevationModel) *elevation.Request {
	rid, _ := id.ParseElevationID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &elevation.Request{
		ID:            rid,
		UserID:        m.UserID,
		PermissionKey: catalog.Key(m.PermissionKey),
		Justification: m.Justification,
		ValidFrom:     m.ValidFrom,
		ValidUntil:    m.ValidUntil,
		Status:        elevation.Status(m.Status),
		ReviewedBy:    m.ReviewedBy,
		ReviewedAt:    m.ReviewedAt,
		CreatedAt:     m.CreatedAt,
	}
}

// ──────────────────────────────────────────────────
// Audit model
// ──────────────────────────────────────────────────

type auditEventModel struct {
	grove.BaseModel `grove:"table:warrant_audit_events"`
	ID              string         `grove:"id,pk"       bson:"_id"`
	Actor           string         `grove:"actor"       bson:"actor"`
	Action          string         `grove:"action"      bson:"action"`
	EntityType      string         `grove:"entity_type" bson:"entity_type"`
	EntityID        string         `grove:"entity_id"   bson:"entity_id"`
	Timestamp       time.Time      `grove:"timestamp"   bson:"timestamp"`
	Details         map[string]any `grove:"details"     bson:"details,omitempty"`
}

func auditEventToModel(e *audit.Event) *auditEventModel {
	return &auditEventModel{
		ID:         e.ID.String(),
		Actor:      e.Actor,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Timestamp:  e.Timestamp,
		Details:    e.Details,
	}
}

func auditEventFromModel(m *auditEventModel) *audit.Event {
	aid, _ := id.ParseAuditID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &audit.Event{
		ID:         aid,
		Actor:      m.Actor,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Timestamp:  m.Timestamp,
		Details:    m.Details,
	}
}
