package postgres

import (
	"fmt"
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
// Group models
// ──────────────────────────────────────────────────

type groupModel struct {
	grove.BaseModel `grove:"table:warrant_groups"`
	ID              string     `grove:"id,pk"`
	Name            string     `grove:"name,notnull"`
	Description     string     `grove:"description"`
	IsActive        bool       `grove:"is_active,notnull"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	CreatedBy       string     `grove:"created_by"`
	UpdatedAt       *time.Time `grove:"updated_at"`
	UpdatedBy       string     `grove:"updated_by"`
}

type groupPermissionModel struct {
	grove.BaseModel `grove:"table:warrant_group_permissions"`
	GroupID         string `grove:"group_id,pk"`
	PermissionKey   string `grove:"permission_key,pk"`
}

func groupToModel(g *group.Group) *groupModel {
	return &groupModel{
		ID:          g.ID.String(),
		Name:        g.Name,
		Description: g.Description,
		IsActive:    g.IsActive,
		CreatedAt:   g.CreatedAt,
		CreatedBy:   g.CreatedBy,
		UpdatedAt:   g.UpdatedAt,
		UpdatedBy:   g.UpdatedBy,
	}
}

func groupFromModel(m *groupModel, keys []catalog.Key) (*group.Group, error) {
	gid, err := id.ParseGroupID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse group id: %w", err)
	}
	if keys == nil {
		keys = []catalog.Key{}
	}
	return &group.Group{
		ID:             gid,
		Name:           m.Name,
		Description:    m.Description,
		IsActive:       m.IsActive,
		PermissionKeys: keys,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
		UpdatedAt:      m.UpdatedAt,
		UpdatedBy:      m.UpdatedBy,
	}, nil
}

func permissionModels(groupID string, keys []catalog.Key) []groupPermissionModel {
	models := make([]groupPermissionModel, len(keys))
	for i, k := range keys {
		models[i] = groupPermissionModel{GroupID: groupID, PermissionKey: string(k)}
	}
	return models
}

type membershipModel struct {
	grove.BaseModel `grove:"table:warrant_memberships"`
	ID              string    `grove:"id,pk"`
	UserID          string    `grove:"user_id,notnull"`
	GroupID         string    `grove:"group_id,notnull"`
	AddedAt         time.Time `grove:"added_at,notnull"`
	AddedBy         string    `grove:"added_by"`
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

func membershipFromModel(m *membershipModel) (*group.Membership, error) {
	mid, err := id.ParseMembershipID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse membership id: %w", err)
	}
	gid, err := id.ParseGroupID(m.GroupID)
	if err != nil {
		return nil, fmt.Errorf("parse group id: %w", err)
	}
	return &group.Membership{
		ID:      mid,
		UserID:  m.UserID,
		GroupID: gid,
		AddedAt: m.AddedAt,
		AddedBy: m.AddedBy,
	}, nil
}

// ──────────────────────────────────────────────────
// Direct grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:warrant_direct_grants"`
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	PermissionKey   string     `grove:"permission_key,notnull"`
	Justification   string     `grove:"justification,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	GrantedBy       string     `grove:"granted_by"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
	RevokedAt       *time.Time `grove:"revoked_at"`
	RevokedBy       string     `grove:"revoked_by"`
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

func grantFromModel(m *grantModel) (*grant.DirectGrant, error) {
	gid, err := id.ParseGrantID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse grant id: %w", err)
	}
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
	}, nil
}

// ──────────────────────────────────────────────────
// Elevation model
// ──────────────────────────────────────────────────

type elevationModel struct {
	grove.BaseModel `grove:"table:warrant_elevations"`
	ID              string     `grove:"id,pk"`
	UserID          string     `grove:"user_id,notnull"`
	PermissionKey   string     `grove:"permission_key,notnull"`
	Justification   string     `grove:"justification,notnull"`
	ValidFrom       time.Time  `grove:"valid_from,notnull"`
	ValidUntil      time.Time  `grove:"valid_until,notnull"`
	Status          string     `grove:"status,notnull"`
	ReviewedBy      string     `grove:"reviewed_by"`
	ReviewedAt      *time.Time `grove:"reviewed_at"`
	CreatedAt       time.Time  `grove:"created_at,notnull"`
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

func elevationFromModel(m *elevationModel) (*elevation.Request, error) {
	rid, err := id.ParseElevationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse elevation id: %w", err)
	}
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
	}, nil
}

// ──────────────────────────────────────────────────
// Audit model
// ──────────────────────────────────────────────────

type auditEventModel struct {
	grove.BaseModel `grove:"table:warrant_audit_events"`
	ID              string         `grove:"id,pk"`
	Actor           string         `grove:"actor,notnull"`
	Action          string         `grove:"action,notnull"`
	EntityType      string         `grove:"entity_type,notnull"`
	EntityID        string         `grove:"entity_id"`
	Timestamp       time.Time      `grove:"timestamp,notnull"`
	Details         map[string]any `grove:"details,type:jsonb"`
}

func auditEventToModel(e *audit.Event) (*auditEventModel, error) {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return &auditEventModel{
		ID:         e.ID.String(),
		Actor:      e.Actor,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Timestamp:  e.Timestamp,
		Details:    details,
	}, nil
}

func auditEventFromModel(m *auditEventModel) (*audit.Event, error) {
	aid, err := id.ParseAuditID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit id: %w", err)
	}
	var details map[string]any
	if len(m.Details) > 0 {
		details = m.Details
	}
	return &audit.Event{
		ID:         aid,
		Actor:      m.Actor,
		Action:     m.Action,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Timestamp:  m.Timestamp,
		Details:    details,
	}, nil
}
