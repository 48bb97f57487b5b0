// Package warrant computes a user's effective permissions from groups,
// direct grants and approved time-bounded elevations.
//
// Every effective permission carries its provenance, so overlapping grants
// can be flagged as conflicts and resolved, and an operator can preview
// the effect of a grant or revoke before committing it.
//
//	eng, err := warrant.NewEngine(
//	    warrant.WithStore(memory.New()),
//	    warrant.WithCatalog(catalog.Default()),
//	)
//	res, err := eng.ResolveAccess(ctx, "user_123")
//	for _, c := range res.Conflicts {
//	    fmt.Println(c.PermissionKey, c.Reason)
//	}
package warrant

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/id"
)

// OriginKind names the source type of an effective permission.
type OriginKind string

const (
	// OriginGroup means the permission is inherited from an active group.
	OriginGroup OriginKind = "group"

	// OriginDirect means the permission comes from a direct grant.
	OriginDirect OriginKind = "direct"

	// OriginElevation means the permission comes from an approved elevation
	// request whose window contains the resolution instant.
	OriginElevation OriginKind = "elevation"
)

// Origin is the closed set of permission sources. The only implementations
// are GroupOrigin, DirectOrigin and ElevationOrigin.
type Origin interface {
	Kind() OriginKind
	SourceName() string
	SourceID() string
	isOrigin()
}

// GroupOrigin is a permission inherited through group membership.
type GroupOrigin struct {
	GroupID id.GroupID
	Name    string
}

func (GroupOrigin) Kind() OriginKind     { return OriginGroup }
func (o GroupOrigin) SourceName() string { return o.Name }
func (o GroupOrigin) SourceID() string   { return o.GroupID.String() }
func (GroupOrigin) isOrigin()            {}

// DirectOrigin is a permission given by a direct grant.
type DirectOrigin struct {
	GrantID id.GrantID
}

func (DirectOrigin) Kind() OriginKind     { return OriginDirect }
func (DirectOrigin) SourceName() string   { return "Direct" }
func (o DirectOrigin) SourceID() string   { return o.GrantID.String() }
func (DirectOrigin) isOrigin()            {}

// ElevationOrigin is a permission given by an approved elevation request.
type ElevationOrigin struct {
	RequestID id.ElevationID
}

func (ElevationOrigin) Kind() OriginKind   { return OriginElevation }
func (ElevationOrigin) SourceName() string { return "Elevation" }
func (o ElevationOrigin) SourceID() string { return o.RequestID.String() }
func (ElevationOrigin) isOrigin()          {}

// EffectivePermission is one (permission, source) pair. A permission
// reachable through several sources appears once per source.
type EffectivePermission struct {
	PermissionKey catalog.Key
	Origin        Origin
}

// MarshalJSON flattens the origin into kind, name and id fields.
func (p EffectivePermission) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		PermissionKey catalog.Key `json:"permission_key"`
		Origin        OriginKind  `json:"origin"`
		SourceName    string      `json:"source_name"`
		SourceID      string      `json:"source_id,omitempty"`
	}{p.PermissionKey, p.Origin.Kind(), p.Origin.SourceName(), p.Origin.SourceID()})
}

// Conflict flags an ambiguous grant of one permission to one user.
// Conflicts are derived on every resolution and never stored; ID is stable
// for as long as the same set of origins produces the conflict.
type Conflict struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	PermissionKey catalog.Key  `json:"permission_key"`
	Origins       []OriginKind `json:"origins"`
	Sources       []string     `json:"sources"`
	IsCritical    bool         `json:"is_critical"`
	Reason        string       `json:"reason"`
}

// Summary aggregates a resolution. All counts come from the same pass.
type Summary struct {
	GroupsCount               int `json:"groups_count"`
	DirectPermissionsCount    int `json:"direct_permissions_count"`
	InheritedPermissionsCount int `json:"inherited_permissions_count"`
	TotalEffectivePermissions int `json:"total_effective_permissions"`
	ConflictsCount            int `json:"conflicts_count"`
}

// Resolution is the effective access of one user at one instant.
type Resolution struct {
	UserID      string                `json:"user_id"`
	AsOf        time.Time             `json:"as_of"`
	Summary     Summary               `json:"summary"`
	Permissions []EffectivePermission `json:"permissions"`
	Conflicts   []Conflict            `json:"conflicts"`

	stableUntil time.Time
}

// StableUntil returns the earliest instant after AsOf at which a grant
// expiry or elevation window boundary changes the outcome. The zero time
// means no time-driven change is pending.
func (r *Resolution) StableUntil() time.Time { return r.stableUntil }

// Keys returns the distinct effective permission keys, sorted.
func (r *Resolution) Keys() []catalog.Key {
	seen := make(map[catalog.Key]struct{}, len(r.Permissions))
	out := make([]catalog.Key, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		if _, ok := seen[p.PermissionKey]; ok {
			continue
		}
		seen[p.PermissionKey] = struct{}{}
		out = append(out, p.PermissionKey)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether key is reachable through any origin.
func (r *Resolution) Has(key catalog.Key) bool {
	for _, p := range r.Permissions {
		if p.PermissionKey == key {
			return true
		}
	}
	return false
}

// Origins returns the entries for key.
func (r *Resolution) Origins(key catalog.Key) []EffectivePermission {
	var out []EffectivePermission
	for _, p := range r.Permissions {
		if p.PermissionKey == key {
			out = append(out, p)
		}
	}
	return out
}

// ConflictFor returns the conflict raised for key, if any.
func (r *Resolution) ConflictFor(key catalog.Key) (Conflict, bool) {
	for _, c := range r.Conflicts {
		if c.PermissionKey == key {
			return c, true
		}
	}
	return Conflict{}, false
}

// Clone returns a copy that shares no slices with r.
func (r *Resolution) Clone() *Resolution {
	c := *r
	c.Permissions = append([]EffectivePermission(nil), r.Permissions...)
	c.Conflicts = make([]Conflict, len(r.Conflicts))
	for i, cf := range r.Conflicts {
		cf.Origins = append([]OriginKind(nil), cf.Origins...)
		cf.Sources = append([]string(nil), cf.Sources...)
		c.Conflicts[i] = cf
	}
	return &c
}

// Strategy selects how a conflict is resolved.
type Strategy string

// StrategyRevokeDirect revokes the direct grants behind a conflict and
// leaves group and elevation access intact.
const StrategyRevokeDirect Strategy = "revoke_direct"

// ConflictResolution reports what ResolveConflict changed.
type ConflictResolution struct {
	ConflictID      string       `json:"conflict_id"`
	UserID          string       `json:"user_id"`
	PermissionKey   catalog.Key  `json:"permission_key"`
	Strategy        Strategy     `json:"strategy"`
	RevokedGrantIDs []id.GrantID `json:"revoked_grant_ids"`
}

// SimulationAction is a hypothetical mutation.
type SimulationAction string

const (
	SimulateGrantPermission  SimulationAction = "grant_permission"
	SimulateRevokePermission SimulationAction = "revoke_permission"
	SimulateJoinGroup        SimulationAction = "join_group"
	SimulateLeaveGroup       SimulationAction = "leave_group"
)

// SimulationInput describes a what-if change for one user.
type SimulationInput struct {
	UserID        string           `json:"user_id"`
	Action        SimulationAction `json:"action"`
	PermissionKey catalog.Key      `json:"permission_key,omitempty"`
	GroupID       id.GroupID       `json:"group_id,omitzero"`
}

// Diff lists permission keys a change would add or remove. CriticalChanges
// is the subset of Added and Removed flagged critical in the catalog.
type Diff struct {
	Added           []catalog.Key `json:"added"`
	Removed         []catalog.Key `json:"removed"`
	CriticalChanges []catalog.Key `json:"critical_changes"`
}

// SimulationResult is the outcome of a dry run.
type SimulationResult struct {
	UserID        string           `json:"user_id"`
	Action        SimulationAction `json:"action"`
	PermissionKey catalog.Key      `json:"permission_key,omitempty"`
	GroupID       id.GroupID       `json:"group_id,omitzero"`
	AsOf          time.Time        `json:"as_of"`
	Diff          Diff             `json:"diff"`
	Before        Summary          `json:"before"`
	After         Summary          `json:"after"`
}

// GrantInput is the input to GrantDirect.
type GrantInput struct {
	UserID        string      `json:"user_id"`
	PermissionKey catalog.Key `json:"permission_key"`
	Justification string      `json:"justification"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

// ElevationInput is the input to RequestElevation. A zero ValidFrom means
// "now".
type ElevationInput struct {
	UserID        string      `json:"user_id"`
	PermissionKey catalog.Key `json:"permission_key"`
	Justification string      `json:"justification"`
	ValidFrom     time.Time   `json:"valid_from"`
	ValidUntil    time.Time   `json:"valid_until"`
}

// ElevationFilter filters ListElevationRequests. Status matches the
// effective status, so approved requests past their window list as expired.
type ElevationFilter struct {
	UserID string           `json:"user_id,omitempty"`
	Status elevation.Status `json:"status,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// ElevationView is a request with its derived fields for the caller.
type ElevationView struct {
	*elevation.Request
	EffectiveStatus elevation.Status `json:"effective_status"`
	CanCancel       bool             `json:"can_cancel"`
}
