package warrant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/store"
)

// snapshot is everything a resolution reads for one user.
type snapshot struct {
	userID     string
	groups     []*group.Group // active groups the user belongs to
	grants     []*grant.DirectGrant
	elevations []*elevation.Request
}

func (s *snapshot) clone() *snapshot {
	return &snapshot{
		userID:     s.userID,
		groups:     append([]*group.Group(nil), s.groups...),
		grants:     append([]*grant.DirectGrant(nil), s.grants...),
		elevations: append([]*elevation.Request(nil), s.elevations...),
	}
}

// ResolveAccess returns userID's effective permissions and conflicts as of
// now. Unknown users resolve to an empty set.
func (e *Engine) ResolveAccess(ctx context.Context, userID string) (*Resolution, error) {
	return e.ResolveAccessAt(ctx, userID, e.now())
}

// ResolveAccessAt resolves as of asOf. Time is an explicit input, so the
// same store state and instant always produce the same result.
func (e *Engine) ResolveAccessAt(ctx context.Context, userID string, asOf time.Time) (*Resolution, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationf("user id is required")
	}

	unlock := e.locks.rlock(userID)
	defer unlock()

	if e.cache != nil {
		if cached, ok := e.cache.Get(ctx, userID, asOf); ok {
			e.plugins.EmitAfterResolve(ctx, cached)
			return cached, nil
		}
	}

	gen := e.groupGen.Load()
	snap, err := e.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := e.compute(snap, asOf)

	if e.cache != nil && e.groupGen.Load() == gen {
		e.cache.Set(ctx, res.Clone())
		// A group-wide invalidation that ran between the check and Set
		// may have missed the entry just written.
		if e.groupGen.Load() != gen {
			e.cache.InvalidateUser(ctx, userID)
		}
	}
	e.plugins.EmitAfterResolve(ctx, res)
	return res, nil
}

// HasPermission reports whether userID currently holds key through any origin.
func (e *Engine) HasPermission(ctx context.Context, userID string, key catalog.Key) (bool, error) {
	res, err := e.ResolveAccess(ctx, userID)
	if err != nil {
		return false, err
	}
	return res.Has(key), nil
}

func (e *Engine) loadSnapshot(ctx context.Context, userID string) (*snapshot, error) {
	snap := &snapshot{userID: userID}

	memberships, err := e.store.ListUserMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("warrant: list memberships: %w", err)
	}
	seen := make(map[string]struct{}, len(memberships))
	for _, m := range memberships {
		if _, ok := seen[m.GroupID.String()]; ok {
			continue
		}
		seen[m.GroupID.String()] = struct{}{}
		g, gerr := e.store.GetGroup(ctx, m.GroupID)
		if errors.Is(gerr, store.ErrNotFound) {
			continue
		}
		if gerr != nil {
			return nil, fmt.Errorf("warrant: get group: %w", gerr)
		}
		if g.IsActive {
			snap.groups = append(snap.groups, g)
		}
	}

	snap.grants, err = e.store.ListGrants(ctx, &grant.ListFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("warrant: list grants: %w", err)
	}

	snap.elevations, err = e.store.ListElevations(ctx, &elevation.ListFilter{
		UserID:   userID,
		Statuses: []elevation.Status{elevation.StatusApproved, elevation.StatusExpired},
	})
	if err != nil {
		return nil, fmt.Errorf("warrant: list elevations: %w", err)
	}
	return snap, nil
}

// sourceSet collects the origins of one permission key.
type sourceSet struct {
	groups     []GroupOrigin
	direct     []DirectOrigin
	elevations []ElevationOrigin
}

func (s *sourceSet) count() int { return len(s.groups) + len(s.direct) + len(s.elevations) }

func (s *sourceSet) inherited() bool { return len(s.groups) > 0 || len(s.elevations) > 0 }

// compute derives a resolution from a snapshot. It reads nothing else, so
// simulations can run it over a modified copy.
func (e *Engine) compute(snap *snapshot, asOf time.Time) *Resolution {
	res := &Resolution{
		UserID:      snap.userID,
		AsOf:        asOf,
		Permissions: []EffectivePermission{},
		Conflicts:   []Conflict{},
	}
	bySource := make(map[catalog.Key]*sourceSet)
	sourcesFor := func(k catalog.Key) *sourceSet {
		s, ok := bySource[k]
		if !ok {
			s = &sourceSet{}
			bySource[k] = s
		}
		return s
	}

	groups := append([]*group.Group(nil), snap.groups...)
	sortGroups(groups)
	groupIDs := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if !g.IsActive {
			continue
		}
		if _, dup := groupIDs[g.ID.String()]; dup {
			continue
		}
		groupIDs[g.ID.String()] = struct{}{}
		for _, k := range catalog.Normalize(g.PermissionKeys) {
			if !e.catalog.Has(k) {
				continue
			}
			o := GroupOrigin{GroupID: g.ID, Name: g.Name}
			res.Permissions = append(res.Permissions, EffectivePermission{PermissionKey: k, Origin: o})
			sourcesFor(k).groups = append(sourcesFor(k).groups, o)
		}
	}

	grants := append([]*grant.DirectGrant(nil), snap.grants...)
	sort.SliceStable(grants, func(i, j int) bool {
		if !grants[i].CreatedAt.Equal(grants[j].CreatedAt) {
			return grants[i].CreatedAt.Before(grants[j].CreatedAt)
		}
		return grants[i].ID.String() < grants[j].ID.String()
	})
	for _, g := range grants {
		if !g.IsActiveAt(asOf) || !e.catalog.Has(g.PermissionKey) {
			continue
		}
		o := DirectOrigin{GrantID: g.ID}
		res.Permissions = append(res.Permissions, EffectivePermission{PermissionKey: g.PermissionKey, Origin: o})
		sourcesFor(g.PermissionKey).direct = append(sourcesFor(g.PermissionKey).direct, o)
	}

	elevs := append([]*elevation.Request(nil), snap.elevations...)
	sort.SliceStable(elevs, func(i, j int) bool {
		if !elevs[i].ValidFrom.Equal(elevs[j].ValidFrom) {
			return elevs[i].ValidFrom.Before(elevs[j].ValidFrom)
		}
		return elevs[i].ID.String() < elevs[j].ID.String()
	})
	for _, r := range elevs {
		if !r.ContributesAt(asOf) || !e.catalog.Has(r.PermissionKey) {
			continue
		}
		o := ElevationOrigin{RequestID: r.ID}
		res.Permissions = append(res.Permissions, EffectivePermission{PermissionKey: r.PermissionKey, Origin: o})
		sourcesFor(r.PermissionKey).elevations = append(sourcesFor(r.PermissionKey).elevations, o)
	}

	keys := make([]catalog.Key, 0, len(bySource))
	for k := range bySource {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	res.Summary.GroupsCount = len(groupIDs)
	res.Summary.TotalEffectivePermissions = len(keys)
	for _, k := range keys {
		s := bySource[k]
		if len(s.direct) > 0 {
			res.Summary.DirectPermissionsCount++
		}
		if s.inherited() {
			res.Summary.InheritedPermissionsCount++
		}
		if c, ok := e.detectConflict(snap.userID, k, s); ok {
			res.Conflicts = append(res.Conflicts, c)
		}
	}
	res.Summary.ConflictsCount = len(res.Conflicts)
	res.stableUntil = stableUntil(grants, elevs, asOf)
	return res
}

// stableUntil returns the earliest instant after asOf at which a grant or
// elevation changes whether it contributes.
func stableUntil(grants []*grant.DirectGrant, elevs []*elevation.Request, asOf time.Time) time.Time {
	var next time.Time
	consider := func(t time.Time) {
		if t.After(asOf) && (next.IsZero() || t.Before(next)) {
			next = t
		}
	}
	for _, g := range grants {
		if g.ExpiresAt != nil {
			consider(*g.ExpiresAt)
		}
		if g.RevokedAt != nil {
			consider(*g.RevokedAt)
		}
	}
	for _, r := range elevs {
		consider(r.ValidFrom)
		consider(r.ValidUntil.Add(time.Nanosecond))
	}
	return next
}

func sortGroups(gs []*group.Group) {
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Name != gs[j].Name {
			return gs[i].Name < gs[j].Name
		}
		return gs[i].ID.String() < gs[j].ID.String()
	})
}
