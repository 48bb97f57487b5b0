// Package memory provides an in-memory implementation of the Warrant
// composite store. It is intended for testing, development and the
// standalone server.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a thread-safe in-memory store for all Warrant entities.
type Store struct {
	mu sync.RWMutex

	groups      map[string]*group.Group
	memberships map[string]*group.Membership // "userID|groupID" -> edge
	grants      map[string]*grant.DirectGrant
	elevations  map[string]*elevation.Request
	events      []*audit.Event
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		groups:      make(map[string]*group.Group),
		memberships: make(map[string]*group.Membership),
		grants:      make(map[string]*grant.DirectGrant),
		elevations:  make(map[string]*elevation.Request),
	}
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping is a no-op for the memory store.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Group store
// ──────────────────────────────────────────────────

func (s *Store) CreateGroup(_ context.Context, g *group.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID.String()] = copyGroup(g)
	return nil
}

func (s *Store) GetGroup(_ context.Context, groupID id.GroupID) (*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID.String()]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	return copyGroup(g), nil
}

func (s *Store) UpdateGroup(_ context.Context, g *group.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID.String()]; !ok {
		return fmt.Errorf("group %s: %w", g.ID, store.ErrNotFound)
	}
	s.groups[g.ID.String()] = copyGroup(g)
	return nil
}

func (s *Store) DeleteGroup(_ context.Context, groupID id.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	gk := groupID.String()
	if _, ok := s.groups[gk]; !ok {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	delete(s.groups, gk)
	for k, m := range s.memberships {
		if m.GroupID.String() == gk {
			delete(s.memberships, k)
		}
	}
	return nil
}

func (s *Store) ListGroups(_ context.Context, filter *group.ListFilter) ([]*group.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*group.Group, 0, len(s.groups))
	for _, g := range s.groups {
		if !matchGroup(g, filter) {
			continue
		}
		result = append(result, copyGroup(g))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountGroups(_ context.Context, filter *group.ListFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, g := range s.groups {
		if matchGroup(g, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) SetGroupPermissions(_ context.Context, groupID id.GroupID, keys []catalog.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID.String()]
	if !ok {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	g.PermissionKeys = catalog.Normalize(keys)
	return nil
}

func (s *Store) AddMember(_ context.Context, m *group.Membership) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[m.GroupID.String()]; !ok {
		return false, fmt.Errorf("group %s: %w", m.GroupID, store.ErrNotFound)
	}
	key := membershipKey(m.UserID, m.GroupID)
	if _, exists := s.memberships[key]; exists {
		return false, nil
	}
	c := *m
	s.memberships[key] = &c
	return true, nil
}

func (s *Store) RemoveMember(_ context.Context, userID string, groupID id.GroupID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(userID, groupID)
	if _, ok := s.memberships[key]; !ok {
		return false, nil
	}
	delete(s.memberships, key)
	return true, nil
}

func (s *Store) ListMembers(_ context.Context, groupID id.GroupID) ([]*group.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gk := groupID.String()
	var result []*group.Membership
	for _, m := range s.memberships {
		if m.GroupID.String() == gk {
			c := *m
			result = append(result, &c)
		}
	}
	sortMemberships(result)
	return result, nil
}

func (s *Store) ListUserMemberships(_ context.Context, userID string) ([]*group.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*group.Membership
	for _, m := range s.memberships {
		if m.UserID == userID {
			c := *m
			result = append(result, &c)
		}
	}
	sortMemberships(result)
	return result, nil
}

// ──────────────────────────────────────────────────
// Grant store
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(_ context.Context, g *grant.DirectGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[g.ID.String()] = copyGrant(g)
	return nil
}

func (s *Store) GetGrant(_ context.Context, grantID id.GrantID) (*grant.DirectGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return nil, fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
	}
	return copyGrant(g), nil
}

func (s *Store) RevokeGrant(_ context.Context, grantID id.GrantID, revokedBy string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[grantID.String()]
	if !ok {
		return false, fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
	}
	if g.RevokedAt != nil {
		return false, nil
	}
	t := at
	g.RevokedAt = &t
	g.RevokedBy = revokedBy
	return true, nil
}

func (s *Store) ListGrants(_ context.Context, filter *grant.ListFilter) ([]*grant.DirectGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*grant.DirectGrant, 0)
	for _, g := range s.grants {
		if filter != nil {
			if filter.UserID != "" && g.UserID != filter.UserID {
				continue
			}
			if filter.PermissionKey != "" && g.PermissionKey != filter.PermissionKey {
				continue
			}
			if filter.ActiveAt != nil && !g.IsActiveAt(*filter.ActiveAt) {
				continue
			}
		}
		result = append(result, copyGrant(g))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

// ──────────────────────────────────────────────────
// Elevation store
// ──────────────────────────────────────────────────

func (s *Store) CreateElevation(_ context.Context, r *elevation.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elevations[r.ID.String()] = copyElevation(r)
	return nil
}

func (s *Store) GetElevation(_ context.Context, reqID id.ElevationID) (*elevation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.elevations[reqID.String()]
	if !ok {
		return nil, fmt.Errorf("elevation %s: %w", reqID, store.ErrNotFound)
	}
	return copyElevation(r), nil
}

func (s *Store) TransitionElevation(_ context.Context, reqID id.ElevationID, t elevation.Transition) (*elevation.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.elevations[reqID.String()]
	if !ok {
		return nil, fmt.Errorf("elevation %s: %w", reqID, store.ErrNotFound)
	}
	if r.Status != t.From {
		return nil, fmt.Errorf("elevation %s is %s: %w", reqID, r.Status, store.ErrStateConflict)
	}
	r.Status = t.To
	if t.ReviewedBy != "" {
		r.ReviewedBy = t.ReviewedBy
	}
	if t.ReviewedAt != nil {
		at := *t.ReviewedAt
		r.ReviewedAt = &at
	}
	return copyElevation(r), nil
}

func (s *Store) ListElevations(_ context.Context, filter *elevation.ListFilter) ([]*elevation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*elevation.Request, 0)
	for _, r := range s.elevations {
		if filter != nil {
			if filter.UserID != "" && r.UserID != filter.UserID {
				continue
			}
			if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, r.Status) {
				continue
			}
		}
		result = append(result, copyElevation(r))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) ExpireElevations(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.elevations {
		if r.Status == elevation.StatusApproved && r.ValidUntil.Before(now) {
			r.Status = elevation.StatusExpired
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Audit store
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEvent(_ context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *e
	c.Details = copyDetails(e.Details)
	s.events = append(s.events, &c)
	return nil
}

func (s *Store) ListAuditEvents(_ context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*audit.Event, 0)
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !matchEvent(e, filter) {
			continue
		}
		c := *e
		c.Details = copyDetails(e.Details)
		result = append(result, &c)
	}
	if filter == nil {
		return result, nil
	}
	return applyPagination(result, filter.Limit, filter.Offset), nil
}

func (s *Store) CountAuditEvents(_ context.Context, filter *audit.QueryFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, e := range s.events {
		if matchEvent(e, filter) {
			n++
		}
	}
	return n, nil
}

func (s *Store) PurgeAuditEvents(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, e := range s.events {
		if e.Timestamp.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return n, nil
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func membershipKey(userID string, groupID id.GroupID) string {
	return userID + "|" + groupID.String()
}

func matchGroup(g *group.Group, f *group.ListFilter) bool {
	if f == nil {
		return true
	}
	if f.IsActive != nil && g.IsActive != *f.IsActive {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(g.Name), q) && !strings.Contains(strings.ToLower(g.Description), q) {
			return false
		}
	}
	return true
}

func matchEvent(e *audit.Event, f *audit.QueryFilter) bool {
	if f == nil {
		return true
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.After != nil && !e.Timestamp.After(*f.After) {
		return false
	}
	if f.Before != nil && !e.Timestamp.Before(*f.Before) {
		return false
	}
	return true
}

func sortMemberships(ms []*group.Membership) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].AddedAt.Equal(ms[j].AddedAt) {
			return ms[i].AddedAt.Before(ms[j].AddedAt)
		}
		return ms[i].ID.String() < ms[j].ID.String()
	})
}

func copyGroup(g *group.Group) *group.Group {
	c := *g
	c.PermissionKeys = slices.Clone(g.PermissionKeys)
	c.UpdatedAt = cloneTime(g.UpdatedAt)
	return &c
}

func copyGrant(g *grant.DirectGrant) *grant.DirectGrant {
	c := *g
	c.ExpiresAt = cloneTime(g.ExpiresAt)
	c.RevokedAt = cloneTime(g.RevokedAt)
	return &c
}

func copyElevation(r *elevation.Request) *elevation.Request {
	c := *r
	c.ReviewedAt = cloneTime(r.ReviewedAt)
	return &c
}

func copyDetails(d map[string]any) map[string]any {
	if d == nil {
		return nil
	}
	c := make(map[string]any, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func applyPagination[T any](items []*T, limit, offset int) []*T {
	if offset > 0 {
		if offset >= len(items) {
			return []*T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
