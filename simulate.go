package warrant

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// Simulate previews a change without persisting anything: it resolves the
// user before and after applying the hypothetical action to an in-memory
// copy of their state.
//
// revoke_permission removes the user-scoped sources (direct grants and
// elevations) of the key, or of every key when none is given. Group
// membership is left alone because it is not user-scoped.
func (e *Engine) Simulate(ctx context.Context, in SimulationInput) (*SimulationResult, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, validationf("user id is required")
	}
	switch in.Action {
	case SimulateGrantPermission:
		if in.PermissionKey == "" {
			return nil, validationf("permission key is required for %s", in.Action)
		}
		fallthrough
	case SimulateRevokePermission:
		if in.PermissionKey != "" && !e.catalog.Has(in.PermissionKey) {
			return nil, validationf("unknown permission key %q", in.PermissionKey)
		}
	case SimulateJoinGroup, SimulateLeaveGroup:
		if in.GroupID.IsNil() {
			return nil, validationf("group id is required for %s", in.Action)
		}
	default:
		return nil, validationf("unknown simulation action %q", in.Action)
	}

	unlock := e.locks.rlock(userID)
	defer unlock()

	snap, err := e.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	before := e.compute(snap, now)

	hyp := snap.clone()
	switch in.Action {
	case SimulateGrantPermission:
		hyp.grants = append(hyp.grants, &grant.DirectGrant{
			ID:            id.Nil,
			UserID:        userID,
			PermissionKey: in.PermissionKey,
			Justification: "simulation",
			CreatedAt:     now,
		})
	case SimulateRevokePermission:
		hyp.grants = keepIf(hyp.grants, func(g *grant.DirectGrant) bool {
			return in.PermissionKey != "" && g.PermissionKey != in.PermissionKey
		})
		hyp.elevations = keepIf(hyp.elevations, func(r *elevation.Request) bool {
			return in.PermissionKey != "" && r.PermissionKey != in.PermissionKey
		})
	case SimulateJoinGroup:
		g, gerr := e.store.GetGroup(ctx, in.GroupID)
		if errors.Is(gerr, store.ErrNotFound) {
			return nil, notFound(gerr, "group %s not found", in.GroupID)
		}
		if gerr != nil {
			return nil, gerr
		}
		if g.IsActive && !containsGroup(hyp.groups, in.GroupID) {
			hyp.groups = append(hyp.groups, g)
		}
	case SimulateLeaveGroup:
		hyp.groups = keepIf(hyp.groups, func(g *group.Group) bool {
			return g.ID.String() != in.GroupID.String()
		})
	}
	after := e.compute(hyp, now)

	return &SimulationResult{
		UserID:        userID,
		Action:        in.Action,
		PermissionKey: in.PermissionKey,
		GroupID:       in.GroupID,
		AsOf:          now,
		Diff:          e.diff(before.Keys(), after.Keys()),
		Before:        before.Summary,
		After:         after.Summary,
	}, nil
}

func (e *Engine) diff(before, after []catalog.Key) Diff {
	d := Diff{Added: []catalog.Key{}, Removed: []catalog.Key{}, CriticalChanges: []catalog.Key{}}
	inBefore := make(map[catalog.Key]struct{}, len(before))
	for _, k := range before {
		inBefore[k] = struct{}{}
	}
	inAfter := make(map[catalog.Key]struct{}, len(after))
	for _, k := range after {
		inAfter[k] = struct{}{}
		if _, ok := inBefore[k]; !ok {
			d.Added = append(d.Added, k)
		}
	}
	for _, k := range before {
		if _, ok := inAfter[k]; !ok {
			d.Removed = append(d.Removed, k)
		}
	}
	for _, k := range append(append([]catalog.Key(nil), d.Added...), d.Removed...) {
		if e.catalog.IsCritical(k) {
			d.CriticalChanges = append(d.CriticalChanges, k)
		}
	}
	sort.Slice(d.CriticalChanges, func(i, j int) bool { return d.CriticalChanges[i] < d.CriticalChanges[j] })
	return d
}

func keepIf[T any](items []T, keep func(T) bool) []T {
	out := items[:0:0]
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}

func containsGroup(gs []*group.Group, groupID id.GroupID) bool {
	for _, g := range gs {
		if g.ID.String() == groupID.String() {
			return true
		}
	}
	return false
}
