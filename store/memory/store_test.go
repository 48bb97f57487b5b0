package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

func TestGroupCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	g := &group.Group{
		ID:             id.NewGroupID(),
		Name:           "Sales",
		IsActive:       true,
		PermissionKeys: []catalog.Key{"deals.view"},
		CreatedAt:      time.Now(),
	}
	if err := s.CreateGroup(ctx, g); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not leak into the store.
	g.PermissionKeys[0] = "billing.manage"
	got, err := s.GetGroup(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PermissionKeys[0] != "deals.view" {
		t.Fatalf("store aliased caller slice: %v", got.PermissionKeys)
	}

	if err := s.SetGroupPermissions(ctx, g.ID, []catalog.Key{"b", "a", "a"}); err != nil {
		t.Fatal(err)
	}
	got, _ = s.GetGroup(ctx, g.ID)
	if len(got.PermissionKeys) != 2 || got.PermissionKeys[0] != "a" {
		t.Fatalf("expected normalized set, got %v", got.PermissionKeys)
	}

	active := true
	list, _ := s.ListGroups(ctx, &group.ListFilter{Search: "sal", IsActive: &active})
	if len(list) != 1 {
		t.Fatalf("expected 1 group, got %d", len(list))
	}
	count, _ := s.CountGroups(ctx, &group.ListFilter{Search: "nomatch"})
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}

	got.Description = "Regional pipeline owners"
	if err := s.UpdateGroup(ctx, got); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ListGroups(ctx, &group.ListFilter{Search: "PIPELINE"})
	if len(list) != 1 {
		t.Fatalf("search should match the description, got %d groups", len(list))
	}
	count, _ = s.CountGroups(ctx, &group.ListFilter{Search: "pipeline"})
	if count != 1 {
		t.Fatalf("expected count 1 for description search, got %d", count)
	}

	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetGroup(ctx, g.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteGroup(ctx, g.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestMembershipIdempotence(t *testing.T) {
	ctx := context.Background()
	s := New()
	gid := id.NewGroupID()
	_ = s.CreateGroup(ctx, &group.Group{ID: gid, Name: "Ops", IsActive: true})

	m := &group.Membership{ID: id.NewMembershipID(), UserID: "u1", GroupID: gid, AddedAt: time.Now()}
	created, err := s.AddMember(ctx, m)
	if err != nil || !created {
		t.Fatalf("first add: created=%v err=%v", created, err)
	}
	created, err = s.AddMember(ctx, m)
	if err != nil || created {
		t.Fatalf("second add should be a no-op: created=%v err=%v", created, err)
	}

	other := id.NewGroupID()
	_ = s.CreateGroup(ctx, &group.Group{ID: other, Name: "Finance", IsActive: true})
	if _, err := s.AddMember(ctx, &group.Membership{ID: id.NewMembershipID(), UserID: "u2", GroupID: other, AddedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	members, err := s.ListMembers(ctx, gid)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != "u1" {
		t.Fatalf("expected only u1 in the group, got %d members", len(members))
	}

	if _, err := s.AddMember(ctx, &group.Membership{UserID: "u1", GroupID: id.NewGroupID()}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown group, got %v", err)
	}

	removed, _ := s.RemoveMember(ctx, "u1", gid)
	if !removed {
		t.Fatal("expected removal")
	}
	removed, err = s.RemoveMember(ctx, "u1", gid)
	if err != nil || removed {
		t.Fatal("removing a non-member should be a silent no-op")
	}
}

func TestDeleteGroupDropsMemberships(t *testing.T) {
	ctx := context.Background()
	s := New()
	gid := id.NewGroupID()
	_ = s.CreateGroup(ctx, &group.Group{ID: gid, Name: "Ops"})
	_, _ = s.AddMember(ctx, &group.Membership{ID: id.NewMembershipID(), UserID: "u1", GroupID: gid})

	if err := s.DeleteGroup(ctx, gid); err != nil {
		t.Fatal(err)
	}
	ms, _ := s.ListUserMemberships(ctx, "u1")
	if len(ms) != 0 {
		t.Fatalf("expected memberships to be removed, got %d", len(ms))
	}
}

func TestGrantRevokeAndFilter(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	past := now.Add(-time.Hour)

	live := &grant.DirectGrant{ID: id.NewGrantID(), UserID: "u1", PermissionKey: "deals.view", Justification: "x", CreatedAt: now}
	expired := &grant.DirectGrant{ID: id.NewGrantID(), UserID: "u1", PermissionKey: "deals.view", Justification: "x", ExpiresAt: &past, CreatedAt: now}
	_ = s.CreateGrant(ctx, live)
	_ = s.CreateGrant(ctx, expired)

	active, _ := s.ListGrants(ctx, &grant.ListFilter{UserID: "u1", ActiveAt: &now})
	if len(active) != 1 || active[0].ID != live.ID {
		t.Fatalf("expected only the live grant, got %d", len(active))
	}

	changed, err := s.RevokeGrant(ctx, live.ID, "admin", now)
	if err != nil || !changed {
		t.Fatalf("revoke: changed=%v err=%v", changed, err)
	}
	changed, err = s.RevokeGrant(ctx, live.ID, "admin", now.Add(time.Minute))
	if err != nil || changed {
		t.Fatalf("second revoke should be a no-op: changed=%v err=%v", changed, err)
	}
	got, _ := s.GetGrant(ctx, live.ID)
	if got.RevokedAt == nil || !got.RevokedAt.Equal(now) {
		t.Fatal("revokedAt should keep the first revocation time")
	}

	if _, err := s.RevokeGrant(ctx, id.NewGrantID(), "admin", now); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	all, _ := s.ListGrants(ctx, &grant.ListFilter{UserID: "u1"})
	if len(all) != 2 {
		t.Fatalf("history must be preserved, got %d grants", len(all))
	}
}

func TestElevationTransitionCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now()
	r := &elevation.Request{
		ID: id.NewElevationID(), UserID: "u1", PermissionKey: "billing.manage",
		ValidFrom: now.Add(-time.Hour), ValidUntil: now.Add(time.Hour),
		Status: elevation.StatusPending, CreatedAt: now,
	}
	_ = s.CreateElevation(ctx, r)

	updated, err := s.TransitionElevation(ctx, r.ID, elevation.Transition{
		From: elevation.StatusPending, To: elevation.StatusApproved, ReviewedBy: "boss", ReviewedAt: &now,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != elevation.StatusApproved || updated.ReviewedBy != "boss" {
		t.Fatalf("unexpected request %+v", updated)
	}

	_, err = s.TransitionElevation(ctx, r.ID, elevation.Transition{From: elevation.StatusPending, To: elevation.StatusRejected})
	if !errors.Is(err, store.ErrStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	n, _ := s.ExpireElevations(ctx, now)
	if n != 0 {
		t.Fatalf("nothing should expire yet, got %d", n)
	}
	n, _ = s.ExpireElevations(ctx, now.Add(2*time.Hour))
	if n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	list, _ := s.ListElevations(ctx, &elevation.ListFilter{Statuses: []elevation.Status{elevation.StatusExpired}})
	if len(list) != 1 {
		t.Fatalf("expected 1 expired request, got %d", len(list))
	}
}

func TestAuditQueryAndPurge(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		_ = s.CreateAuditEvent(ctx, &audit.Event{
			ID: id.NewAuditID(), Actor: "admin", Action: audit.ActionGrantCreated,
			EntityType: audit.EntityGrant, Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
	}

	list, _ := s.ListAuditEvents(ctx, &audit.QueryFilter{Actor: "admin", Limit: 2})
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if !list[0].Timestamp.After(list[1].Timestamp) {
		t.Fatal("expected newest first")
	}

	n, _ := s.PurgeAuditEvents(ctx, base.Add(90*time.Minute))
	if n != 2 {
		t.Fatalf("expected 2 purged, got %d", n)
	}
	count, _ := s.CountAuditEvents(ctx, nil)
	if count != 1 {
		t.Fatalf("expected 1 remaining, got %d", count)
	}
}
