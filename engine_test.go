package warrant

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store/memory"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *memory.Store, *testClock) {
	t.Helper()
	s := memory.New()
	clk := &testClock{now: t0}
	base := []Option{
		WithStore(s),
		WithCatalog(catalog.Default()),
		WithClock(clk.Now),
	}
	eng, err := NewEngine(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return eng, s, clk
}

func mustGroup(t *testing.T, eng *Engine, name string, active bool, keys ...catalog.Key) *group.Group {
	t.Helper()
	g, err := eng.SaveGroup(context.Background(), &group.Group{Name: name, IsActive: active, PermissionKeys: keys})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func mustGrant(t *testing.T, eng *Engine, userID string, key catalog.Key) id.GrantID {
	t.Helper()
	g, err := eng.GrantDirect(context.Background(), GrantInput{UserID: userID, PermissionKey: key, Justification: "ticket"})
	if err != nil {
		t.Fatal(err)
	}
	return g.ID
}

func mustResolve(t *testing.T, eng *Engine, userID string) *Resolution {
	t.Helper()
	res, err := eng.ResolveAccess(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected %s error, got %v (%s)", kind, err, KindOf(err))
	}
}

func TestNewEngine_RequiresStore(t *testing.T) {
	_, err := NewEngine()
	if err == nil {
		t.Fatal("expected error when store is nil")
	}
}

func TestNewEngine_DefaultCatalog(t *testing.T) {
	eng, err := NewEngine(WithStore(memory.New()))
	if err != nil {
		t.Fatal(err)
	}
	if !eng.Catalog().Has("billing.manage") {
		t.Fatal("expected default catalog")
	}
}

func TestResolve_GroupAndDirectOverlap(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g1 := mustGroup(t, eng, "Sales", true, "deals.view", "deals.edit")
	if err := eng.AddMember(ctx, "u1", g1.ID); err != nil {
		t.Fatal(err)
	}
	grantID := mustGrant(t, eng, "u1", "deals.view")

	res := mustResolve(t, eng, "u1")
	want := Summary{
		GroupsCount:               1,
		DirectPermissionsCount:    1,
		InheritedPermissionsCount: 2,
		TotalEffectivePermissions: 2,
		ConflictsCount:            1,
	}
	if res.Summary != want {
		t.Fatalf("summary: got %+v, want %+v", res.Summary, want)
	}
	if len(res.Permissions) != 3 {
		t.Fatalf("expected 3 effective entries, got %d", len(res.Permissions))
	}

	c, ok := res.ConflictFor("deals.view")
	if !ok {
		t.Fatal("expected conflict on deals.view")
	}
	if c.IsCritical {
		t.Fatal("deals.view is not critical")
	}
	if !reflect.DeepEqual(c.Origins, []OriginKind{OriginGroup, OriginDirect}) {
		t.Fatalf("unexpected origins %v", c.Origins)
	}

	out, err := eng.ResolveConflict(ctx, c.ID, StrategyRevokeDirect)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.RevokedGrantIDs) != 1 || out.RevokedGrantIDs[0].String() != grantID.String() {
		t.Fatalf("expected grant %s revoked, got %v", grantID, out.RevokedGrantIDs)
	}

	res = mustResolve(t, eng, "u1")
	if res.Summary.ConflictsCount != 0 {
		t.Fatalf("expected no conflicts, got %d", res.Summary.ConflictsCount)
	}
	origins := res.Origins("deals.view")
	if len(origins) != 1 || origins[0].Origin.Kind() != OriginGroup {
		t.Fatalf("expected deals.view via group only, got %+v", origins)
	}

	// The same ID no longer describes a live conflict.
	_, err = eng.ResolveConflict(ctx, c.ID, StrategyRevokeDirect)
	requireKind(t, err, KindNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is(err, ErrNotFound)")
	}
}

func TestResolve_ExpiredGrantExcluded(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t)

	exp := t0.Add(time.Hour)
	if _, err := eng.GrantDirect(ctx, GrantInput{
		UserID: "u1", PermissionKey: "reports.export", Justification: "quarter close", ExpiresAt: &exp,
	}); err != nil {
		t.Fatal(err)
	}
	if !mustResolve(t, eng, "u1").Has("reports.export") {
		t.Fatal("expected active grant")
	}

	clk.Advance(time.Hour)
	if mustResolve(t, eng, "u1").Has("reports.export") {
		t.Fatal("grant must not contribute at its expiry instant")
	}
}

func TestResolve_InactiveGroupContributesNothing(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g := mustGroup(t, eng, "Finance", false, "invoices.view")
	if err := eng.AddMember(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	res := mustResolve(t, eng, "u1")
	if res.Summary.GroupsCount != 0 || res.Summary.TotalEffectivePermissions != 0 {
		t.Fatalf("expected empty resolution, got %+v", res.Summary)
	}

	g.IsActive = true
	if _, err := eng.SaveGroup(ctx, g); err != nil {
		t.Fatal(err)
	}
	if !mustResolve(t, eng, "u1").Has("invoices.view") {
		t.Fatal("expected permission after activation")
	}
}

func TestResolve_UnknownUserIsEmpty(t *testing.T) {
	eng, _, _ := newTestEngine(t)
	res := mustResolve(t, eng, "nobody")
	if len(res.Permissions) != 0 || len(res.Conflicts) != 0 {
		t.Fatalf("expected empty resolution, got %+v", res)
	}
	if res.Summary != (Summary{}) {
		t.Fatalf("expected zero summary, got %+v", res.Summary)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g1 := mustGroup(t, eng, "Sales", true, "deals.view", "billing.manage")
	g2 := mustGroup(t, eng, "Admins", true, "billing.manage")
	_ = eng.AddMember(ctx, "u1", g1.ID)
	_ = eng.AddMember(ctx, "u1", g2.ID)
	mustGrant(t, eng, "u1", "deals.view")

	a := mustResolve(t, eng, "u1")
	b := mustResolve(t, eng, "u1")
	if !reflect.DeepEqual(a.Permissions, b.Permissions) {
		t.Fatal("permissions differ between identical resolutions")
	}
	if !reflect.DeepEqual(a.Conflicts, b.Conflicts) {
		t.Fatal("conflicts differ between identical resolutions")
	}
	if a.Summary != b.Summary {
		t.Fatal("summaries differ between identical resolutions")
	}
}

func TestResolve_ElevationWindow(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	req, err := eng.RequestElevation(ctx, ElevationInput{
		UserID:        "u1",
		PermissionKey: "billing.manage",
		Justification: "refund",
		ValidFrom:     t0.Add(time.Hour),
		ValidUntil:    t0.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ReviewElevation(ctx, req.ID, elevation.ActionApprove, "reviewer"); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before window", t0, false},
		{"window start", t0.Add(time.Hour), true},
		{"inside window", t0.Add(90 * time.Minute), true},
		{"window end", t0.Add(2 * time.Hour), true},
		{"after window", t0.Add(2*time.Hour + time.Nanosecond), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := eng.ResolveAccessAt(ctx, "u1", tc.at)
			if err != nil {
				t.Fatal(err)
			}
			if got := res.Has("billing.manage"); got != tc.want {
				t.Fatalf("at %s: got %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestResolve_SweepDoesNotChangeOutcome(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t)

	req, _ := eng.RequestElevation(ctx, ElevationInput{
		UserID: "u1", PermissionKey: "deals.approve", Justification: "cover", ValidUntil: t0.Add(time.Hour),
	})
	if _, err := eng.ReviewElevation(ctx, req.ID, elevation.ActionApprove, "reviewer"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Hour)

	before := mustResolve(t, eng, "u1")
	inside, err := eng.ResolveAccessAt(ctx, "u1", t0.Add(30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}

	n, err := eng.SweepExpiredElevations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept request, got %d", n)
	}

	after := mustResolve(t, eng, "u1")
	if !reflect.DeepEqual(before.Permissions, after.Permissions) {
		t.Fatal("sweep changed current resolution")
	}
	insideAfter, _ := eng.ResolveAccessAt(ctx, "u1", t0.Add(30*time.Minute))
	if !reflect.DeepEqual(inside.Permissions, insideAfter.Permissions) {
		t.Fatal("sweep changed historical resolution")
	}

	views, err := eng.ListElevationRequests(ctx, ElevationFilter{UserID: "u1", Status: elevation.StatusExpired})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 expired request, got %d", len(views))
	}
}

func TestConflict_CriticalTwoGroups(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g1 := mustGroup(t, eng, "Finance", true, "billing.manage")
	g2 := mustGroup(t, eng, "Admins", true, "billing.manage")
	_ = eng.AddMember(ctx, "u1", g1.ID)
	_ = eng.AddMember(ctx, "u1", g2.ID)

	res := mustResolve(t, eng, "u1")
	c, ok := res.ConflictFor("billing.manage")
	if !ok {
		t.Fatal("expected critical conflict")
	}
	if !c.IsCritical {
		t.Fatal("expected IsCritical")
	}

	// Nothing direct to revoke.
	_, err := eng.ResolveConflict(ctx, c.ID, StrategyRevokeDirect)
	requireKind(t, err, KindValidation)
}

func TestConflict_DuplicateDirectKeepsOldest(t *testing.T) {
	ctx := context.Background()
	eng, _, clk := newTestEngine(t)

	first := mustGrant(t, eng, "u1", "reports.view")
	clk.Advance(time.Minute)
	second := mustGrant(t, eng, "u1", "reports.view")

	res := mustResolve(t, eng, "u1")
	c, ok := res.ConflictFor("reports.view")
	if !ok {
		t.Fatal("expected duplicate-grant conflict")
	}
	out, err := eng.ResolveConflict(ctx, c.ID, StrategyRevokeDirect)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.RevokedGrantIDs) != 1 || out.RevokedGrantIDs[0].String() != second.String() {
		t.Fatalf("expected only the newer grant revoked, got %v", out.RevokedGrantIDs)
	}

	res = mustResolve(t, eng, "u1")
	origins := res.Origins("reports.view")
	if len(origins) != 1 || origins[0].Origin.SourceID() != first.String() {
		t.Fatalf("expected the oldest grant kept, got %+v", origins)
	}
}

func TestConflict_IDStableAndScoped(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g1 := mustGroup(t, eng, "Sales", true, "deals.view")
	_ = eng.AddMember(ctx, "u1", g1.ID)
	mustGrant(t, eng, "u1", "deals.view")

	a, _ := mustResolve(t, eng, "u1").ConflictFor("deals.view")
	b, _ := mustResolve(t, eng, "u1").ConflictFor("deals.view")
	if a.ID == "" || a.ID != b.ID {
		t.Fatalf("expected stable conflict id, got %q and %q", a.ID, b.ID)
	}

	userID, key, ok := parseConflictID(a.ID)
	if !ok || userID != "u1" || key != "deals.view" {
		t.Fatalf("unexpected decode: %q %q %v", userID, key, ok)
	}

	// Adding a second group changes the origin set, so the old ID is stale.
	g2 := mustGroup(t, eng, "Support", true, "deals.view")
	_ = eng.AddMember(ctx, "u1", g2.ID)
	c, _ := mustResolve(t, eng, "u1").ConflictFor("deals.view")
	if c.ID == a.ID {
		t.Fatal("expected new conflict id after origin set changed")
	}
	_, err := eng.ResolveConflict(ctx, a.ID, StrategyRevokeDirect)
	requireKind(t, err, KindNotFound)
}

func TestResolveConflict_Errors(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	_, err := eng.ResolveConflict(ctx, "cfl_whatever", "keep_group")
	requireKind(t, err, KindUnsupportedStrategy)
	if !errors.Is(err, ErrUnsupportedStrategy) {
		t.Fatal("expected errors.Is(err, ErrUnsupportedStrategy)")
	}

	_, err = eng.ResolveConflict(ctx, "not-a-conflict", StrategyRevokeDirect)
	requireKind(t, err, KindNotFound)
}

func TestElevation_ConcurrentReviewsOneWins(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	req, err := eng.RequestElevation(ctx, ElevationInput{
		UserID: "u1", PermissionKey: "deals.approve", Justification: "month end", ValidUntil: t0.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	actions := []elevation.Action{elevation.ActionApprove, elevation.ActionReject}
	errs := make([]error, len(actions))
	var wg sync.WaitGroup
	for i, a := range actions {
		wg.Add(1)
		go func(i int, a elevation.Action) {
			defer wg.Done()
			_, errs[i] = eng.ReviewElevation(ctx, req.ID, a, "reviewer")
		}(i, a)
	}
	wg.Wait()

	var ok, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidState):
			invalid++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || invalid != 1 {
		t.Fatalf("expected one success and one invalid state, got %d/%d", ok, invalid)
	}
	if n := eng.locks.size(); n != 0 {
		t.Fatalf("expected user locks released, got %d", n)
	}
}

func TestElevation_StateMachine(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	newReq := func() *elevation.Request {
		r, err := eng.RequestElevation(ctx, ElevationInput{
			UserID: "u1", PermissionKey: "contacts.delete", Justification: "cleanup", ValidUntil: t0.Add(time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	r := newReq()
	_, err := eng.CancelElevation(ctx, r.ID, "someone-else")
	requireKind(t, err, KindInvalidState)

	cancelled, err := eng.CancelElevation(ctx, r.ID, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.Status != elevation.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	_, err = eng.ReviewElevation(ctx, r.ID, elevation.ActionApprove, "reviewer")
	requireKind(t, err, KindInvalidState)

	r = newReq()
	rejected, err := eng.ReviewElevation(ctx, r.ID, elevation.ActionReject, "reviewer")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.ReviewedBy != "reviewer" || rejected.ReviewedAt == nil {
		t.Fatal("expected reviewer stamped")
	}
	if mustResolve(t, eng, "u1").Has("contacts.delete") {
		t.Fatal("rejected request must not contribute")
	}
	_, err = eng.CancelElevation(ctx, r.ID, "u1")
	requireKind(t, err, KindInvalidState)

	_, err = eng.ReviewElevation(ctx, id.NewElevationID(), elevation.ActionApprove, "reviewer")
	requireKind(t, err, KindNotFound)

	_, err = eng.ReviewElevation(ctx, r.ID, "escalate", "reviewer")
	requireKind(t, err, KindValidation)
}

func TestElevation_ListViews(t *testing.T) {
	ctx := WithActor(context.Background(), "u1")
	eng, _, _ := newTestEngine(t)

	pending, _ := eng.RequestElevation(ctx, ElevationInput{
		UserID: "u1", PermissionKey: "deals.edit", Justification: "a", ValidUntil: t0.Add(time.Hour),
	})
	approved, _ := eng.RequestElevation(ctx, ElevationInput{
		UserID: "u1", PermissionKey: "deals.view", Justification: "b", ValidUntil: t0.Add(time.Hour),
	})
	if _, err := eng.ReviewElevation(ctx, approved.ID, elevation.ActionApprove, "reviewer"); err != nil {
		t.Fatal(err)
	}

	views, err := eng.ListElevationRequests(ctx, ElevationFilter{Status: elevation.StatusPending})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].ID.String() != pending.ID.String() {
		t.Fatalf("expected only the pending request, got %d", len(views))
	}
	if !views[0].CanCancel {
		t.Fatal("requester should be able to cancel a pending request")
	}

	_, err = eng.ListElevationRequests(ctx, ElevationFilter{Status: "bogus"})
	requireKind(t, err, KindValidation)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	_, err := eng.GrantDirect(ctx, GrantInput{UserID: "u1", PermissionKey: "deals.view", Justification: "  "})
	requireKind(t, err, KindValidation)

	_, err = eng.GrantDirect(ctx, GrantInput{UserID: "u1", PermissionKey: "nope.nope", Justification: "x"})
	requireKind(t, err, KindValidation)

	past := t0.Add(-time.Minute)
	_, err = eng.GrantDirect(ctx, GrantInput{UserID: "u1", PermissionKey: "deals.view", Justification: "x", ExpiresAt: &past})
	requireKind(t, err, KindValidation)

	_, err = eng.RequestElevation(ctx, ElevationInput{
		UserID: "u1", PermissionKey: "deals.view", Justification: "x",
		ValidFrom: t0.Add(time.Hour), ValidUntil: t0,
	})
	requireKind(t, err, KindValidation)

	_, err = eng.SaveGroup(ctx, &group.Group{Name: "   "})
	requireKind(t, err, KindValidation)

	_, err = eng.SaveGroup(ctx, &group.Group{Name: "X", PermissionKeys: []catalog.Key{"deals.view", "made.up"}})
	requireKind(t, err, KindValidation)

	_, err = eng.RevokeDirect(ctx, id.NewGrantID())
	requireKind(t, err, KindNotFound)

	err = eng.AddMember(ctx, "u1", id.NewGroupID())
	requireKind(t, err, KindNotFound)
}

func TestSaveGroup_UpdatePreservesCreation(t *testing.T) {
	ctx := WithActor(context.Background(), "admin")
	eng, _, clk := newTestEngine(t)

	g, err := eng.SaveGroup(ctx, &group.Group{
		Name: "  Sales  ", IsActive: true,
		PermissionKeys: []catalog.Key{"deals.view", "deals.view", "contacts.view"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if g.Name != "Sales" {
		t.Fatalf("expected trimmed name, got %q", g.Name)
	}
	if !reflect.DeepEqual(g.PermissionKeys, []catalog.Key{"contacts.view", "deals.view"}) {
		t.Fatalf("expected normalized keys, got %v", g.PermissionKeys)
	}
	if g.CreatedBy != "admin" {
		t.Fatalf("expected created by admin, got %q", g.CreatedBy)
	}

	clk.Advance(time.Hour)
	g.Description = "Field sales"
	updated, err := eng.SaveGroup(WithActor(context.Background(), "other"), g)
	if err != nil {
		t.Fatal(err)
	}
	if !updated.CreatedAt.Equal(t0) || updated.CreatedBy != "admin" {
		t.Fatal("update must not change creation stamps")
	}
	if updated.UpdatedAt == nil || !updated.UpdatedAt.Equal(t0.Add(time.Hour)) || updated.UpdatedBy != "other" {
		t.Fatal("expected update stamps")
	}

	g2, err := eng.SetGroupPermissions(ctx, g.ID, []catalog.Key{"reports.view"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g2.PermissionKeys, []catalog.Key{"reports.view"}) {
		t.Fatalf("expected replaced keys, got %v", g2.PermissionKeys)
	}
}

func TestDeleteGroup_RemovesAccess(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g := mustGroup(t, eng, "Sales", true, "deals.view")
	_ = eng.AddMember(ctx, "u1", g.ID)
	if err := eng.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	if mustResolve(t, eng, "u1").Has("deals.view") {
		t.Fatal("expected access removed with group")
	}
	requireKind(t, eng.DeleteGroup(ctx, g.ID), KindNotFound)
}

func TestSimulate_GrantCritical(t *testing.T) {
	ctx := context.Background()
	eng, s, _ := newTestEngine(t)

	g := mustGroup(t, eng, "Sales", true, "deals.view")
	_ = eng.AddMember(ctx, "u1", g.ID)
	eventsBefore, _ := s.CountAuditEvents(ctx, &audit.QueryFilter{})

	sim, err := eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateGrantPermission, PermissionKey: "billing.manage"})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sim.Diff.Added, []catalog.Key{"billing.manage"}) {
		t.Fatalf("expected billing.manage added, got %v", sim.Diff.Added)
	}
	if !reflect.DeepEqual(sim.Diff.CriticalChanges, []catalog.Key{"billing.manage"}) {
		t.Fatalf("expected critical change, got %v", sim.Diff.CriticalChanges)
	}
	if len(sim.Diff.Removed) != 0 {
		t.Fatalf("expected nothing removed, got %v", sim.Diff.Removed)
	}
	if sim.Before.TotalEffectivePermissions != 1 || sim.After.TotalEffectivePermissions != 2 {
		t.Fatalf("unexpected totals %d -> %d", sim.Before.TotalEffectivePermissions, sim.After.TotalEffectivePermissions)
	}

	if mustResolve(t, eng, "u1").Has("billing.manage") {
		t.Fatal("simulation must not persist")
	}
	eventsAfter, _ := s.CountAuditEvents(ctx, &audit.QueryFilter{})
	if eventsAfter != eventsBefore {
		t.Fatal("simulation must not write audit events")
	}
}

func TestSimulate_RevokeLeavesGroupAccess(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g := mustGroup(t, eng, "Sales", true, "deals.view")
	_ = eng.AddMember(ctx, "u1", g.ID)
	mustGrant(t, eng, "u1", "deals.view")
	mustGrant(t, eng, "u1", "reports.view")

	sim, err := eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateRevokePermission, PermissionKey: "deals.view"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sim.Diff.Added) != 0 || len(sim.Diff.Removed) != 0 {
		t.Fatalf("expected empty diff, got %+v", sim.Diff)
	}
	if sim.After.ConflictsCount != 0 || sim.Before.ConflictsCount != 1 {
		t.Fatalf("expected conflict to disappear, got %d -> %d", sim.Before.ConflictsCount, sim.After.ConflictsCount)
	}

	all, err := eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateRevokePermission})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(all.Diff.Removed, []catalog.Key{"reports.view"}) {
		t.Fatalf("expected reports.view removed, got %v", all.Diff.Removed)
	}
}

func TestSimulate_GroupMoves(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	sales := mustGroup(t, eng, "Sales", true, "deals.view")
	finance := mustGroup(t, eng, "Finance", true, "invoices.view", "billing.manage")
	_ = eng.AddMember(ctx, "u1", sales.ID)

	join, err := eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateJoinGroup, GroupID: finance.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(join.Diff.Added, []catalog.Key{"billing.manage", "invoices.view"}) {
		t.Fatalf("unexpected added %v", join.Diff.Added)
	}
	if join.After.GroupsCount != 2 {
		t.Fatalf("expected 2 groups after join, got %d", join.After.GroupsCount)
	}

	leave, err := eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateLeaveGroup, GroupID: sales.ID})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(leave.Diff.Removed, []catalog.Key{"deals.view"}) {
		t.Fatalf("unexpected removed %v", leave.Diff.Removed)
	}

	_, err = eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateJoinGroup, GroupID: id.NewGroupID()})
	requireKind(t, err, KindNotFound)

	_, err = eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: SimulateGrantPermission})
	requireKind(t, err, KindValidation)

	_, err = eng.Simulate(ctx, SimulationInput{UserID: "u1", Action: "teleport"})
	requireKind(t, err, KindValidation)
}

func TestAuditTrail(t *testing.T) {
	ctx := WithActor(context.Background(), "admin")
	eng, _, _ := newTestEngine(t)

	g := mustGroup(t, eng, "Sales", true, "deals.view")
	if err := eng.AddMember(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	// Re-adding is a no-op and records nothing.
	if err := eng.AddMember(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}

	events, err := eng.ListAuditEvents(ctx, &audit.QueryFilter{Action: audit.ActionMemberAdded})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 membership event, got %d", len(events))
	}
	if events[0].Actor != "admin" {
		t.Fatalf("expected actor admin, got %q", events[0].Actor)
	}

	created, _ := eng.CountAuditEvents(ctx, &audit.QueryFilter{Action: audit.ActionGroupCreated})
	if created != 1 {
		t.Fatalf("expected 1 group.created event, got %d", created)
	}
	if events[0].Details["user_id"] != "u1" {
		t.Fatalf("unexpected details %v", events[0].Details)
	}
}

func TestAudit_DisabledSkipsStore(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.DisableAudit = true
	eng, s, _ := newTestEngine(t, WithConfig(cfg))

	mustGroup(t, eng, "Sales", true, "deals.view")
	n, _ := s.CountAuditEvents(ctx, &audit.QueryFilter{})
	if n != 0 {
		t.Fatalf("expected no stored events, got %d", n)
	}
}

type directoryFunc func(ctx context.Context, userID string) (*User, error)

func (f directoryFunc) LookupUser(ctx context.Context, userID string) (*User, error) {
	return f(ctx, userID)
}

func TestListMemberDetails(t *testing.T) {
	ctx := context.Background()
	dir := directoryFunc(func(_ context.Context, userID string) (*User, error) {
		if userID == "u1" {
			return &User{ID: "u1", FullName: "Ana Lima", IsActive: true}, nil
		}
		return nil, nil
	})
	eng, _, _ := newTestEngine(t, WithDirectory(dir))

	g := mustGroup(t, eng, "Sales", true)
	_ = eng.AddMember(ctx, "u1", g.ID)
	_ = eng.AddMember(ctx, "u2", g.ID)

	details, err := eng.ListMemberDetails(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 members, got %d", len(details))
	}
	for _, d := range details {
		switch d.UserID {
		case "u1":
			if d.User == nil || d.User.FullName != "Ana Lima" {
				t.Fatal("expected u1 enriched")
			}
		case "u2":
			if d.User != nil {
				t.Fatal("expected unknown user left nil")
			}
		}
	}
}

func TestSweepLoop(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Millisecond
	eng, _, _ := newTestEngine(t, WithConfig(cfg))

	if err := eng.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(5 * time.Millisecond)
	if err := eng.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestResolve_CriticalOverlapRoundTrip(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	g1 := mustGroup(t, eng, "G1", true, "deals.view", "billing.manage")
	if err := eng.AddMember(ctx, "U1", g1.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.GrantDirect(ctx, GrantInput{UserID: "U1", PermissionKey: "billing.manage", Justification: "temporary override"}); err != nil {
		t.Fatal(err)
	}

	res := mustResolve(t, eng, "U1")
	want := Summary{
		GroupsCount:               1,
		DirectPermissionsCount:    1,
		InheritedPermissionsCount: 2,
		TotalEffectivePermissions: 2,
		ConflictsCount:            1,
	}
	if res.Summary != want {
		t.Fatalf("summary: got %+v, want %+v", res.Summary, want)
	}
	if len(res.Permissions) != 3 {
		t.Fatalf("expected 3 effective entries, got %d", len(res.Permissions))
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(res.Conflicts))
	}
	c := res.Conflicts[0]
	if c.PermissionKey != "billing.manage" || !c.IsCritical {
		t.Fatalf("expected critical conflict on billing.manage, got %+v", c)
	}
	if !reflect.DeepEqual(c.Origins, []OriginKind{OriginGroup, OriginDirect}) {
		t.Fatalf("unexpected origins %v", c.Origins)
	}

	if _, err := eng.ResolveConflict(ctx, c.ID, StrategyRevokeDirect); err != nil {
		t.Fatal(err)
	}

	res = mustResolve(t, eng, "U1")
	if len(res.Conflicts) != 0 || res.Summary.ConflictsCount != 0 {
		t.Fatalf("expected no conflicts, got %d", len(res.Conflicts))
	}
	if !res.Has("billing.manage") {
		t.Fatal("billing.manage must still be inherited from G1")
	}
	origins := res.Origins("billing.manage")
	if len(origins) != 1 || origins[0].Origin.Kind() != OriginGroup {
		t.Fatalf("expected billing.manage via group only, got %+v", origins)
	}
}

func TestElevation_ClosedRequestsRejectReview(t *testing.T) {
	tests := []struct {
		name  string
		close func(t *testing.T, eng *Engine, clk *testClock, reqID id.ElevationID)
	}{
		{
			name: "approved",
			close: func(t *testing.T, eng *Engine, _ *testClock, reqID id.ElevationID) {
				if _, err := eng.ReviewElevation(context.Background(), reqID, elevation.ActionApprove, "reviewer"); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "rejected",
			close: func(t *testing.T, eng *Engine, _ *testClock, reqID id.ElevationID) {
				if _, err := eng.ReviewElevation(context.Background(), reqID, elevation.ActionReject, "reviewer"); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "cancelled",
			close: func(t *testing.T, eng *Engine, _ *testClock, reqID id.ElevationID) {
				if _, err := eng.CancelElevation(context.Background(), reqID, "u1"); err != nil {
					t.Fatal(err)
				}
			},
		},
		{
			name: "expired",
			close: func(t *testing.T, eng *Engine, clk *testClock, reqID id.ElevationID) {
				if _, err := eng.ReviewElevation(context.Background(), reqID, elevation.ActionApprove, "reviewer"); err != nil {
					t.Fatal(err)
				}
				clk.Advance(2 * time.Hour)
			},
		},
		{
			name: "expired and swept",
			close: func(t *testing.T, eng *Engine, clk *testClock, reqID id.ElevationID) {
				if _, err := eng.ReviewElevation(context.Background(), reqID, elevation.ActionApprove, "reviewer"); err != nil {
					t.Fatal(err)
				}
				clk.Advance(2 * time.Hour)
				n, err := eng.SweepExpiredElevations(context.Background())
				if err != nil {
					t.Fatal(err)
				}
				if n != 1 {
					t.Fatalf("expected 1 swept request, got %d", n)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			eng, _, clk := newTestEngine(t)
			req, err := eng.RequestElevation(ctx, ElevationInput{
				UserID: "u1", PermissionKey: "contacts.delete", Justification: "cleanup", ValidUntil: t0.Add(time.Hour),
			})
			if err != nil {
				t.Fatal(err)
			}
			tt.close(t, eng, clk, req.ID)

			for _, a := range []elevation.Action{elevation.ActionApprove, elevation.ActionReject} {
				_, err := eng.ReviewElevation(ctx, req.ID, a, "reviewer")
				requireKind(t, err, KindInvalidState)
			}
			_, err = eng.CancelElevation(ctx, req.ID, "u1")
			requireKind(t, err, KindInvalidState)
		})
	}
}

func TestResolve_SummaryConsistentAcrossUsers(t *testing.T) {
	ctx := context.Background()
	eng, _, _ := newTestEngine(t)

	sales := mustGroup(t, eng, "Sales", true, "deals.view", "deals.edit")
	finance := mustGroup(t, eng, "Finance", true, "billing.manage", "deals.view")
	dormant := mustGroup(t, eng, "Dormant", false, "contacts.delete")

	memberships := map[string][]id.GroupID{
		"u1": {sales.ID},
		"u2": {sales.ID, finance.ID},
		"u3": {dormant.ID},
		"u4": {finance.ID, dormant.ID},
	}
	for u, gids := range memberships {
		for _, gid := range gids {
			if err := eng.AddMember(ctx, u, gid); err != nil {
				t.Fatal(err)
			}
		}
	}
	mustGrant(t, eng, "u1", "deals.view")
	mustGrant(t, eng, "u2", "billing.manage")
	mustGrant(t, eng, "u3", "contacts.delete")
	mustGrant(t, eng, "u5", "deals.approve")
	mustGrant(t, eng, "u5", "deals.approve")

	req, err := eng.RequestElevation(ctx, ElevationInput{
		UserID: "u4", PermissionKey: "deals.approve", Justification: "quarter close", ValidUntil: t0.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.ReviewElevation(ctx, req.ID, elevation.ActionApprove, "reviewer"); err != nil {
		t.Fatal(err)
	}

	catalogSize := eng.Catalog().Len()
	var sawConflict bool
	for _, u := range []string{"u1", "u2", "u3", "u4", "u5", "nobody"} {
		res := mustResolve(t, eng, u)
		s := res.Summary
		if s.ConflictsCount != len(res.Conflicts) {
			t.Fatalf("%s: conflicts count %d, list %d", u, s.ConflictsCount, len(res.Conflicts))
		}
		if s.TotalEffectivePermissions != len(res.Keys()) {
			t.Fatalf("%s: total %d, distinct keys %d", u, s.TotalEffectivePermissions, len(res.Keys()))
		}
		if s.TotalEffectivePermissions > catalogSize {
			t.Fatalf("%s: total %d exceeds catalog size %d", u, s.TotalEffectivePermissions, catalogSize)
		}
		if s.DirectPermissionsCount > s.TotalEffectivePermissions || s.InheritedPermissionsCount > s.TotalEffectivePermissions {
			t.Fatalf("%s: partial counts exceed total: %+v", u, s)
		}
		if len(res.Conflicts) > 0 {
			sawConflict = true
		}
	}
	if !sawConflict {
		t.Fatal("expected at least one user with conflicts")
	}
}

// racingCache runs onSet before storing, standing in for a group-wide
// invalidation that lands between the generation check and the write.
type racingCache struct {
	mu      sync.Mutex
	entries map[string]*Resolution
	onSet   func()
}

func (c *racingCache) Get(_ context.Context, userID string, _ time.Time) (*Resolution, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[userID]
	return r, ok
}

func (c *racingCache) Set(_ context.Context, res *Resolution) {
	if c.onSet != nil {
		fn := c.onSet
		c.onSet = nil
		fn()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[res.UserID] = res
}

func (c *racingCache) InvalidateUser(_ context.Context, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
}

func (c *racingCache) InvalidateAll(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Resolution)
}

func TestResolve_CacheDropsEntryInvalidatedDuringWrite(t *testing.T) {
	ctx := context.Background()
	rc := &racingCache{entries: make(map[string]*Resolution)}
	eng, _, _ := newTestEngine(t, WithCache(rc))

	g := mustGroup(t, eng, "Sales", true, "deals.view")
	if err := eng.AddMember(ctx, "u1", g.ID); err != nil {
		t.Fatal(err)
	}
	rc.onSet = func() { eng.invalidateAll(ctx) }

	res := mustResolve(t, eng, "u1")
	if !res.Has("deals.view") {
		t.Fatal("expected deals.view")
	}
	if _, ok := rc.Get(ctx, "u1", t0); ok {
		t.Fatal("resolution computed before a group-wide invalidation must not stay cached")
	}

	mustResolve(t, eng, "u1")
	if _, ok := rc.Get(ctx, "u1", t0); !ok {
		t.Fatal("expected a fresh resolution to be cached")
	}
}
