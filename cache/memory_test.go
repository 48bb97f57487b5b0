package cache

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store/memory"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func resolutionFor(t *testing.T, userID string, expiresAt *time.Time) *warrant.Resolution {
	t.Helper()
	ctx := context.Background()
	s := memory.New()
	if err := s.CreateGrant(ctx, &grant.DirectGrant{
		ID:            id.NewGrantID(),
		UserID:        userID,
		PermissionKey: "deals.view",
		Justification: "test",
		CreatedAt:     t0.Add(-time.Hour),
		ExpiresAt:     expiresAt,
	}); err != nil {
		t.Fatal(err)
	}
	eng, err := warrant.NewEngine(
		warrant.WithStore(s),
		warrant.WithCatalog(catalog.Default()),
		warrant.WithClock(func() time.Time { return t0 }),
	)
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.ResolveAccess(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestMemoryCacheHitMiss(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))
	res := resolutionFor(t, "u1", nil)

	if _, ok := c.Get(ctx, "u1", t0); ok {
		t.Fatal("expected cache miss")
	}

	c.Set(ctx, res)
	got, ok := c.Get(ctx, "u1", t0.Add(time.Second))
	if !ok {
		t.Fatal("expected cache hit")
	}
	if !got.Has("deals.view") {
		t.Fatal("expected deals.view in cached resolution")
	}
	if !got.AsOf.Equal(t0.Add(time.Second)) {
		t.Fatalf("expected AsOf restamped, got %s", got.AsOf)
	}

	// Instants before the cached one are never served.
	if _, ok := c.Get(ctx, "u1", t0.Add(-time.Second)); ok {
		t.Fatal("expected miss for earlier instant")
	}
}

func TestMemoryCacheStableUntil(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Hour))
	exp := t0.Add(time.Minute)
	res := resolutionFor(t, "u1", &exp)
	if !res.StableUntil().Equal(exp) {
		t.Fatalf("expected stable until %s, got %s", exp, res.StableUntil())
	}

	c.Set(ctx, res)
	if _, ok := c.Get(ctx, "u1", exp.Add(-time.Nanosecond)); !ok {
		t.Fatal("expected hit before expiry boundary")
	}
	if _, ok := c.Get(ctx, "u1", exp); ok {
		t.Fatal("expected miss at expiry boundary")
	}
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	wall := t0
	c := NewMemory(WithTTL(time.Second), WithClock(func() time.Time { return wall }))

	c.Set(ctx, resolutionFor(t, "u1", nil))
	wall = wall.Add(2 * time.Second)

	if _, ok := c.Get(ctx, "u1", t0); ok {
		t.Fatal("expected cache miss after TTL")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry dropped, got %d", c.Len())
	}
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute))

	c.Set(ctx, resolutionFor(t, "u1", nil))
	c.Set(ctx, resolutionFor(t, "u2", nil))

	c.InvalidateUser(ctx, "u1")
	if _, ok := c.Get(ctx, "u1", t0); ok {
		t.Fatal("expected miss for invalidated user")
	}
	if _, ok := c.Get(ctx, "u2", t0); !ok {
		t.Fatal("expected hit for other user")
	}

	c.InvalidateAll(ctx)
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Len())
	}
}

func TestMemoryCacheMaxSize(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Minute), WithMaxSize(1))

	c.Set(ctx, resolutionFor(t, "u1", nil))
	c.Set(ctx, resolutionFor(t, "u2", nil))
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", c.Len())
	}
}

func TestEngineInvalidatesOnMutation(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(WithTTL(time.Hour))
	eng, err := warrant.NewEngine(
		warrant.WithStore(memory.New()),
		warrant.WithCache(c),
		warrant.WithClock(func() time.Time { return t0 }),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := eng.ResolveAccess(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected resolution cached, got %d", c.Len())
	}

	g, err := eng.GrantDirect(ctx, warrant.GrantInput{UserID: "u1", PermissionKey: "deals.view", Justification: "ticket"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := eng.ResolveAccess(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Has("deals.view") {
		t.Fatal("expected grant visible after invalidation")
	}

	if _, err := eng.RevokeDirect(ctx, g.ID); err != nil {
		t.Fatal(err)
	}
	res, err = eng.ResolveAccess(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Has("deals.view") {
		t.Fatal("expected revoke visible after invalidation")
	}
}
