package plugin

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
)

// testPlugin implements Plugin + GroupSaved + GrantRevoked + AfterResolve.
type testPlugin struct {
	groupSavedCreated bool
	grantRevokedCalls int
	afterResolveCalls int
}

func (t *testPlugin) Name() string { return "test-plugin" }

func (t *testPlugin) OnGroupSaved(_ context.Context, _ *group.Group, created bool) error {
	t.groupSavedCreated = created
	return nil
}

func (t *testPlugin) OnGrantRevoked(_ context.Context, _ *grant.DirectGrant) error {
	t.grantRevokedCalls++
	return nil
}

func (t *testPlugin) OnAfterResolve(_ context.Context, _ any) error {
	t.afterResolveCalls++
	return nil
}

// failingPlugin returns an error from its only hook.
type failingPlugin struct{}

func (f *failingPlugin) Name() string { return "failing" }

func (f *failingPlugin) OnGrantRevoked(_ context.Context, _ *grant.DirectGrant) error {
	return errors.New("boom")
}

// minimalPlugin only implements Plugin (no hooks).
type minimalPlugin struct{}

func (m *minimalPlugin) Name() string { return "minimal" }

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(slog.Default())

	tp := &testPlugin{}
	reg.Register(&failingPlugin{})
	reg.Register(tp)
	reg.Register(&minimalPlugin{})

	if len(reg.Plugins()) != 3 {
		t.Fatalf("expected 3 plugins, got %d", len(reg.Plugins()))
	}

	reg.EmitGroupSaved(ctx, &group.Group{ID: id.NewGroupID(), Name: "Sales"}, true)
	if !tp.groupSavedCreated {
		t.Fatal("OnGroupSaved was not called with created=true")
	}

	// A failing hook must not stop later plugins.
	reg.EmitGrantRevoked(ctx, &grant.DirectGrant{ID: id.NewGrantID()})
	if tp.grantRevokedCalls != 1 {
		t.Fatalf("expected 1 OnGrantRevoked call, got %d", tp.grantRevokedCalls)
	}

	reg.EmitAfterResolve(ctx, nil)
	if tp.afterResolveCalls != 1 {
		t.Fatalf("expected 1 OnAfterResolve call, got %d", tp.afterResolveCalls)
	}

	// Should not panic on hooks with no listeners.
	reg.EmitGroupDeleted(ctx, id.NewGroupID())
	reg.EmitMemberRemoved(ctx, "u1", id.NewGroupID())
	reg.EmitShutdown(ctx)
}

func TestNilRegistryIsNoop(t *testing.T) {
	var reg *Registry
	ctx := context.Background()

	reg.EmitGroupSaved(ctx, &group.Group{}, false)
	reg.EmitAuditRecorded(ctx, nil)
	reg.EmitShutdown(ctx)
	if reg.Plugins() != nil {
		t.Fatal("expected nil plugins from nil registry")
	}
}
