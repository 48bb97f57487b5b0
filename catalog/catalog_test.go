package catalog

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New(Entry{Key: "deals.view"}, Entry{Key: " deals.view "})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	_, err = New(Entry{Key: "  "})
	if !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry for blank key, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	c := MustNew(
		Entry{Key: "deals.view"},
		Entry{Key: "billing.manage", IsCritical: true},
	)
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}
	e, ok := c.Get("deals.view")
	if !ok {
		t.Fatal("deals.view not found")
	}
	if e.Module != "deals" || e.Label != "deals.view" {
		t.Fatalf("defaults not applied: %+v", e)
	}
	if !c.IsCritical("billing.manage") || c.IsCritical("deals.view") || c.IsCritical("missing") {
		t.Fatal("criticality lookup wrong")
	}
	if got := c.Unknown([]Key{"deals.view", "nope"}); !reflect.DeepEqual(got, []Key{"nope"}) {
		t.Fatalf("unexpected unknown keys %v", got)
	}
	if got := c.Modules(); !reflect.DeepEqual(got, []string{"billing", "deals"}) {
		t.Fatalf("unexpected modules %v", got)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize([]Key{"b", "a", " b", "", "a"})
	if !reflect.DeepEqual(got, []Key{"a", "b"}) {
		t.Fatalf("unexpected normalized keys %v", got)
	}
}

func TestLoad(t *testing.T) {
	src := `
permissions:
  - key: deals.view
    module: deals
    label: View deals
  - key: billing.manage
    module: billing
    label: Manage billing
    critical: true
`
	c, err := Load(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 || !c.IsCritical("billing.manage") {
		t.Fatalf("unexpected catalog: %+v", c.List())
	}

	if _, err := Load(strings.NewReader("permissions:\n  - key: a\n    bogus: 1\n")); err == nil {
		t.Fatal("expected unknown field to be rejected")
	}
}

func TestDefaultHasCriticalBilling(t *testing.T) {
	c := Default()
	if !c.IsCritical("billing.manage") {
		t.Fatal("billing.manage should be critical")
	}
	if !c.Has("deals.view") {
		t.Fatal("deals.view missing")
	}
}
