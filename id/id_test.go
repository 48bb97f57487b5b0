package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/warrant/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
		prefix  string
	}{
		{"Group", id.NewGroupID, id.ParseGroupID, "grp_"},
		{"Membership", id.NewMembershipID, id.ParseMembershipID, "mbr_"},
		{"Grant", id.NewGrantID, id.ParseGrantID, "dgr_"},
		{"Elevation", id.NewElevationID, id.ParseElevationID, "elev_"},
		{"Audit", id.NewAuditID, id.ParseAuditID, "aud_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			if !strings.HasPrefix(original.String(), tt.prefix) {
				t.Fatalf("expected prefix %q, got %q", tt.prefix, original.String())
			}
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed != original {
				t.Errorf("round-trip mismatch: %q != %q", parsed, original)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	grp := id.NewGroupID().String()
	if _, err := id.ParseGrantID(grp); err == nil {
		t.Fatal("expected grant parser to reject a group id")
	}
	if _, err := id.ParseElevationID(id.NewGrantID().String()); err == nil {
		t.Fatal("expected elevation parser to reject a grant id")
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Fatal("zero value should be nil")
	}
	if i.String() != "" || i.Prefix() != "" {
		t.Fatal("nil id should render empty")
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Fatalf("expected NULL value, got %v, %v", v, err)
	}
}

func TestTextAndScan(t *testing.T) {
	original := id.NewElevationID()

	text, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var decoded id.ID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if decoded != original {
		t.Fatalf("text round-trip mismatch: %s != %s", decoded, original)
	}

	var scanned id.ID
	if err := scanned.Scan(original.String()); err != nil {
		t.Fatal(err)
	}
	if scanned != original {
		t.Fatal("scan mismatch")
	}
	if err := scanned.Scan(nil); err != nil || !scanned.IsNil() {
		t.Fatal("scanning NULL should yield Nil")
	}
	if err := scanned.Scan(42); err == nil {
		t.Fatal("expected error scanning int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 500)
	for range 500 {
		s := id.NewGrantID().String()
		if _, dup := seen[s]; dup {
			t.Fatalf("duplicate id %s", s)
		}
		seen[s] = struct{}{}
	}
}
