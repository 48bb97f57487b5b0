// Package id defines TypeID-based identifiers for Warrant entities.
//
// Groups, memberships, direct grants, elevation requests and audit events
// share one ID type whose prefix names the entity. IDs are UUIDv7-backed,
// so they sort by creation time, and render as "prefix_suffix".
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in an ID.
type Prefix string

// Entity prefixes.
const (
	PrefixGroup      Prefix = "grp"
	PrefixMembership Prefix = "mbr"
	PrefixGrant      Prefix = "dgr"
	PrefixElevation  Prefix = "elev"
	PrefixAudit      Prefix = "aud"
)

// ID is a prefix-qualified, sortable, URL-safe identifier.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates an ID with the given prefix. An invalid prefix is a
// programming error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses any "prefix_suffix" string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another entity type.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// GroupID identifies a permission group (prefix "grp").
type GroupID = ID

// MembershipID identifies a user↔group edge (prefix "mbr").
type MembershipID = ID

// GrantID identifies a direct grant (prefix "dgr").
type GrantID = ID

// ElevationID identifies an elevation request (prefix "elev").
type ElevationID = ID

// AuditID identifies an audit event (prefix "aud").
type AuditID = ID

func NewGroupID() ID      { return New(PrefixGroup) }
func NewMembershipID() ID { return New(PrefixMembership) }
func NewGrantID() ID      { return New(PrefixGrant) }
func NewElevationID() ID  { return New(PrefixElevation) }
func NewAuditID() ID      { return New(PrefixAudit) }

func ParseGroupID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixGroup) }
func ParseMembershipID(s string) (ID, error) { return ParseWithPrefix(s, PrefixMembership) }
func ParseGrantID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixGrant) }
func ParseElevationID(s string) (ID, error)  { return ParseWithPrefix(s, PrefixElevation) }
func ParseAuditID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixAudit) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil is stored as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
