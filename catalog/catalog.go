// Package catalog holds the static registry of permission keys.
//
// The catalog is loaded once at startup and is read-only afterwards.
// Adding or removing a key is a deployment concern, so a Catalog exposes
// no mutators.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Key is an opaque permission identifier such as "billing.manage".
type Key string

// Entry describes one permission key.
type Entry struct {
	Key         Key    `json:"key" yaml:"key"`
	Module      string `json:"module" yaml:"module"`
	Label       string `json:"label" yaml:"label"`
	Description string `json:"description,omitempty" yaml:"description"`
	IsCritical  bool   `json:"is_critical" yaml:"critical"`
}

// ErrInvalidEntry is returned when a catalog entry is malformed or duplicated.
var ErrInvalidEntry = errors.New("catalog: invalid entry")

// Catalog is an immutable, ordered set of entries indexed by key.
type Catalog struct {
	entries []Entry
	index   map[Key]int
}

// New builds a catalog. Keys must be non-blank and unique.
func New(entries ...Entry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[Key]int, len(entries)),
	}
	for _, e := range entries {
		e.Key = Key(strings.TrimSpace(string(e.Key)))
		if e.Key == "" {
			return nil, fmt.Errorf("%w: blank key", ErrInvalidEntry)
		}
		if _, dup := c.index[e.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidEntry, e.Key)
		}
		if e.Module == "" {
			e.Module = moduleOf(e.Key)
		}
		if e.Label == "" {
			e.Label = string(e.Key)
		}
		c.index[e.Key] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// MustNew is like New but panics on error. Use for hardcoded catalogs.
func MustNew(entries ...Entry) *Catalog {
	c, err := New(entries...)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns the entry for key.
func (c *Catalog) Get(key Key) (Entry, bool) {
	i, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Has reports whether key is defined.
func (c *Catalog) Has(key Key) bool {
	_, ok := c.index[key]
	return ok
}

// IsCritical reports whether key is defined and flagged critical.
func (c *Catalog) IsCritical(key Key) bool {
	e, ok := c.Get(key)
	return ok && e.IsCritical
}

// Len returns the number of keys.
func (c *Catalog) Len() int { return len(c.entries) }

// List returns a copy of all entries in definition order.
func (c *Catalog) List() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// ByModule returns the entries of a single module in definition order.
func (c *Catalog) ByModule(module string) []Entry {
	var out []Entry
	for _, e := range c.entries {
		if e.Module == module {
			out = append(out, e)
		}
	}
	return out
}

// Modules returns the distinct module names, sorted.
func (c *Catalog) Modules() []string {
	seen := make(map[string]struct{})
	for _, e := range c.entries {
		seen[e.Module] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Unknown returns the keys not present in the catalog, in input order.
func (c *Catalog) Unknown(keys []Key) []Key {
	var out []Key
	for _, k := range keys {
		if !c.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// Normalize trims, de-duplicates and sorts keys, giving them set semantics.
func Normalize(keys []Key) []Key {
	set := make(map[Key]struct{}, len(keys))
	out := make([]Key, 0, len(keys))
	for _, k := range keys {
		k = Key(strings.TrimSpace(string(k)))
		if k == "" {
			continue
		}
		if _, ok := set[k]; ok {
			continue
		}
		set[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func moduleOf(key Key) string {
	if i := strings.IndexByte(string(key), '.'); i > 0 {
		return string(key[:i])
	}
	return string(key)
}
