// Package store defines the aggregate persistence interface. Each subsystem
// (group, grant, elevation, audit) defines its own store interface and the
// composite Store embeds them all. Backends: Memory, SQLite, Postgres, Mongo.
package store

import (
	"context"
	"errors"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
)

var (
	// ErrNotFound is wrapped by backends when an entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrStateConflict is wrapped by backends when a compare-and-set
	// transition finds an unexpected current state.
	ErrStateConflict = errors.New("store: state conflict")
)

// Store is the aggregate persistence interface.
type Store interface {
	group.Store
	grant.Store
	elevation.Store
	audit.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
