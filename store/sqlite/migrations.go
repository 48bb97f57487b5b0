package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Warrant store (SQLite).
var Migrations = migrate.NewGroup("warrant")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_groups",
			Version: "20260301000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_groups (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    description     TEXT NOT NULL DEFAULT '',
    is_active       INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    created_by      TEXT NOT NULL DEFAULT '',
    updated_at      TEXT,
    updated_by      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_warrant_groups_name ON warrant_groups (name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_groups`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_group_permissions",
			Version: "20260301000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_group_permissions (
    group_id        TEXT NOT NULL REFERENCES warrant_groups(id) ON DELETE CASCADE,
    permission_key  TEXT NOT NULL,

    PRIMARY KEY (group_id, permission_key)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_group_permissions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_memberships",
			Version: "20260301000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_memberships (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    group_id        TEXT NOT NULL REFERENCES warrant_groups(id) ON DELETE CASCADE,
    added_at        TEXT NOT NULL DEFAULT (datetime('now')),
    added_by        TEXT NOT NULL DEFAULT '',

    UNIQUE(user_id, group_id)
);

CREATE INDEX IF NOT EXISTS idx_warrant_memberships_group ON warrant_memberships (group_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_memberships`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_direct_grants",
			Version: "20260301000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_direct_grants (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    permission_key  TEXT NOT NULL,
    justification   TEXT NOT NULL,
    expires_at      TEXT,
    granted_by      TEXT NOT NULL DEFAULT '',
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),
    revoked_at      TEXT,
    revoked_by      TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_warrant_direct_grants_user ON warrant_direct_grants (user_id, permission_key);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_direct_grants`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_elevations",
			Version: "20260301000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_elevations (
    id              TEXT PRIMARY KEY,
    user_id         TEXT NOT NULL,
    permission_key  TEXT NOT NULL,
    justification   TEXT NOT NULL,
    valid_from      TEXT NOT NULL,
    valid_until     TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT 'pending',
    reviewed_by     TEXT NOT NULL DEFAULT '',
    reviewed_at     TEXT,
    created_at      TEXT NOT NULL DEFAULT (datetime('now')),

    CHECK (valid_from < valid_until)
);

CREATE INDEX IF NOT EXISTS idx_warrant_elevations_user ON warrant_elevations (user_id, status);
CREATE INDEX IF NOT EXISTS idx_warrant_elevations_status ON warrant_elevations (status, valid_until);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_elevations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_audit_events",
			Version: "20260301000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS warrant_audit_events (
    id              TEXT PRIMARY KEY,
    actor           TEXT NOT NULL,
    action          TEXT NOT NULL,
    entity_type     TEXT NOT NULL,
    entity_id       TEXT NOT NULL DEFAULT '',
    timestamp       TEXT NOT NULL DEFAULT (datetime('now')),
    details         TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_warrant_audit_events_entity ON warrant_audit_events (entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_warrant_audit_events_time ON warrant_audit_events (timestamp);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS warrant_audit_events`)
				return err
			},
		},
	)
}
