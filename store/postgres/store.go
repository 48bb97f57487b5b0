// Package postgres provides a PostgreSQL implementation of the Warrant composite
// store using grove ORM with Go-based migrations.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a PostgreSQL implementation of the composite Warrant store.
type Store struct {
	db  *grove.DB
	pgdb *pgdriver.PgDB
}

// New creates a new PostgreSQL store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		pgdb: pgdriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pgdb)
	if err != nil {
		return fmt.Errorf("warrant/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("warrant/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isForeignKeyViolation reports SQLSTATE 23503, raised when a membership
// insert races a group delete.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// ──────────────────────────────────────────────────
// Group operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGroup(ctx context.Context, g *group.Group) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if _, err := tx.NewInsert(groupToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create group: %w", err)
	}
	if len(g.PermissionKeys) > 0 {
		models := permissionModels(g.ID.String(), g.PermissionKeys)
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("warrant: create group permissions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID id.GroupID) (*group.Group, error) {
	m := new(groupModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", groupID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get group: %w", err)
	}
	keys, err := s.groupKeys(ctx, []string{m.ID})
	if err != nil {
		return nil, err
	}
	g, err := groupFromModel(m, keys[m.ID])
	if err != nil {
		return nil, fmt.Errorf("warrant: get group: %w", err)
	}
	return g, nil
}

// UpdateGroup writes the group row and swaps its permission set in one
// transaction.
func (s *Store) UpdateGroup(ctx context.Context, g *group.Group) error {
	return s.replacePermissions(ctx, g.ID, g.PermissionKeys, groupToModel(g))
}

func (s *Store) DeleteGroup(ctx context.Context, groupID id.GroupID) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	res, err := tx.NewDelete((*groupModel)(nil)).Where("id = ?", groupID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("warrant: delete group rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	if _, err := tx.NewDelete((*membershipModel)(nil)).Where("group_id = ?", groupID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: delete group memberships: %w", err)
	}
	if _, err := tx.NewDelete((*groupPermissionModel)(nil)).Where("group_id = ?", groupID.String()).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: delete group permissions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context, filter *group.ListFilter) ([]*group.Group, error) {
	var models []groupModel
	q := s.pgdb.NewSelect(&models).OrderExpr("name ASC, id ASC")
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?))", like, like)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list groups: %w", err)
	}
	ids := make([]string, len(models))
	for i := range models {
		ids[i] = models[i].ID
	}
	keys, err := s.groupKeys(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]*group.Group, len(models))
	for i := range models {
		g, err := groupFromModel(&models[i], keys[models[i].ID])
		if err != nil {
			return nil, fmt.Errorf("warrant: list groups: %w", err)
		}
		result[i] = g
	}
	return result, nil
}

func (s *Store) CountGroups(ctx context.Context, filter *group.ListFilter) (int64, error) {
	q := s.pgdb.NewSelect((*groupModel)(nil))
	if filter != nil {
		if filter.Search != "" {
			like := "%" + filter.Search + "%"
			q = q.Where("(LOWER(name) LIKE LOWER(?) OR LOWER(description) LIKE LOWER(?))", like, like)
		}
		if filter.IsActive != nil {
			q = q.Where("is_active = ?", *filter.IsActive)
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count groups: %w", err)
	}
	return count, nil
}

func (s *Store) SetGroupPermissions(ctx context.Context, groupID id.GroupID, keys []catalog.Key) error {
	if err := s.groupExists(ctx, groupID); err != nil {
		return err
	}
	return s.replacePermissions(ctx, groupID, keys, nil)
}

// replacePermissions swaps the permission rows of a group. When row is
// non-nil the group row is updated in the same transaction.
func (s *Store) replacePermissions(ctx context.Context, groupID id.GroupID, keys []catalog.Key, row *groupModel) error {
	tx, err := s.pgdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("warrant: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	if row != nil {
		res, err := tx.NewUpdate(row).WherePK().Exec(ctx)
		if err != nil {
			return fmt.Errorf("warrant: update group: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("warrant: update group rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
		}
	}

	_, err = tx.NewDelete((*groupPermissionModel)(nil)).
		Where("group_id = ?", groupID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: clear group permissions: %w", err)
	}
	keys = catalog.Normalize(keys)
	if len(keys) > 0 {
		models := permissionModels(groupID.String(), keys)
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return fmt.Errorf("warrant: set group permissions: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("warrant: commit tx: %w", err)
	}
	return nil
}

func (s *Store) groupExists(ctx context.Context, groupID id.GroupID) error {
	count, err := s.pgdb.NewSelect((*groupModel)(nil)).
		Where("id = ?", groupID.String()).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("warrant: check group: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	return nil
}

// groupKeys loads the permission keys of the given groups, sorted per group.
func (s *Store) groupKeys(ctx context.Context, groupIDs []string) (map[string][]catalog.Key, error) {
	out := make(map[string][]catalog.Key, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}
	var models []groupPermissionModel
	err := s.pgdb.NewSelect(&models).
		Where("group_id = ANY(?)", groupIDs).
		OrderExpr("group_id ASC, permission_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list group permissions: %w", err)
	}
	for _, m := range models {
		out[m.GroupID] = append(out[m.GroupID], catalog.Key(m.PermissionKey))
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Membership operations
// ──────────────────────────────────────────────────

func (s *Store) AddMember(ctx context.Context, m *group.Membership) (bool, error) {
	if err := s.groupExists(ctx, m.GroupID); err != nil {
		return false, err
	}
	res, err := s.pgdb.NewInsert(membershipToModel(m)).
		OnConflict("(user_id, group_id) DO NOTHING").
		Exec(ctx)
	if isForeignKeyViolation(err) {
		return false, fmt.Errorf("group %s: %w", m.GroupID, store.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("warrant: add member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("warrant: add member rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) RemoveMember(ctx context.Context, userID string, groupID id.GroupID) (bool, error) {
	res, err := s.pgdb.NewDelete((*membershipModel)(nil)).
		Where("user_id = ?", userID).
		Where("group_id = ?", groupID.String()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warrant: remove member: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("warrant: remove member rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListMembers(ctx context.Context, groupID id.GroupID) ([]*group.Membership, error) {
	var models []membershipModel
	err := s.pgdb.NewSelect(&models).
		Where("group_id = ?", groupID.String()).
		OrderExpr("added_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list members: %w", err)
	}
	return membershipsFromModels(models)
}

func (s *Store) ListUserMemberships(ctx context.Context, userID string) ([]*group.Membership, error) {
	var models []membershipModel
	err := s.pgdb.NewSelect(&models).
		Where("user_id = ?", userID).
		OrderExpr("added_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list user memberships: %w", err)
	}
	return membershipsFromModels(models)
}

func membershipsFromModels(models []membershipModel) ([]*group.Membership, error) {
	result := make([]*group.Membership, len(models))
	for i := range models {
		m, err := membershipFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("warrant: list memberships: %w", err)
		}
		result[i] = m
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Direct grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.DirectGrant) error {
	if _, err := s.pgdb.NewInsert(grantToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.DirectGrant, error) {
	m := new(grantModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", grantID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get grant: %w", err)
	}
	g, err := grantFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("warrant: get grant: %w", err)
	}
	return g, nil
}

func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) (bool, error) {
	res, err := s.pgdb.NewUpdate((*grantModel)(nil)).
		Set("revoked_at = ?", at.UTC()).
		Set("revoked_by = ?", revokedBy).
		Where("id = ?", grantID.String()).
		Where("revoked_at IS NULL").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warrant: revoke grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("warrant: revoke grant rows: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetGrant(ctx, grantID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.DirectGrant, error) {
	var models []grantModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.PermissionKey != "" {
			q = q.Where("permission_key = ?", string(filter.PermissionKey))
		}
		if filter.ActiveAt != nil {
			at := filter.ActiveAt.UTC()
			q = q.Where("(revoked_at IS NULL OR revoked_at > ?)", at).
				Where("(expires_at IS NULL OR expires_at > ?)", at)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list grants: %w", err)
	}
	result := make([]*grant.DirectGrant, len(models))
	for i := range models {
		g, err := grantFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("warrant: list grants: %w", err)
		}
		result[i] = g
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Elevation operations
// ──────────────────────────────────────────────────

func (s *Store) CreateElevation(ctx context.Context, r *elevation.Request) error {
	if _, err := s.pgdb.NewInsert(elevationToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create elevation: %w", err)
	}
	return nil
}

func (s *Store) GetElevation(ctx context.Context, reqID id.ElevationID) (*elevation.Request, error) {
	m := new(elevationModel)
	err := s.pgdb.NewSelect(m).Where("id = ?", reqID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("elevation %s: %w", reqID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get elevation: %w", err)
	}
	r, err := elevationFromModel(m)
	if err != nil {
		return nil, fmt.Errorf("warrant: get elevation: %w", err)
	}
	return r, nil
}

// TransitionElevation guards the update with the expected status, so of
// two concurrent transitions from the same state only one matches a row.
func (s *Store) TransitionElevation(ctx context.Context, reqID id.ElevationID, t elevation.Transition) (*elevation.Request, error) {
	q := s.pgdb.NewUpdate((*elevationModel)(nil)).
		Set("status = ?", string(t.To)).
		Set("reviewed_by = ?", t.ReviewedBy)
	if t.ReviewedAt != nil {
		q = q.Set("reviewed_at = ?", t.ReviewedAt.UTC())
	}
	res, err := q.
		Where("id = ?", reqID.String()).
		Where("status = ?", string(t.From)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: transition elevation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("warrant: transition elevation rows: %w", err)
	}
	cur, err := s.GetElevation(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("elevation %s is %s: %w", reqID, cur.Status, store.ErrStateConflict)
	}
	return cur, nil
}

func (s *Store) ListElevations(ctx context.Context, filter *elevation.ListFilter) ([]*elevation.Request, error) {
	var models []elevationModel
	q := s.pgdb.NewSelect(&models).OrderExpr("created_at DESC, id DESC")
	if filter != nil {
		if filter.UserID != "" {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if len(filter.Statuses) > 0 {
			q = q.Where("status = ANY(?)", statusStrings(filter.Statuses))
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list elevations: %w", err)
	}
	result := make([]*elevation.Request, len(models))
	for i := range models {
		r, err := elevationFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("warrant: list elevations: %w", err)
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) ExpireElevations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.pgdb.NewUpdate((*elevationModel)(nil)).
		Set("status = ?", string(elevation.StatusExpired)).
		Where("status = ?", string(elevation.StatusApproved)).
		Where("valid_until < ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: expire elevations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("warrant: expire elevations rows: %w", err)
	}
	return n, nil
}

func statusStrings(statuses []elevation.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEvent(ctx context.Context, e *audit.Event) error {
	m, err := auditEventToModel(e)
	if err != nil {
		return fmt.Errorf("warrant: create audit event: %w", err)
	}
	if _, err := s.pgdb.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create audit event: %w", err)
	}
	return nil
}

func (s *Store) ListAuditEvents(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	var models []auditEventModel
	q := s.pgdb.NewSelect(&models).OrderExpr("timestamp DESC, id DESC")
	if filter != nil {
		if filter.Actor != "" {
			q = q.Where("actor = ?", filter.Actor)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if filter.After != nil {
			q = q.Where("timestamp >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("timestamp <= ?", filter.Before.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list audit events: %w", err)
	}
	result := make([]*audit.Event, len(models))
	for i := range models {
		e, err := auditEventFromModel(&models[i])
		if err != nil {
			return nil, fmt.Errorf("warrant: list audit events: %w", err)
		}
		result[i] = e
	}
	return result, nil
}

func (s *Store) CountAuditEvents(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	q := s.pgdb.NewSelect((*auditEventModel)(nil))
	if filter != nil {
		if filter.Actor != "" {
			q = q.Where("actor = ?", filter.Actor)
		}
		if filter.Action != "" {
			q = q.Where("action = ?", filter.Action)
		}
		if filter.EntityType != "" {
			q = q.Where("entity_type = ?", filter.EntityType)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		if filter.After != nil {
			q = q.Where("timestamp >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("timestamp <= ?", filter.Before.UTC())
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count audit events: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.pgdb.NewDelete((*auditEventModel)(nil)).
		Where("timestamp < ?", before.UTC()).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: purge audit events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("warrant: purge audit events rows: %w", err)
	}
	return n, nil
}
