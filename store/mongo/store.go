// Package mongo provides a MongoDB implementation of the Warrant composite
// store using grove's mongo driver.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// Collection name constants.
const (
	colGroups       = "warrant_groups"
	colMemberships  = "warrant_memberships"
	colDirectGrants = "warrant_direct_grants"
	colElevations   = "warrant_elevations"
	colAuditEvents  = "warrant_audit_events"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Warrant store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all warrant collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("warrant/mongo: migrate %s indexes: %w", col, err)
		}
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all warrant collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colGroups: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}}},
		},
		colMemberships: {
			{
				Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "group_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "group_id", Value: 1}}},
		},
		colDirectGrants: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "permission_key", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "revoked_at", Value: 1}}},
		},
		colElevations: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "valid_until", Value: 1}}},
		},
		colAuditEvents: {
			{Keys: bson.D{{Key: "entity_type", Value: 1}, {Key: "entity_id", Value: 1}}},
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
			{Keys: bson.D{{Key: "actor", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Group operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGroup(ctx context.Context, g *group.Group) error {
	if _, err := s.mdb.NewInsert(groupToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create group: %w", err)
	}
	return nil
}

func (s *Store) GetGroup(ctx context.Context, groupID id.GroupID) (*group.Group, error) {
	var m groupModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": groupID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get group: %w", err)
	}
	return groupFromModel(&m), nil
}

func (s *Store) UpdateGroup(ctx context.Context, g *group.Group) error {
	m := groupToModel(g)
	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: update group: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("group %s: %w", g.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, groupID id.GroupID) error {
	res, err := s.mdb.NewDelete((*groupModel)(nil)).
		Filter(bson.M{"_id": groupID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete group: %w", err)
	}
	if res.DeletedCount() == 0 {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	_, err = s.mdb.NewDelete((*membershipModel)(nil)).
		Many().
		Filter(bson.M{"group_id": groupID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: delete group memberships: %w", err)
	}
	return nil
}

func groupFilter(filter *group.ListFilter) bson.M {
	f := bson.M{}
	if filter != nil {
		if filter.Search != "" {
			pattern := bson.M{"$regex": regexp.QuoteMeta(filter.Search), "$options": "i"}
			f["$or"] = bson.A{bson.M{"name": pattern}, bson.M{"description": pattern}}
		}
		if filter.IsActive != nil {
			f["is_active"] = *filter.IsActive
		}
	}
	return f
}

func (s *Store) ListGroups(ctx context.Context, filter *group.ListFilter) ([]*group.Group, error) {
	var models []groupModel
	q := s.mdb.NewFind(&models).
		Filter(groupFilter(filter)).
		Sort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list groups: %w", err)
	}
	result := make([]*group.Group, len(models))
	for i := range models {
		result[i] = groupFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountGroups(ctx context.Context, filter *group.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*groupModel)(nil)).
		Filter(groupFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count groups: %w", err)
	}
	return count, nil
}

func (s *Store) SetGroupPermissions(ctx context.Context, groupID id.GroupID, keys []catalog.Key) error {
	res, err := s.mdb.NewUpdate((*groupModel)(nil)).
		Filter(bson.M{"_id": groupID.String()}).
		Set("permission_keys", keyStrings(catalog.Normalize(keys))).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("warrant: set group permissions: %w", err)
	}
	if res.MatchedCount() == 0 {
		return fmt.Errorf("group %s: %w", groupID, store.ErrNotFound)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Membership operations
// ──────────────────────────────────────────────────

func (s *Store) AddMember(ctx context.Context, m *group.Membership) (bool, error) {
	if _, err := s.GetGroup(ctx, m.GroupID); err != nil {
		return false, err
	}
	_, err := s.mdb.NewInsert(membershipToModel(m)).Exec(ctx)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return false, nil // already a member
		}
		return false, fmt.Errorf("warrant: add member: %w", err)
	}
	return true, nil
}

func (s *Store) RemoveMember(ctx context.Context, userID string, groupID id.GroupID) (bool, error) {
	res, err := s.mdb.NewDelete((*membershipModel)(nil)).
		Filter(bson.M{"user_id": userID, "group_id": groupID.String()}).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warrant: remove member: %w", err)
	}
	return res.DeletedCount() > 0, nil
}

func (s *Store) ListMembers(ctx context.Context, groupID id.GroupID) ([]*group.Membership, error) {
	return s.findMemberships(ctx, bson.M{"group_id": groupID.String()})
}

func (s *Store) ListUserMemberships(ctx context.Context, userID string) ([]*group.Membership, error) {
	return s.findMemberships(ctx, bson.M{"user_id": userID})
}

func (s *Store) findMemberships(ctx context.Context, f bson.M) ([]*group.Membership, error) {
	var models []membershipModel
	err := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "added_at", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: list memberships: %w", err)
	}
	result := make([]*group.Membership, len(models))
	for i := range models {
		result[i] = membershipFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Direct grant operations
// ──────────────────────────────────────────────────

func (s *Store) CreateGrant(ctx context.Context, g *grant.DirectGrant) error {
	if _, err := s.mdb.NewInsert(grantToModel(g)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create grant: %w", err)
	}
	return nil
}

func (s *Store) GetGrant(ctx context.Context, grantID id.GrantID) (*grant.DirectGrant, error) {
	var m grantModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": grantID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("grant %s: %w", grantID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get grant: %w", err)
	}
	return grantFromModel(&m), nil
}

func (s *Store) RevokeGrant(ctx context.Context, grantID id.GrantID, revokedBy string, at time.Time) (bool, error) {
	res, err := s.mdb.NewUpdate((*grantModel)(nil)).
		Filter(bson.M{"_id": grantID.String(), "revoked_at": nil}).
		Set("revoked_at", at.UTC()).
		Set("revoked_by", revokedBy).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("warrant: revoke grant: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}
	if _, err := s.GetGrant(ctx, grantID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.DirectGrant, error) {
	f := bson.M{}
	if filter != nil {
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if filter.PermissionKey != "" {
			f["permission_key"] = string(filter.PermissionKey)
		}
		if filter.ActiveAt != nil {
			at := filter.ActiveAt.UTC()
			f["$and"] = bson.A{
				bson.M{"$or": bson.A{bson.M{"revoked_at": nil}, bson.M{"revoked_at": bson.M{"$gt": at}}}},
				bson.M{"$or": bson.A{bson.M{"expires_at": nil}, bson.M{"expires_at": bson.M{"$gt": at}}}},
			}
		}
	}
	var models []grantModel
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list grants: %w", err)
	}
	result := make([]*grant.DirectGrant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Elevation operations
// ──────────────────────────────────────────────────

func (s *Store) CreateElevation(ctx context.Context, r *elevation.Request) error {
	if _, err := s.mdb.NewInsert(elevationToModel(r)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create elevation: %w", err)
	}
	return nil
}

func (s *Store) GetElevation(ctx context.Context, reqID id.ElevationID) (*elevation.Request, error) {
	var m elevationModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": reqID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("elevation %s: %w", reqID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("warrant: get elevation: %w", err)
	}
	return elevationFromModel(&m), nil
}

// TransitionElevation matches on the expected status; a concurrent
// transition that got there first leaves nothing to match.
func (s *Store) TransitionElevation(ctx context.Context, reqID id.ElevationID, t elevation.Transition) (*elevation.Request, error) {
	q := s.mdb.NewUpdate((*elevationModel)(nil)).
		Filter(bson.M{"_id": reqID.String(), "status": string(t.From)}).
		Set("status", string(t.To)).
		Set("reviewed_by", t.ReviewedBy)
	if t.ReviewedAt != nil {
		q = q.Set("reviewed_at", t.ReviewedAt.UTC())
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("warrant: transition elevation: %w", err)
	}
	cur, err := s.GetElevation(ctx, reqID)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount() == 0 {
		return nil, fmt.Errorf("elevation %s is %s: %w", reqID, cur.Status, store.ErrStateConflict)
	}
	return cur, nil
}

func (s *Store) ListElevations(ctx context.Context, filter *elevation.ListFilter) ([]*elevation.Request, error) {
	f := bson.M{}
	if filter != nil {
		if filter.UserID != "" {
			f["user_id"] = filter.UserID
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, len(filter.Statuses))
			for i, st := range filter.Statuses {
				statuses[i] = string(st)
			}
			f["status"] = bson.M{"$in": statuses}
		}
	}
	var models []elevationModel
	q := s.mdb.NewFind(&models).
		Filter(f).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list elevations: %w", err)
	}
	result := make([]*elevation.Request, len(models))
	for i := range models {
		result[i] = elevationFromModel(&models[i])
	}
	return result, nil
}

// ExpireElevations flips every approved request whose window has closed.
// The grove update builder targets a single document, so this goes through
// the collection directly.
func (s *Store) ExpireElevations(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.mdb.Collection(colElevations).UpdateMany(ctx,
		bson.M{
			"status":      string(elevation.StatusApproved),
			"valid_until": bson.M{"$lt": now.UTC()},
		},
		bson.M{"$set": bson.M{"status": string(elevation.StatusExpired)}},
	)
	if err != nil {
		return 0, fmt.Errorf("warrant: expire elevations: %w", err)
	}
	return res.ModifiedCount, nil
}

// ──────────────────────────────────────────────────
// Audit operations
// ──────────────────────────────────────────────────

func (s *Store) CreateAuditEvent(ctx context.Context, e *audit.Event) error {
	if _, err := s.mdb.NewInsert(auditEventToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("warrant: create audit event: %w", err)
	}
	return nil
}

func auditFilter(filter *audit.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.Actor != "" {
		f["actor"] = filter.Actor
	}
	if filter.Action != "" {
		f["action"] = filter.Action
	}
	if filter.EntityType != "" {
		f["entity_type"] = filter.EntityType
	}
	if filter.EntityID != "" {
		f["entity_id"] = filter.EntityID
	}
	if filter.After != nil || filter.Before != nil {
		ts := bson.M{}
		if filter.After != nil {
			ts["$gte"] = filter.After.UTC()
		}
		if filter.Before != nil {
			ts["$lte"] = filter.Before.UTC()
		}
		f["timestamp"] = ts
	}
	return f
}

func (s *Store) ListAuditEvents(ctx context.Context, filter *audit.QueryFilter) ([]*audit.Event, error) {
	var models []auditEventModel
	q := s.mdb.NewFind(&models).
		Filter(auditFilter(filter)).
		Sort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("warrant: list audit events: %w", err)
	}
	result := make([]*audit.Event, len(models))
	for i := range models {
		result[i] = auditEventFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountAuditEvents(ctx context.Context, filter *audit.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*auditEventModel)(nil)).
		Filter(auditFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: count audit events: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeAuditEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*auditEventModel)(nil)).
		Many().
		Filter(bson.M{"timestamp": bson.M{"$lt": before.UTC()}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("warrant: purge audit events: %w", err)
	}
	return res.DeletedCount(), nil
}
