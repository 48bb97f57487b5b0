package warrant

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

const conflictIDPrefix = "cfl_"

// conflictNamespace seeds the name-based UUID that fingerprints the origin
// set of a conflict.
var conflictNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:warrant:conflict"))

// detectConflict applies the conflict rules to the sources of one key:
// a direct grant overlapping a group or elevation, a critical key reachable
// through two or more sources, or two or more direct grants.
func (e *Engine) detectConflict(userID string, key catalog.Key, s *sourceSet) (Conflict, bool) {
	critical := e.catalog.IsCritical(key)
	overlap := len(s.direct) > 0 && s.inherited()
	criticalMulti := critical && s.count() >= 2
	duplicate := len(s.direct) >= 2
	if !overlap && !criticalMulti && !duplicate {
		return Conflict{}, false
	}

	c := Conflict{
		ID:            conflictID(userID, key, s),
		UserID:        userID,
		PermissionKey: key,
		Sources:       describeSources(s),
		IsCritical:    critical,
	}
	if len(s.groups) > 0 {
		c.Origins = append(c.Origins, OriginGroup)
	}
	if len(s.direct) > 0 {
		c.Origins = append(c.Origins, OriginDirect)
	}
	if len(s.elevations) > 0 {
		c.Origins = append(c.Origins, OriginElevation)
	}

	switch {
	case criticalMulti:
		c.Reason = "critical permission granted through " + joinSources(c.Sources)
	case overlap:
		c.Reason = "direct grant duplicates access already inherited from " + joinSources(describeInherited(s))
	default:
		c.Reason = strconv.Itoa(len(s.direct)) + " direct grants for the same permission"
	}
	return c, true
}

func describeSources(s *sourceSet) []string {
	out := describeInherited(s)
	if n := len(s.direct); n == 1 {
		out = append(out, "direct grant")
	} else if n > 1 {
		out = append(out, strconv.Itoa(n)+" direct grants")
	}
	return out
}

func describeInherited(s *sourceSet) []string {
	out := make([]string, 0, len(s.groups)+1)
	for _, g := range s.groups {
		out = append(out, fmt.Sprintf("group %q", g.Name))
	}
	if len(s.elevations) > 0 {
		out = append(out, "elevation")
	}
	return out
}

func joinSources(parts []string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " and " + parts[len(parts)-1]
}

// conflictID encodes (user, key) reversibly and fingerprints the origin
// set, so the ID is stable while the same sources overlap and changes when
// the set of groups or origin kinds does.
func conflictID(userID string, key catalog.Key, s *sourceSet) string {
	tokens := make([]string, 0, len(s.groups)+2)
	for _, g := range s.groups {
		tokens = append(tokens, "group:"+g.GroupID.String())
	}
	if len(s.direct) > 0 {
		tokens = append(tokens, string(OriginDirect))
	}
	if len(s.elevations) > 0 {
		tokens = append(tokens, string(OriginElevation))
	}
	sort.Strings(tokens)

	subject := userID + "\x00" + string(key)
	fp := uuid.NewSHA1(conflictNamespace, []byte(subject+"\x00"+strings.Join(tokens, "\x00")))
	return conflictIDPrefix + base64.RawURLEncoding.EncodeToString([]byte(subject)) + "." + strings.ReplaceAll(fp.String(), "-", "")
}

// parseConflictID recovers the user and key a conflict ID refers to.
func parseConflictID(cid string) (string, catalog.Key, bool) {
	rest, ok := strings.CutPrefix(cid, conflictIDPrefix)
	if !ok {
		return "", "", false
	}
	enc, fp, ok := strings.Cut(rest, ".")
	if !ok || len(fp) != 32 {
		return "", "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(enc)
	if err != nil {
		return "", "", false
	}
	userID, key, ok := strings.Cut(string(raw), "\x00")
	if !ok || userID == "" || key == "" {
		return "", "", false
	}
	return userID, catalog.Key(key), true
}

// ResolveConflict resolves a conflict by revoking its direct grants.
// When the conflict consists only of direct grants, the oldest one is
// kept. Group memberships and elevations are never touched. A conflict ID
// that no longer matches the current state is not found.
func (e *Engine) ResolveConflict(ctx context.Context, conflictID string, strategy Strategy) (*ConflictResolution, error) {
	if strategy != StrategyRevokeDirect {
		return nil, &Error{
			Kind:    KindUnsupportedStrategy,
			Message: fmt.Sprintf("conflict resolution strategy %q is not supported", strategy),
		}
	}
	userID, key, ok := parseConflictID(conflictID)
	if !ok {
		return nil, notFound(nil, "conflict %s not found", conflictID)
	}

	unlock := e.locks.lock(userID)
	defer unlock()

	snap, err := e.loadSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	res := e.compute(snap, e.now())
	c, ok := res.ConflictFor(key)
	if !ok || c.ID != conflictID {
		return nil, notFound(nil, "conflict %s not found", conflictID)
	}

	var grantIDs []id.GrantID
	inherited := false
	for _, p := range res.Origins(key) {
		switch o := p.Origin.(type) {
		case DirectOrigin:
			grantIDs = append(grantIDs, o.GrantID)
		case GroupOrigin, ElevationOrigin:
			inherited = true
		}
	}
	if len(grantIDs) == 0 {
		return nil, validationf("conflict %s has no direct grant to revoke", conflictID)
	}
	if !inherited {
		grantIDs = grantIDs[1:]
	}

	out := &ConflictResolution{
		ConflictID:      conflictID,
		UserID:          userID,
		PermissionKey:   key,
		Strategy:        strategy,
		RevokedGrantIDs: []id.GrantID{},
	}
	for _, gid := range grantIDs {
		g, gerr := e.store.GetGrant(ctx, gid)
		if gerr != nil {
			return nil, storeErr(gerr, "grant "+gid.String())
		}
		changed, rerr := e.revokeLocked(ctx, g, map[string]any{"conflict_id": conflictID})
		if rerr != nil {
			return nil, rerr
		}
		if changed {
			out.RevokedGrantIDs = append(out.RevokedGrantIDs, gid)
		}
	}

	e.record(ctx, audit.ActionConflictResolved, audit.EntityConflict, conflictID, map[string]any{
		"user_id":        userID,
		"permission_key": string(key),
		"strategy":       string(strategy),
		"revoked":        len(out.RevokedGrantIDs),
	})
	e.plugins.EmitConflictResolved(ctx, out)
	return out, nil
}
