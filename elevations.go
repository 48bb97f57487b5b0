package warrant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/warrant/audit"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/id"
	"github.com/xraph/warrant/store"
)

// RequestElevation files a pending request for one permission over a
// bounded window.
func (e *Engine) RequestElevation(ctx context.Context, in ElevationInput) (*elevation.Request, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, validationf("user id is required")
	}
	if !e.catalog.Has(in.PermissionKey) {
		return nil, validationf("unknown permission key %q", in.PermissionKey)
	}
	justification := strings.TrimSpace(in.Justification)
	if justification == "" {
		return nil, validationf("justification is required")
	}
	now := e.now().UTC()
	from := in.ValidFrom
	if from.IsZero() {
		from = now
	}
	if in.ValidUntil.IsZero() || !from.Before(in.ValidUntil) {
		return nil, validationf("validity window must end after it starts")
	}

	r := &elevation.Request{
		ID:            id.NewElevationID(),
		UserID:        userID,
		PermissionKey: in.PermissionKey,
		Justification: justification,
		ValidFrom:     from.UTC(),
		ValidUntil:    in.ValidUntil.UTC(),
		Status:        elevation.StatusPending,
		CreatedAt:     now,
	}
	if err := e.store.CreateElevation(ctx, r); err != nil {
		return nil, fmt.Errorf("warrant: create elevation: %w", err)
	}

	e.record(ctx, audit.ActionElevationRequested, audit.EntityElevation, r.ID.String(), map[string]any{
		"user_id":        userID,
		"permission_key": string(r.PermissionKey),
		"valid_from":     r.ValidFrom,
		"valid_until":    r.ValidUntil,
	})
	e.plugins.EmitElevationRequested(ctx, r)
	return r, nil
}

// ReviewElevation approves or rejects a pending request. Of two concurrent
// reviews of the same request exactly one succeeds; the other fails with
// ErrInvalidState. An empty reviewerID falls back to the context actor.
func (e *Engine) ReviewElevation(ctx context.Context, reqID id.ElevationID, action elevation.Action, reviewerID string) (*elevation.Request, error) {
	target, ok := action.Target()
	if !ok {
		return nil, validationf("unknown review action %q", action)
	}
	if reviewerID = strings.TrimSpace(reviewerID); reviewerID == "" {
		reviewerID = e.actor(ctx)
	}

	r, err := e.store.GetElevation(ctx, reqID)
	if err != nil {
		return nil, storeErr(err, "elevation request "+reqID.String())
	}
	now := e.now().UTC()
	if r.Status != elevation.StatusPending {
		return nil, invalidStatef("elevation request %s is %s, not pending", reqID, r.EffectiveStatus(now))
	}

	unlock := e.locks.lock(r.UserID)
	defer unlock()

	updated, err := e.transition(ctx, reqID, elevation.Transition{
		From:       elevation.StatusPending,
		To:         target,
		ReviewedBy: reviewerID,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	e.invalidateUser(ctx, r.UserID)
	auditAction := audit.ActionElevationApproved
	if target == elevation.StatusRejected {
		auditAction = audit.ActionElevationRejected
	}
	e.record(ctx, auditAction, audit.EntityElevation, reqID.String(), map[string]any{
		"user_id":        updated.UserID,
		"permission_key": string(updated.PermissionKey),
		"reviewed_by":    reviewerID,
	})
	e.plugins.EmitElevationReviewed(ctx, updated)
	return updated, nil
}

// CancelElevation withdraws a pending request. Only the requester may
// cancel; an empty actorID falls back to the context actor.
func (e *Engine) CancelElevation(ctx context.Context, reqID id.ElevationID, actorID string) (*elevation.Request, error) {
	if actorID = strings.TrimSpace(actorID); actorID == "" {
		actorID = ActorFromContext(ctx)
	}
	r, err := e.store.GetElevation(ctx, reqID)
	if err != nil {
		return nil, storeErr(err, "elevation request "+reqID.String())
	}
	if r.Status != elevation.StatusPending {
		return nil, invalidStatef("elevation request %s is %s, not pending", reqID, r.EffectiveStatus(e.now()))
	}
	if !r.CanCancel(actorID) {
		return nil, invalidStatef("only the requester can cancel elevation request %s", reqID)
	}

	unlock := e.locks.lock(r.UserID)
	defer unlock()

	now := e.now().UTC()
	updated, err := e.transition(ctx, reqID, elevation.Transition{
		From:       elevation.StatusPending,
		To:         elevation.StatusCancelled,
		ReviewedBy: actorID,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	e.record(WithActor(ctx, actorID), audit.ActionElevationCancelled, audit.EntityElevation, reqID.String(), map[string]any{
		"user_id":        updated.UserID,
		"permission_key": string(updated.PermissionKey),
	})
	e.plugins.EmitElevationCancelled(ctx, updated)
	return updated, nil
}

func (e *Engine) transition(ctx context.Context, reqID id.ElevationID, t elevation.Transition) (*elevation.Request, error) {
	updated, err := e.store.TransitionElevation(ctx, reqID, t)
	if errors.Is(err, store.ErrStateConflict) {
		status := "no longer pending"
		if cur, gerr := e.store.GetElevation(ctx, reqID); gerr == nil {
			status = string(cur.EffectiveStatus(e.now()))
		}
		return nil, &Error{
			Kind:    KindInvalidState,
			Message: fmt.Sprintf("elevation request %s is %s, not %s", reqID, status, t.From),
			Err:     err,
		}
	}
	if err != nil {
		return nil, storeErr(err, "elevation request "+reqID.String())
	}
	return updated, nil
}

// GetElevation returns a request with its derived fields.
func (e *Engine) GetElevation(ctx context.Context, reqID id.ElevationID) (*ElevationView, error) {
	r, err := e.store.GetElevation(ctx, reqID)
	if err != nil {
		return nil, storeErr(err, "elevation request "+reqID.String())
	}
	return e.view(ctx, r), nil
}

// ListElevationRequests lists requests, newest first. The status filter
// matches effective status, so an approved request past its window is
// listed as expired whether or not a sweep has run.
func (e *Engine) ListElevationRequests(ctx context.Context, filter ElevationFilter) ([]*ElevationView, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, validationf("unknown elevation status %q", filter.Status)
	}
	sf := &elevation.ListFilter{UserID: filter.UserID}
	switch filter.Status {
	case "":
	case elevation.StatusExpired, elevation.StatusApproved:
		sf.Statuses = []elevation.Status{elevation.StatusApproved, elevation.StatusExpired}
	default:
		sf.Statuses = []elevation.Status{filter.Status}
	}

	reqs, err := e.store.ListElevations(ctx, sf)
	if err != nil {
		return nil, err
	}
	now := e.now()
	out := make([]*ElevationView, 0, len(reqs))
	for _, r := range reqs {
		if filter.Status != "" && r.EffectiveStatus(now) != filter.Status {
			continue
		}
		out = append(out, e.view(ctx, r))
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

// SweepExpiredElevations persists the approved→expired edge for requests
// whose window has closed. Resolution does not depend on it.
func (e *Engine) SweepExpiredElevations(ctx context.Context) (int64, error) {
	n, err := e.store.ExpireElevations(ctx, e.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("warrant: expire elevations: %w", err)
	}
	if n > 0 {
		e.logger.Info("warrant: expired elevation requests", "count", n)
		e.record(ctx, audit.ActionElevationExpired, audit.EntityElevation, "", map[string]any{"count": n})
	}
	return n, nil
}

func (e *Engine) view(ctx context.Context, r *elevation.Request) *ElevationView {
	return &ElevationView{
		Request:         r,
		EffectiveStatus: r.EffectiveStatus(e.now()),
		CanCancel:       r.CanCancel(ActorFromContext(ctx)),
	}
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
