package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/id"
)

func (a *API) registerAccessRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("access"))

	if err := g.GET("/users/:userId/access", a.resolveAccess,
		forge.WithSummary("Resolve access"),
		forge.WithDescription("Returns the effective permissions of a user with origins, summary counts and conflicts."),
		forge.WithOperationID("resolveAccess"),
		forge.WithRequestSchema(ResolveAccessRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Resolution", &warrant.Resolution{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/conflicts/:conflictId/resolve", a.resolveConflict,
		forge.WithSummary("Resolve conflict"),
		forge.WithDescription("Removes redundant direct grants behind a conflict."),
		forge.WithOperationID("resolveConflict"),
		forge.WithRequestSchema(ResolveConflictRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Resolution outcome", &warrant.ConflictResolution{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/users/:userId/simulate", a.simulate,
		forge.WithSummary("Simulate change"),
		forge.WithDescription("Computes the permission diff a hypothetical change would cause without persisting it."),
		forge.WithOperationID("simulateChange"),
		forge.WithRequestSchema(SimulateRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Simulation result", &warrant.SimulationResult{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) resolveAccess(ctx forge.Context, req *ResolveAccessRequest) (*warrant.Resolution, error) {
	userID := ctx.Param("userId")

	var (
		res *warrant.Resolution
		err error
	)
	if req.AsOf != "" {
		asOf, perr := time.Parse(time.RFC3339, req.AsOf)
		if perr != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid as_of: %v", perr))
		}
		res, err = a.eng.ResolveAccessAt(ctx.Context(), userID, asOf)
	} else {
		res, err = a.eng.ResolveAccess(ctx.Context(), userID)
	}
	if err != nil {
		return nil, mapError(err)
	}

	return res, ctx.JSON(http.StatusOK, res)
}

func (a *API) resolveConflict(ctx forge.Context, req *ResolveConflictRequest) (*warrant.ConflictResolution, error) {
	strategy := warrant.Strategy(req.Strategy)
	if strategy == "" {
		strategy = warrant.StrategyRevokeDirect
	}

	out, err := a.eng.ResolveConflict(ctx.Context(), ctx.Param("conflictId"), strategy)
	if err != nil {
		return nil, mapError(err)
	}

	return out, ctx.JSON(http.StatusOK, out)
}

func (a *API) simulate(ctx forge.Context, req *SimulateRequest) (*warrant.SimulationResult, error) {
	in := warrant.SimulationInput{
		UserID:        ctx.Param("userId"),
		Action:        warrant.SimulationAction(req.Action),
		PermissionKey: catalog.Key(req.PermissionKey),
	}
	if req.GroupID != "" {
		gid, err := id.ParseGroupID(req.GroupID)
		if err != nil {
			return nil, forge.BadRequest(fmt.Sprintf("invalid group ID: %v", err))
		}
		in.GroupID = gid
	}

	out, err := a.eng.Simulate(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	return out, ctx.JSON(http.StatusOK, out)
}
