package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/elevation"
	"github.com/xraph/warrant/id"
)

func (a *API) registerElevationRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("elevations"))

	if err := g.POST("/elevations", a.requestElevation,
		forge.WithSummary("Request elevation"),
		forge.WithDescription("Submits a time-boxed elevation request for review."),
		forge.WithOperationID("requestElevation"),
		forge.WithRequestSchema(CreateElevationRequest{}),
		forge.WithCreatedResponse(&elevation.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/elevations", a.listElevations,
		forge.WithSummary("List elevation requests"),
		forge.WithDescription("Lists elevation requests, newest first, filtered by effective status."),
		forge.WithOperationID("listElevations"),
		forge.WithRequestSchema(ListElevationsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Elevation requests", []*warrant.ElevationView{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/elevations/:requestId/review", a.reviewElevation,
		forge.WithSummary("Review elevation"),
		forge.WithDescription("Approves or rejects a pending elevation request."),
		forge.WithOperationID("reviewElevation"),
		forge.WithRequestSchema(ReviewElevationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Reviewed request", &elevation.Request{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/elevations/:requestId/cancel", a.cancelElevation,
		forge.WithSummary("Cancel elevation"),
		forge.WithDescription("Cancels a pending elevation request. Only the requester may cancel."),
		forge.WithOperationID("cancelElevation"),
		forge.WithRequestSchema(CancelElevationRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Cancelled request", &elevation.Request{}),
		forge.WithErrorResponses(),
	)
}

func parseElevationID(ctx forge.Context) (id.ElevationID, error) {
	reqID, err := id.ParseElevationID(ctx.Param("requestId"))
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid elevation request ID: %v", err))
	}
	return reqID, nil
}

func (a *API) requestElevation(ctx forge.Context, req *CreateElevationRequest) (*elevation.Request, error) {
	in := warrant.ElevationInput{
		UserID:        req.UserID,
		PermissionKey: catalog.Key(req.PermissionKey),
		Justification: req.Justification,
		ValidUntil:    req.ValidUntil,
	}
	if req.ValidFrom != nil {
		in.ValidFrom = *req.ValidFrom
	}

	r, err := a.eng.RequestElevation(ctx.Context(), in)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusCreated, r)
}

func (a *API) listElevations(ctx forge.Context, req *ListElevationsRequest) ([]*warrant.ElevationView, error) {
	views, err := a.eng.ListElevationRequests(ctx.Context(), warrant.ElevationFilter{
		UserID: req.UserID,
		Status: elevation.Status(req.Status),
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return views, ctx.JSON(http.StatusOK, views)
}

func (a *API) reviewElevation(ctx forge.Context, req *ReviewElevationRequest) (*elevation.Request, error) {
	reqID, err := parseElevationID(ctx)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.ReviewElevation(ctx.Context(), reqID, elevation.Action(req.Action), req.ReviewerID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}

func (a *API) cancelElevation(ctx forge.Context, req *CancelElevationRequest) (*elevation.Request, error) {
	reqID, err := parseElevationID(ctx)
	if err != nil {
		return nil, err
	}

	r, err := a.eng.CancelElevation(ctx.Context(), reqID, req.ActorID)
	if err != nil {
		return nil, mapError(err)
	}

	return r, ctx.JSON(http.StatusOK, r)
}
