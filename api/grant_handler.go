package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/grant"
	"github.com/xraph/warrant/id"
)

func (a *API) registerGrantRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("grants"))

	if err := g.POST("/grants", a.createGrant,
		forge.WithSummary("Grant permission"),
		forge.WithDescription("Grants a permission directly to a user with a justification."),
		forge.WithOperationID("createGrant"),
		forge.WithRequestSchema(CreateGrantRequest{}),
		forge.WithCreatedResponse(&grant.DirectGrant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/grants/:grantId", a.revokeGrant,
		forge.WithSummary("Revoke grant"),
		forge.WithDescription("Revokes a direct grant. Revoking twice is a no-op."),
		forge.WithOperationID("revokeGrant"),
		forge.WithResponseSchema(http.StatusOK, "Revoked grant", &grant.DirectGrant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/grants", a.listUserGrants,
		forge.WithSummary("List user grants"),
		forge.WithDescription("Lists a user's direct grants, active only unless include_inactive is set."),
		forge.WithOperationID("listUserGrants"),
		forge.WithRequestSchema(ListUserGrantsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grants", []*grant.DirectGrant{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) createGrant(ctx forge.Context, req *CreateGrantRequest) (*grant.DirectGrant, error) {
	g, err := a.eng.GrantDirect(ctx.Context(), warrant.GrantInput{
		UserID:        req.UserID,
		PermissionKey: catalog.Key(req.PermissionKey),
		Justification: req.Justification,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusCreated, g)
}

func (a *API) revokeGrant(ctx forge.Context, _ *struct{}) (*grant.DirectGrant, error) {
	grantID, err := id.ParseGrantID(ctx.Param("grantId"))
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid grant ID: %v", err))
	}

	g, err := a.eng.RevokeDirect(ctx.Context(), grantID)
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusOK, g)
}

func (a *API) listUserGrants(ctx forge.Context, req *ListUserGrantsRequest) ([]*grant.DirectGrant, error) {
	grants, err := a.eng.ListDirectGrants(ctx.Context(), ctx.Param("userId"), req.IncludeInactive)
	if err != nil {
		return nil, mapError(err)
	}

	return grants, ctx.JSON(http.StatusOK, grants)
}
