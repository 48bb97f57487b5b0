package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant/audit"
)

func (a *API) registerAuditRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("audit"))

	return g.GET("/audit-events", a.listAuditEvents,
		forge.WithSummary("List audit events"),
		forge.WithDescription("Lists recorded mutations, newest first."),
		forge.WithOperationID("listAuditEvents"),
		forge.WithRequestSchema(ListAuditEventsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Audit events", ListResponse[*audit.Event]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listAuditEvents(ctx forge.Context, req *ListAuditEventsRequest) (*ListResponse[*audit.Event], error) {
	filter := &audit.QueryFilter{
		Actor:      req.Actor,
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Limit:      defaultLimit(req.Limit),
		Offset:     req.Offset,
	}

	events, err := a.eng.ListAuditEvents(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.CountAuditEvents(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*audit.Event]{
		Items:  events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
