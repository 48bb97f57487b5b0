package api

import (
	"net/http"

	"github.com/xraph/forge"
)

func (a *API) registerCatalogRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("catalog"))

	return g.GET("/permissions", a.listPermissions,
		forge.WithSummary("List permission catalog"),
		forge.WithDescription("Returns every permission key the engine knows, with module and criticality."),
		forge.WithOperationID("listPermissions"),
		forge.WithRequestSchema(ListPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Permission catalog", CatalogResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listPermissions(ctx forge.Context, req *ListPermissionsRequest) (*CatalogResponse, error) {
	cat := a.eng.Catalog()
	resp := &CatalogResponse{Modules: cat.Modules()}
	if req.Module != "" {
		resp.Entries = cat.ByModule(req.Module)
	} else {
		resp.Entries = cat.List()
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}
