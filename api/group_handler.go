package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
	"github.com/xraph/warrant/group"
	"github.com/xraph/warrant/id"
)

func (a *API) registerGroupRoutes(router forge.Router) error {
	g := router.Group("/v1", forge.WithGroupTags("groups"))

	if err := g.POST("/groups", a.createGroup,
		forge.WithSummary("Create group"),
		forge.WithDescription("Creates a permission group."),
		forge.WithOperationID("createGroup"),
		forge.WithRequestSchema(SaveGroupRequest{}),
		forge.WithCreatedResponse(&group.Group{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/groups/:groupId", a.getGroup,
		forge.WithSummary("Get group"),
		forge.WithDescription("Returns a group with its permission keys."),
		forge.WithOperationID("getGroup"),
		forge.WithResponseSchema(http.StatusOK, "Group details", &group.Group{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/groups/:groupId", a.updateGroup,
		forge.WithSummary("Update group"),
		forge.WithDescription("Updates name, description, activity and permission keys of a group."),
		forge.WithOperationID("updateGroup"),
		forge.WithRequestSchema(SaveGroupRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated group", &group.Group{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/groups/:groupId", a.deleteGroup,
		forge.WithSummary("Delete group"),
		forge.WithDescription("Deletes a group and its memberships."),
		forge.WithOperationID("deleteGroup"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/groups", a.listGroups,
		forge.WithSummary("List groups"),
		forge.WithDescription("Lists groups ordered by name."),
		forge.WithOperationID("listGroups"),
		forge.WithRequestSchema(ListGroupsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Group list", ListResponse[*group.Group]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.PUT("/groups/:groupId/permissions", a.setGroupPermissions,
		forge.WithSummary("Set group permissions"),
		forge.WithDescription("Replaces the permission set of a group in one step."),
		forge.WithOperationID("setGroupPermissions"),
		forge.WithRequestSchema(SetGroupPermissionsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated group", &group.Group{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/groups/:groupId/members", a.listMembers,
		forge.WithSummary("List group members"),
		forge.WithDescription("Lists membership edges of a group with user details when available."),
		forge.WithOperationID("listMembers"),
		forge.WithResponseSchema(http.StatusOK, "Members", []warrant.MemberDetail{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/groups/:groupId/members", a.addMember,
		forge.WithSummary("Add group member"),
		forge.WithDescription("Adds a user to a group. Adding an existing member is a no-op."),
		forge.WithOperationID("addMember"),
		forge.WithRequestSchema(AddMemberRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/groups/:groupId/members/:userId", a.removeMember,
		forge.WithSummary("Remove group member"),
		forge.WithDescription("Removes a user from a group."),
		forge.WithOperationID("removeMember"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/users/:userId/groups", a.listUserGroups,
		forge.WithSummary("List user groups"),
		forge.WithDescription("Lists the groups a user belongs to."),
		forge.WithOperationID("listUserGroups"),
		forge.WithResponseSchema(http.StatusOK, "Groups", []*group.Group{}),
		forge.WithErrorResponses(),
	)
}

func parseGroupID(ctx forge.Context) (id.GroupID, error) {
	gid, err := id.ParseGroupID(ctx.Param("groupId"))
	if err != nil {
		return id.Nil, forge.BadRequest(fmt.Sprintf("invalid group ID: %v", err))
	}
	return gid, nil
}

func toKeys(raw []string) []catalog.Key {
	keys := make([]catalog.Key, len(raw))
	for i, k := range raw {
		keys[i] = catalog.Key(k)
	}
	return keys
}

func (a *API) createGroup(ctx forge.Context, req *SaveGroupRequest) (*group.Group, error) {
	g := &group.Group{
		Name:           req.Name,
		Description:    req.Description,
		IsActive:       true,
		PermissionKeys: toKeys(req.PermissionKeys),
	}
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}

	saved, err := a.eng.SaveGroup(ctx.Context(), g)
	if err != nil {
		return nil, mapError(err)
	}

	return saved, ctx.JSON(http.StatusCreated, saved)
}

func (a *API) getGroup(ctx forge.Context, _ *GetGroupRequest) (*group.Group, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := a.eng.GetGroup(ctx.Context(), groupID)
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusOK, g)
}

func (a *API) updateGroup(ctx forge.Context, req *SaveGroupRequest) (*group.Group, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := a.eng.GetGroup(ctx.Context(), groupID)
	if err != nil {
		return nil, mapError(err)
	}

	g.Name = req.Name
	g.Description = req.Description
	if req.IsActive != nil {
		g.IsActive = *req.IsActive
	}
	if req.PermissionKeys != nil {
		g.PermissionKeys = toKeys(req.PermissionKeys)
	}

	saved, err := a.eng.SaveGroup(ctx.Context(), g)
	if err != nil {
		return nil, mapError(err)
	}

	return saved, ctx.JSON(http.StatusOK, saved)
}

func (a *API) deleteGroup(ctx forge.Context, _ *GetGroupRequest) (*struct{}, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.eng.DeleteGroup(ctx.Context(), groupID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listGroups(ctx forge.Context, req *ListGroupsRequest) (*ListResponse[*group.Group], error) {
	filter := &group.ListFilter{
		Search: req.Search,
		Limit:  defaultLimit(req.Limit),
		Offset: req.Offset,
	}
	if req.ActiveOnly {
		active := true
		filter.IsActive = &active
	}

	groups, err := a.eng.ListGroups(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}
	total, err := a.eng.CountGroups(ctx.Context(), filter)
	if err != nil {
		return nil, mapError(err)
	}

	resp := &ListResponse[*group.Group]{
		Items:  groups,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) setGroupPermissions(ctx forge.Context, req *SetGroupPermissionsRequest) (*group.Group, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	g, err := a.eng.SetGroupPermissions(ctx.Context(), groupID, toKeys(req.PermissionKeys))
	if err != nil {
		return nil, mapError(err)
	}

	return g, ctx.JSON(http.StatusOK, g)
}

func (a *API) listMembers(ctx forge.Context, _ *GetGroupRequest) ([]warrant.MemberDetail, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	members, err := a.eng.ListMemberDetails(ctx.Context(), groupID)
	if err != nil {
		return nil, mapError(err)
	}

	return members, ctx.JSON(http.StatusOK, members)
}

func (a *API) addMember(ctx forge.Context, req *AddMemberRequest) (*struct{}, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}
	if req.UserID == "" {
		return nil, forge.BadRequest("user_id is required")
	}

	if err := a.eng.AddMember(ctx.Context(), req.UserID, groupID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) removeMember(ctx forge.Context, _ *struct{}) (*struct{}, error) {
	groupID, err := parseGroupID(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.eng.RemoveMember(ctx.Context(), ctx.Param("userId"), groupID); err != nil {
		return nil, mapError(err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listUserGroups(ctx forge.Context, _ *struct{}) ([]*group.Group, error) {
	groups, err := a.eng.ListUserGroups(ctx.Context(), ctx.Param("userId"))
	if err != nil {
		return nil, mapError(err)
	}

	return groups, ctx.JSON(http.StatusOK, groups)
}
