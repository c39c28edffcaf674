package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"assetplane/backend/internal/auth"
	"assetplane/backend/pkg/models"
)

// GetEntity returns one canonical entity, masked for the requesting
// actor's role.
// (GET /api/v1/entities/:id)
func (s *Server) GetEntity(c echo.Context) error {
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityObjectRead) {
		return forbid(c, actor, auth.CapabilityObjectRead)
	}

	entity, err := s.Store.GetEntity(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, auth.MaskObjectForActor(entity, actor, s.Restrictions))
}

// ListEntities returns entities filtered by object type, masked per
// actor. tenant_id narrows the listing; empty means all tenants.
// (GET /api/v1/entities?type=device&tenant_id=t1)
func (s *Server) ListEntities(c echo.Context) error {
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityObjectRead) {
		return forbid(c, actor, auth.CapabilityObjectRead)
	}

	objectType := models.ObjectType(c.QueryParam("type"))
	if objectType == "" {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "type query parameter is required")
	}

	entities, err := s.Store.ListEntitiesByType(c.Request().Context(), c.QueryParam("tenant_id"), objectType)
	if err != nil {
		return s.problem(c, err)
	}

	masked := make([]*models.Entity, len(entities))
	for i, entity := range entities {
		masked[i] = auth.MaskObjectForActor(entity, actor, s.Restrictions)
	}
	return c.JSON(http.StatusOK, masked)
}

// GetEntityTimeline returns the entity's audit timeline, oldest first.
// (GET /api/v1/entities/:id/timeline)
func (s *Server) GetEntityTimeline(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityObjectRead) {
		return forbid(c, actor, auth.CapabilityObjectRead)
	}

	id := c.Param("id")
	if _, err := s.Store.GetEntity(ctx, id); err != nil {
		return s.problem(c, err)
	}
	events, err := s.Store.ListEvents(ctx, "entity", id)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, events)
}
