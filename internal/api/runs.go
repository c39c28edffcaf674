package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"assetplane/backend/internal/auth"
)

type startRunRequest struct {
	DefinitionID     string         `json:"definition_id"`
	TenantID         string         `json:"tenant_id"`
	WorkspaceID      string         `json:"workspace_id"`
	Inputs           map[string]any `json:"inputs"`
	LinkedWorkItemID string         `json:"linked_work_item_id"`
}

// StartRun creates and advances a workflow run.
// (POST /api/v1/runs)
func (s *Server) StartRun(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityRunStart) {
		return forbid(c, actor, auth.CapabilityRunStart)
	}

	var req startRunRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if req.DefinitionID == "" {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "definition_id is required")
	}

	run, err := s.Workflows.StartRun(ctx, req.DefinitionID, req.TenantID, req.WorkspaceID, req.Inputs, actor, req.LinkedWorkItemID)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusCreated, run)
}

// AdvanceRun resumes execution of a run from its cursor.
// (POST /api/v1/runs/:id/advance)
func (s *Server) AdvanceRun(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityRunStart) {
		return forbid(c, actor, auth.CapabilityRunStart)
	}

	run, err := s.Workflows.AdvanceRun(ctx, c.Param("id"), actor)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRun returns one workflow run.
// (GET /api/v1/runs/:id)
func (s *Server) GetRun(c echo.Context) error {
	run, err := s.Store.GetRun(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunTimeline returns the run's audit timeline, oldest first.
// (GET /api/v1/runs/:id/timeline)
func (s *Server) GetRunTimeline(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if _, err := s.Store.GetRun(ctx, id); err != nil {
		return s.problem(c, err)
	}
	events, err := s.Store.ListEvents(ctx, "workflow_run", id)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, events)
}
