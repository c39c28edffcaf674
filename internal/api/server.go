// Package api contains the HTTP handlers for the control plane REST API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"assetplane/backend/internal/auth"
	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/internal/services"
	"assetplane/backend/pkg/models"
)

// Server holds the dependencies for the API server.
type Server struct {
	Store        repository.GraphStore
	Workflows    *services.WorkflowEngine
	Recon        *services.ReconciliationEngine
	Restrictions []auth.FieldRestriction
	Logger       *logging.Logger
}

// NewServer creates a new Server.
func NewServer(store repository.GraphStore, workflows *services.WorkflowEngine, recon *services.ReconciliationEngine, restrictions []auth.FieldRestriction, logger *logging.Logger) *Server {
	return &Server{
		Store:        store,
		Workflows:    workflows,
		Recon:        recon,
		Restrictions: restrictions,
		Logger:       logger,
	}
}

// RegisterRoutes mounts the versioned API on the group. The group is
// expected to carry the actor middleware.
func (s *Server) RegisterRoutes(g *echo.Group) {
	g.POST("/runs", s.StartRun)
	g.POST("/runs/:id/advance", s.AdvanceRun)
	g.GET("/runs/:id", s.GetRun)
	g.GET("/runs/:id/timeline", s.GetRunTimeline)

	g.POST("/approvals/:id/decision", s.DecideApproval)
	g.GET("/approvals/:id", s.GetApproval)

	g.POST("/signals", s.IngestSignal)
	g.POST("/signals/candidates", s.FindCandidates)

	g.GET("/entities", s.ListEntities)
	g.GET("/entities/:id", s.GetEntity)
	g.GET("/entities/:id/timeline", s.GetEntityTimeline)
}

// HandleHealth returns basic health status (always returns 200 OK).
func (s *Server) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthStatus{
		Status:    "ok",
		Service:   "assetplane",
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
	})
}

// problem maps a service error to an RFC 7807 Problem Details response.
func (s *Server) problem(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	title := "Internal Server Error"
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, title = http.StatusNotFound, "Not Found"
	case errors.Is(err, services.ErrInvalidState):
		status, title = http.StatusConflict, "Conflict"
	case errors.Is(err, services.ErrPermissionDenied):
		status, title = http.StatusForbidden, "Forbidden"
	}
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", c.Request().URL.Path, "error", err.Error())
	}
	return writeProblem(c, status, title, err.Error())
}

// writeProblem writes an RFC 7807 Problem Details JSON error response.
func writeProblem(c echo.Context, status int, title, detail string) error {
	problem := models.ProblemDetails{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Request().URL.Path,
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/problem+json")
	c.Response().WriteHeader(status)
	return json.NewEncoder(c.Response()).Encode(problem)
}

func forbid(c echo.Context, actor auth.Actor, capability auth.Capability) error {
	return writeProblem(c, http.StatusForbidden, "Forbidden",
		"actor "+actor.ID+" lacks "+string(capability))
}
