package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"assetplane/backend/internal/auth"
	"assetplane/backend/pkg/models"
)

type signalRequest struct {
	TenantID string              `json:"tenant_id"`
	Signal   models.SourceSignal `json:"signal"`
}

// IngestSignal persists the signal and merges it into the best entity
// match or creates a new entity.
// (POST /api/v1/signals)
func (s *Server) IngestSignal(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilitySignalIngest) {
		return forbid(c, actor, auth.CapabilitySignalIngest)
	}

	var req signalRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if req.Signal.SourceID == "" || req.Signal.ObjectType == "" {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "signal.source_id and signal.object_type are required")
	}

	result, err := s.Recon.IngestSignal(ctx, req.TenantID, &req.Signal, actor.ID)
	if err != nil {
		return s.problem(c, err)
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	return c.JSON(status, result)
}

// FindCandidates previews reconciliation scoring without writing
// anything.
// (POST /api/v1/signals/candidates)
func (s *Server) FindCandidates(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)
	if !auth.Can(actor.Role, auth.CapabilityObjectRead) {
		return forbid(c, actor, auth.CapabilityObjectRead)
	}

	var req signalRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}
	if req.Signal.ObjectType == "" {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "signal.object_type is required")
	}

	candidates, err := s.Recon.FindCandidates(ctx, req.TenantID, &req.Signal)
	if err != nil {
		return s.problem(c, err)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return c.JSON(http.StatusOK, candidates)
}
