package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"assetplane/backend/internal/auth"
	"assetplane/backend/pkg/models"
)

type decideApprovalRequest struct {
	Decision models.ApprovalDecision `json:"decision"`
	Comment  string                  `json:"comment"`
}

// DecideApproval records an approve/reject decision; approving resumes
// the gated run synchronously.
// (POST /api/v1/approvals/:id/decision)
func (s *Server) DecideApproval(c echo.Context) error {
	ctx := c.Request().Context()
	actor := auth.ActorFromContext(c)

	var req decideApprovalRequest
	if err := c.Bind(&req); err != nil {
		return writeProblem(c, http.StatusBadRequest, "Bad Request", "invalid request body: "+err.Error())
	}

	approval, err := s.Workflows.DecideApproval(ctx, c.Param("id"), actor, req.Decision, req.Comment)
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}

// GetApproval returns one approval record.
// (GET /api/v1/approvals/:id)
func (s *Server) GetApproval(c echo.Context) error {
	approval, err := s.Store.GetApproval(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.problem(c, err)
	}
	return c.JSON(http.StatusOK, approval)
}
