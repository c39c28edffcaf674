// Package mcp exposes the core engine operations as MCP tools so agent
// clients can drive reconciliation and workflows over the same service.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"assetplane/backend/internal/auth"
	"assetplane/backend/internal/services"
	"assetplane/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	workflows *services.WorkflowEngine
	recon     *services.ReconciliationEngine
}

func NewServer(workflows *services.WorkflowEngine, recon *services.ReconciliationEngine) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Asset Plane",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		workflows: workflows,
		recon:     recon,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"ingest_signal",
			mcp.WithDescription("Ingest a source signal: merge into the best entity match or create a new entity"),
			mcp.WithString("source_id", mcp.Required(), mcp.Description("Id of the external system of record")),
			mcp.WithString("object_type", mcp.Required(), mcp.Description("Object type: person, device, account, application or group")),
			mcp.WithString("tenant_id", mcp.Description("Tenant to scope the reconciliation to")),
			mcp.WithObject("snapshot", mcp.Required(), mcp.Description("Attribute snapshot reported by the source")),
			mcp.WithNumber("confidence", mcp.Description("Source confidence, 0..1")),
		),
		s.handleIngestSignal,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"find_candidates",
			mcp.WithDescription("Preview reconciliation candidates for a snapshot without writing anything"),
			mcp.WithString("object_type", mcp.Required(), mcp.Description("Object type to match against")),
			mcp.WithString("tenant_id", mcp.Description("Tenant to scope the matching to")),
			mcp.WithObject("snapshot", mcp.Required(), mcp.Description("Attribute snapshot to score")),
		),
		s.handleFindCandidates,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"start_run",
			mcp.WithDescription("Start a workflow run from an active definition and advance it as far as it will go"),
			mcp.WithString("definition_id", mcp.Required(), mcp.Description("Workflow definition id")),
			mcp.WithString("tenant_id", mcp.Description("Tenant the run belongs to")),
			mcp.WithString("actor_id", mcp.Required(), mcp.Description("Id of the acting operator")),
			mcp.WithString("actor_role", mcp.Description("Role of the acting operator")),
			mcp.WithObject("inputs", mcp.Description("Run inputs")),
		),
		s.handleStartRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"advance_run",
			mcp.WithDescription("Resume execution of a workflow run from its cursor"),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("Workflow run id")),
			mcp.WithString("actor_id", mcp.Required(), mcp.Description("Id of the acting operator")),
			mcp.WithString("actor_role", mcp.Description("Role of the acting operator")),
		),
		s.handleAdvanceRun,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"decide_approval",
			mcp.WithDescription("Approve or reject a pending approval; approving resumes the gated run"),
			mcp.WithString("approval_id", mcp.Required(), mcp.Description("Approval record id")),
			mcp.WithString("decision", mcp.Required(), mcp.Description("approved or rejected")),
			mcp.WithString("actor_id", mcp.Required(), mcp.Description("Id of the deciding actor")),
			mcp.WithString("actor_role", mcp.Description("Role of the deciding actor")),
			mcp.WithString("comment", mcp.Description("Decision comment")),
		),
		s.handleDecideApproval,
	)
}

func toolArgs(request mcp.CallToolRequest) (map[string]any, bool) {
	args, ok := request.Params.Arguments.(map[string]any)
	return args, ok
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func actorFromArgs(args map[string]any) auth.Actor {
	role := auth.Role(stringArg(args, "actor_role"))
	if role == "" {
		role = auth.RoleEmployee
	}
	return auth.Actor{ID: stringArg(args, "actor_id"), Role: role}
}

func (s *Server) handleIngestSignal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	snapshot, ok := args["snapshot"].(map[string]any)
	if !ok || len(snapshot) == 0 {
		return mcp.NewToolResultError("Missing required parameter: snapshot"), nil
	}
	sourceID := stringArg(args, "source_id")
	objectType := stringArg(args, "object_type")
	if sourceID == "" || objectType == "" {
		return mcp.NewToolResultError("Missing required parameter: source_id or object_type"), nil
	}

	confidence, _ := args["confidence"].(float64)
	signal := &models.SourceSignal{
		SourceID:   sourceID,
		ObjectType: models.ObjectType(objectType),
		Snapshot:   snapshot,
		Confidence: confidence,
	}

	result, err := s.recon.IngestSignal(ctx, stringArg(args, "tenant_id"), signal, "mcp")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to ingest signal: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(result)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleFindCandidates(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	snapshot, ok := args["snapshot"].(map[string]any)
	if !ok || len(snapshot) == 0 {
		return mcp.NewToolResultError("Missing required parameter: snapshot"), nil
	}
	objectType := stringArg(args, "object_type")
	if objectType == "" {
		return mcp.NewToolResultError("Missing required parameter: object_type"), nil
	}

	candidates, err := s.recon.FindCandidates(ctx, stringArg(args, "tenant_id"), &models.SourceSignal{
		ObjectType: models.ObjectType(objectType),
		Snapshot:   snapshot,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to find candidates: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(candidates)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleStartRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	definitionID := stringArg(args, "definition_id")
	if definitionID == "" {
		return mcp.NewToolResultError("Missing required parameter: definition_id"), nil
	}
	actor := actorFromArgs(args)
	if actor.ID == "" {
		return mcp.NewToolResultError("Missing required parameter: actor_id"), nil
	}
	inputs, _ := args["inputs"].(map[string]any)

	run, err := s.workflows.StartRun(ctx, definitionID, stringArg(args, "tenant_id"), "", inputs, actor, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start run: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleAdvanceRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	runID := stringArg(args, "run_id")
	if runID == "" {
		return mcp.NewToolResultError("Missing required parameter: run_id"), nil
	}
	actor := actorFromArgs(args)
	if actor.ID == "" {
		return mcp.NewToolResultError("Missing required parameter: actor_id"), nil
	}

	run, err := s.workflows.AdvanceRun(ctx, runID, actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to advance run: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(run)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleDecideApproval(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := toolArgs(request)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	approvalID := stringArg(args, "approval_id")
	decision := stringArg(args, "decision")
	if approvalID == "" || decision == "" {
		return mcp.NewToolResultError("Missing required parameter: approval_id or decision"), nil
	}
	actor := actorFromArgs(args)
	if actor.ID == "" {
		return mcp.NewToolResultError("Missing required parameter: actor_id"), nil
	}

	approval, err := s.workflows.DecideApproval(ctx, approvalID, actor, models.ApprovalDecision(decision), stringArg(args, "comment"))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to decide approval: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(approval)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	// SSE server for /mcp/sse and /mcp/message endpoints.
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls.
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
