package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"assetplane/backend/internal/auth"
	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/pkg/models"
)

// WorkflowEngine advances workflow runs through their definition's
// ordered steps, gating high-risk and approval steps behind pending
// approvals and recovering step failures into exception work items.
// All advancement is caller-driven; a suspended run sits in
// waiting-approval until DecideApproval resumes it.
type WorkflowEngine struct {
	store   repository.GraphStore
	logger  *logging.Logger
	locks   *repository.KeyedMutex
	metrics *engineMetrics

	// resumeFailed lets AdvanceRun retry the failing step of a failed
	// run in place. Off by default: failed is terminal and recovery
	// means a new run.
	resumeFailed bool
}

// NewWorkflowEngine creates a new WorkflowEngine.
func NewWorkflowEngine(store repository.GraphStore, logger *logging.Logger, resumeFailedRuns bool) *WorkflowEngine {
	return &WorkflowEngine{
		store:        store,
		logger:       logger,
		locks:        repository.NewKeyedMutex(),
		metrics:      newEngineMetrics(),
		resumeFailed: resumeFailedRuns,
	}
}

// StartRun creates a run for an active definition and immediately
// advances it as far as it will go.
func (e *WorkflowEngine) StartRun(ctx context.Context, definitionID, tenantID, workspaceID string, inputs map[string]any, actor auth.Actor, linkedWorkItemID string) (*models.WorkflowRun, error) {
	def, err := e.store.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("workflow definition %s: %w", definitionID, err)
	}
	if !def.Active {
		return nil, fmt.Errorf("workflow definition %s is not active: %w", definitionID, ErrInvalidState)
	}

	now := time.Now().UTC()
	run := &models.WorkflowRun{
		TenantID:         tenantID,
		WorkspaceID:      workspaceID,
		DefinitionID:     def.ID,
		Status:           models.RunStatusRunning,
		CurrentStepIndex: 0,
		Inputs:           inputs,
		LinkedWorkItemID: linkedWorkItemID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := e.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineRun,
		EntityID:   run.ID,
		EventType:  models.EventWorkflowStarted,
		ActorID:    actor.ID,
		Payload:    map[string]any{"definition_id": def.ID, "definition_name": def.Name},
	}); err != nil {
		return nil, err
	}

	e.metrics.runsStarted.Add(ctx, 1)
	e.logger.Info("workflow run started",
		"run_id", run.ID, "definition_id", def.ID, "actor", actor.ID)
	return e.AdvanceRun(ctx, run.ID, actor)
}

// AdvanceRun executes steps from the run's cursor until the run
// completes, suspends for an approval, or a step fails. Calls on the
// same run id are serialized.
func (e *WorkflowEngine) AdvanceRun(ctx context.Context, runID string, actor auth.Actor) (*models.WorkflowRun, error) {
	unlock := e.locks.Lock(runID)
	defer unlock()
	return e.advanceLocked(ctx, runID, actor)
}

func (e *WorkflowEngine) advanceLocked(ctx context.Context, runID string, actor auth.Actor) (*models.WorkflowRun, error) {
	run, err := e.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("workflow run %s: %w", runID, err)
	}

	switch {
	case run.Status == models.RunStatusWaitingApproval:
		return nil, fmt.Errorf("run %s is waiting for an approval decision: %w", runID, ErrInvalidState)
	case run.Status == models.RunStatusFailed && e.resumeFailed:
		run.Status = models.RunStatusRunning
		e.logger.Warn("retrying failed run in place", "run_id", run.ID, "step_index", run.CurrentStepIndex)
	case run.Status.Terminal():
		return nil, fmt.Errorf("run %s is %s: %w", runID, run.Status, ErrInvalidState)
	}

	def, err := e.store.GetDefinition(ctx, run.DefinitionID)
	if err != nil {
		return nil, fmt.Errorf("workflow definition %s: %w", run.DefinitionID, err)
	}

	for run.CurrentStepIndex < len(def.Steps) {
		step := def.Steps[run.CurrentStepIndex]

		if e.requiresApproval(step, actor) {
			return e.suspendForApproval(ctx, run, step, actor)
		}

		if execErr := e.executeStep(ctx, run, step); execErr != nil {
			return e.failRun(ctx, run, step, actor, execErr)
		}

		// The step is only consumed once its side effects landed.
		run.CurrentStepIndex++
		run.UpdatedAt = time.Now().UTC()
		if err := e.store.UpdateRun(ctx, run); err != nil {
			return nil, err
		}
		if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
			EntityType: timelineRun,
			EntityID:   run.ID,
			EventType:  models.EventWorkflowStep,
			ActorID:    actor.ID,
			Payload:    map[string]any{"step_id": step.ID, "step_name": step.Name, "step_index": run.CurrentStepIndex - 1},
		}); err != nil {
			return nil, err
		}
		e.metrics.stepsExecuted.Add(ctx, 1)
	}

	run.Status = models.RunStatusCompleted
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineRun,
		EntityID:   run.ID,
		EventType:  models.EventWorkflowCompleted,
		ActorID:    actor.ID,
	}); err != nil {
		return nil, err
	}

	e.metrics.runsCompleted.Add(ctx, 1)
	e.logger.Info("workflow run completed", "run_id", run.ID)
	return run, nil
}

// requiresApproval reports whether the step must suspend for a human
// decision: every approval-typed step, and any high-risk step when the
// actor lacks the high-risk automation capability.
func (e *WorkflowEngine) requiresApproval(step models.WorkflowStep, actor auth.Actor) bool {
	if step.Type == models.StepTypeApproval {
		return true
	}
	return step.RiskLevel == models.RiskLevelHigh && !auth.Can(actor.Role, auth.CapabilityHighRiskAutomation)
}

func (e *WorkflowEngine) suspendForApproval(ctx context.Context, run *models.WorkflowRun, step models.WorkflowStep, actor auth.Actor) (*models.WorkflowRun, error) {
	run.Status = models.RunStatusWaitingApproval
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	approval := &models.ApprovalRecord{
		WorkItemID: run.ID,
		Type:       approvalTypeFromConfig(step.Config),
		Decision:   models.ApprovalPending,
		CreatedAt:  time.Now().UTC(),
	}
	if err := e.store.CreateApproval(ctx, approval); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineRun,
		EntityID:   run.ID,
		EventType:  models.EventApprovalRequested,
		ActorID:    actor.ID,
		Payload:    map[string]any{"approval_id": approval.ID, "approval_type": approval.Type, "step_id": step.ID},
	}); err != nil {
		return nil, err
	}

	e.logger.Info("run suspended for approval",
		"run_id", run.ID, "approval_id", approval.ID, "step_id", step.ID, "type", approval.Type)
	return run, nil
}

// failRun recovers a step failure locally: the run degrades to failed
// and an exception work item records what happened. The failing step's
// index is not advanced.
func (e *WorkflowEngine) failRun(ctx context.Context, run *models.WorkflowRun, step models.WorkflowStep, actor auth.Actor, execErr error) (*models.WorkflowRun, error) {
	run.Status = models.RunStatusFailed
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	item := &models.WorkItem{
		TenantID:      run.TenantID,
		Type:          models.WorkItemTypeException,
		Status:        models.WorkItemStatusOpen,
		Title:         fmt.Sprintf("Step %q failed", step.Name),
		Description:   execErr.Error(),
		WorkflowRunID: run.ID,
		StepID:        step.ID,
	}
	if err := e.store.CreateWorkItem(ctx, item); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineRun,
		EntityID:   run.ID,
		EventType:  models.EventExceptionCreated,
		ActorID:    actor.ID,
		Payload:    map[string]any{"work_item_id": item.ID, "step_id": step.ID, "error": execErr.Error()},
	}); err != nil {
		return nil, err
	}

	e.metrics.runsFailed.Add(ctx, 1)
	e.logger.Error("workflow step failed",
		"run_id", run.ID, "step_id", step.ID, "error", execErr.Error())
	return run, nil
}

// executeStep dispatches one step's side effects. Returning an error
// here marks the run failed; approval steps never reach this point.
func (e *WorkflowEngine) executeStep(ctx context.Context, run *models.WorkflowRun, step models.WorkflowStep) error {
	switch step.Type {
	case models.StepTypeAutomation:
		return e.dispatchAutomation(ctx, run, step)
	case models.StepTypeCreateWorkItem:
		return e.store.CreateWorkItem(ctx, &models.WorkItem{
			TenantID:      run.TenantID,
			Type:          models.WorkItemTypeTask,
			Status:        models.WorkItemStatusOpen,
			Title:         configString(step.Config, "title", step.Name),
			Description:   configString(step.Config, "description", ""),
			AssigneeID:    configString(step.Config, "assignee_id", ""),
			WorkflowRunID: run.ID,
			StepID:        step.ID,
		})
	case models.StepTypeCondition, models.StepTypeWait, models.StepTypeNotification,
		models.StepTypeUpdateObject, models.StepTypeHumanTask:
		// Pass-through unless a target system integration is supplied.
		return nil
	case models.StepTypeApproval:
		return nil
	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
}

// dispatchAutomation records an ActionExecutionLog for the attempt,
// success or failure. config.forceFailure is the fault-injection path
// kept for deterministic failure testing.
func (e *WorkflowEngine) dispatchAutomation(ctx context.Context, run *models.WorkflowRun, step models.WorkflowStep) error {
	entry := &models.ActionExecutionLog{
		WorkflowRunID:  run.ID,
		StepID:         step.ID,
		ActionName:     configString(step.Config, "action", step.Name),
		RiskLevel:      step.RiskLevel,
		IdempotencyKey: run.ID + ":" + step.ID,
		TargetSystem:   configString(step.Config, "target_system", ""),
		Input:          step.Config,
		CorrelationID:  uuid.New().String(),
	}

	if truthy(step.Config["forceFailure"]) {
		entry.Status = models.ActionStatusFailed
		if err := e.store.AppendActionLog(ctx, entry); err != nil {
			return err
		}
		return fmt.Errorf("automation %q failed", entry.ActionName)
	}

	entry.Status = models.ActionStatusSuccess
	return e.store.AppendActionLog(ctx, entry)
}

// DecideApproval records the decision on a pending approval. Approving
// resumes the owning run: the gated step counts as consumed, the cursor
// moves by one and execution continues synchronously. Rejection leaves
// the run suspended as a manual-intervention point.
func (e *WorkflowEngine) DecideApproval(ctx context.Context, approvalID string, actor auth.Actor, decision models.ApprovalDecision, comment string) (*models.ApprovalRecord, error) {
	if !auth.Can(actor.Role, auth.CapabilityApprovalDecide) {
		return nil, fmt.Errorf("actor %s cannot decide approvals: %w", actor.ID, ErrPermissionDenied)
	}
	if decision != models.ApprovalApproved && decision != models.ApprovalRejected {
		return nil, fmt.Errorf("decision %q: %w", decision, ErrInvalidState)
	}

	approval, err := e.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("approval %s: %w", approvalID, err)
	}

	unlock := e.locks.Lock(approval.WorkItemID)
	defer unlock()

	// Re-read under the run lock: a concurrent decision may have landed
	// between the first read and lock acquisition, and only one decision
	// may ever gate the resumption.
	approval, err = e.store.GetApproval(ctx, approvalID)
	if err != nil {
		return nil, fmt.Errorf("approval %s: %w", approvalID, err)
	}
	if approval.Decision != models.ApprovalPending {
		return nil, fmt.Errorf("approval %s already %s: %w", approvalID, approval.Decision, ErrInvalidState)
	}

	now := time.Now().UTC()
	approval.Decision = decision
	approval.ApproverID = actor.ID
	approval.Comment = comment
	approval.DecidedAt = &now
	if err := e.store.UpdateApproval(ctx, approval); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineRun,
		EntityID:   approval.WorkItemID,
		EventType:  models.EventApprovalDecided,
		ActorID:    actor.ID,
		Payload:    map[string]any{"approval_id": approval.ID, "decision": decision},
	}); err != nil {
		return nil, err
	}
	e.metrics.approvalsDecided.Add(ctx, 1)

	if decision == models.ApprovalRejected {
		e.logger.Info("approval rejected; run stays suspended",
			"approval_id", approval.ID, "run_id", approval.WorkItemID)
		return approval, nil
	}

	run, err := e.store.GetRun(ctx, approval.WorkItemID)
	if err != nil {
		return nil, fmt.Errorf("workflow run %s: %w", approval.WorkItemID, err)
	}
	run.Status = models.RunStatusRunning
	run.CurrentStepIndex++
	run.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateRun(ctx, run); err != nil {
		return nil, err
	}

	if _, err := e.advanceLocked(ctx, run.ID, actor); err != nil {
		return nil, err
	}
	return approval, nil
}

func approvalTypeFromConfig(config map[string]any) models.ApprovalType {
	raw, _ := config["approval_type"].(string)
	switch t := models.ApprovalType(strings.ToLower(strings.TrimSpace(raw))); t {
	case models.ApprovalTypeIT, models.ApprovalTypeSecurity, models.ApprovalTypeHR, models.ApprovalTypeManager:
		return t
	default:
		return models.ApprovalTypeIT
	}
}

func configString(config map[string]any, key, fallback string) string {
	if s, ok := config[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s == "true" || s == "1" || s == "yes"
	case float64:
		return val != 0
	case int:
		return val != 0
	default:
		return false
	}
}
