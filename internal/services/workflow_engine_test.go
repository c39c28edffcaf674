package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetplane/backend/internal/auth"
	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/pkg/models"
)

var (
	operator = auth.Actor{ID: "op-1", Role: auth.RoleITOperator}
	analyst  = auth.Actor{ID: "sec-1", Role: auth.RoleSecurityAnalyst}
	employee = auth.Actor{ID: "emp-1", Role: auth.RoleEmployee}
)

func newWorkflowTestEngine(resumeFailed bool) (*WorkflowEngine, *repository.MemoryGraphStore) {
	store := repository.NewMemoryGraphStore()
	return NewWorkflowEngine(store, logging.NewLogger(), resumeFailed), store
}

func seedDefinition(t *testing.T, store *repository.MemoryGraphStore, active bool, steps ...models.WorkflowStep) *models.WorkflowDefinition {
	t.Helper()
	def := &models.WorkflowDefinition{
		TenantID: "t1",
		Name:     "Device Remediation",
		Version:  1,
		Playbook: "remediation",
		Active:   active,
		Steps:    steps,
	}
	require.NoError(t, store.CreateDefinition(context.Background(), def))
	return def
}

func automationStep(id string, risk models.RiskLevel, config map[string]any) models.WorkflowStep {
	return models.WorkflowStep{ID: id, Name: "automation " + id, Type: models.StepTypeAutomation, RiskLevel: risk, Config: config}
}

func TestStartRunCompletesLowRiskSteps(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelLow, nil),
		automationStep("s2", models.RiskLevelMedium, map[string]any{"action": "disable_account"}),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", map[string]any{"device_id": "d1"}, operator, "")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, run.CurrentStepIndex)

	logs, err := store.ListActionLogsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, models.ActionStatusSuccess, l.Status)
		assert.Equal(t, run.ID+":"+l.StepID, l.IdempotencyKey)
	}
	assert.Equal(t, "disable_account", logs[1].ActionName)

	events, err := store.ListEvents(ctx, "workflow_run", run.ID)
	require.NoError(t, err)
	var types []string
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{
		models.EventWorkflowStarted,
		models.EventWorkflowStep,
		models.EventWorkflowStep,
		models.EventWorkflowCompleted,
	}, types)
}

func TestStartRunDefinitionErrors(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)

	_, err := engine.StartRun(ctx, "missing", "t1", "", nil, operator, "")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	inactive := seedDefinition(t, store, false, automationStep("s1", models.RiskLevelLow, nil))
	_, err = engine.StartRun(ctx, inactive.ID, "t1", "", nil, operator, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestHighRiskGatingSuspendsRun(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, map[string]any{"approval_type": "security"}),
		automationStep("s2", models.RiskLevelLow, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusWaitingApproval, run.Status)
	assert.Equal(t, 0, run.CurrentStepIndex, "the gated step is not consumed")

	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.ApprovalPending, approvals[0].Decision)
	assert.Equal(t, models.ApprovalTypeSecurity, approvals[0].Type)

	// No automation was dispatched for the gated step.
	logs, err := store.ListActionLogsByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestHighRiskActorExecutesDirectly(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, analyst, "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, approvals)
}

func TestApprovalStepAlwaysSuspends(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		models.WorkflowStep{ID: "s1", Name: "manager sign-off", Type: models.StepTypeApproval, RiskLevel: models.RiskLevelLow,
			Config: map[string]any{"approval_type": "manager"}},
	)

	// Even an actor with the high-risk capability suspends on approval steps.
	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, analyst, "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaitingApproval, run.Status)

	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.ApprovalTypeManager, approvals[0].Type)
}

func TestApprovalTypeDefaultsToIT(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, map[string]any{"approval_type": "finance"}),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)

	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)
	assert.Equal(t, models.ApprovalTypeIT, approvals[0].Type)
}

func TestDecideApprovalResumesRun(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, map[string]any{"approval_type": "security"}),
		automationStep("s2", models.RiskLevelLow, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, approvals, 1)

	approval, err := engine.DecideApproval(ctx, approvals[0].ID, analyst, models.ApprovalApproved, "go ahead")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, approval.Decision)
	assert.Equal(t, analyst.ID, approval.ApproverID)
	require.NotNil(t, approval.DecidedAt)

	resumed, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, resumed.Status)
	assert.Equal(t, 2, resumed.CurrentStepIndex)
}

func TestDecideApprovalRejectionLeavesRunSuspended(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)

	approval, err := engine.DecideApproval(ctx, approvals[0].ID, analyst, models.ApprovalRejected, "not justified")
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, approval.Decision)

	after, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaitingApproval, after.Status)
	assert.Equal(t, 0, after.CurrentStepIndex)
}

func TestDecideApprovalErrors(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	approvalID := approvals[0].ID

	t.Run("permission denied", func(t *testing.T) {
		_, err := engine.DecideApproval(ctx, approvalID, employee, models.ApprovalApproved, "")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown approval", func(t *testing.T) {
		_, err := engine.DecideApproval(ctx, "missing", analyst, models.ApprovalApproved, "")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("invalid decision value", func(t *testing.T) {
		_, err := engine.DecideApproval(ctx, approvalID, analyst, models.ApprovalExpired, "")
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("already decided", func(t *testing.T) {
		_, err := engine.DecideApproval(ctx, approvalID, analyst, models.ApprovalRejected, "")
		require.NoError(t, err)
		_, err = engine.DecideApproval(ctx, approvalID, analyst, models.ApprovalApproved, "")
		assert.ErrorIs(t, err, ErrInvalidState)
	})
}

func TestDecideApprovalConcurrentDecisionsResolveOnce(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelHigh, nil),
		automationStep("s2", models.RiskLevelLow, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	approvalID := approvals[0].ID

	const callers = 8
	errs := make(chan error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.DecideApproval(ctx, approvalID, analyst, models.ApprovalApproved, "")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var decided, turnedAway int
	for err := range errs {
		if err == nil {
			decided++
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidState)
		turnedAway++
	}
	assert.Equal(t, 1, decided, "exactly one decision gates the resumption")
	assert.Equal(t, callers-1, turnedAway)

	final, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, len(def.Steps), final.CurrentStepIndex)

	events, err := store.ListEvents(ctx, "workflow_run", run.ID)
	require.NoError(t, err)
	var decidedEvents, completedEvents int
	for _, ev := range events {
		switch ev.EventType {
		case models.EventApprovalDecided:
			decidedEvents++
		case models.EventWorkflowCompleted:
			completedEvents++
		}
	}
	assert.Equal(t, 1, decidedEvents)
	assert.Equal(t, 1, completedEvents)
}

func TestStepFailureIsolation(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelLow, nil),
		automationStep("s2", models.RiskLevelLow, map[string]any{"forceFailure": true}),
		automationStep("s3", models.RiskLevelLow, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.CurrentStepIndex, "failing step index is not advanced")

	logs, err := store.ListActionLogsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.ActionStatusSuccess, logs[0].Status)
	assert.Equal(t, models.ActionStatusFailed, logs[1].Status)

	items, err := store.ListWorkItemsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.WorkItemTypeException, items[0].Type)
	assert.Equal(t, "s2", items[0].StepID)
	assert.NotEmpty(t, items[0].Description)

	// A failed run is terminal by default.
	_, err = engine.AdvanceRun(ctx, run.ID, operator)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestResumeFailedRunsOption(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(true)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelLow, map[string]any{"forceFailure": "true"}),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	require.Equal(t, models.RunStatusFailed, run.Status)

	// The retry re-attempts the same step; with forceFailure still set
	// it fails again, leaving a second attempt in the action log.
	retried, err := engine.AdvanceRun(ctx, run.ID, operator)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, retried.Status)
	assert.Equal(t, 0, retried.CurrentStepIndex)

	logs, err := store.ListActionLogsByRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestCreateWorkItemStep(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		models.WorkflowStep{ID: "s1", Name: "provision badge", Type: models.StepTypeCreateWorkItem, RiskLevel: models.RiskLevelLow,
			Config: map[string]any{"title": "Provision badge", "assignee_id": "facilities"}},
		models.WorkflowStep{ID: "s2", Name: "notify manager", Type: models.StepTypeNotification, RiskLevel: models.RiskLevelLow},
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)

	items, err := store.ListWorkItemsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.WorkItemTypeTask, items[0].Type)
	assert.Equal(t, "Provision badge", items[0].Title)
	assert.Equal(t, "facilities", items[0].AssigneeID)
}

func TestAdvanceRunMonotonicCursor(t *testing.T) {
	ctx := context.Background()
	engine, store := newWorkflowTestEngine(false)
	def := seedDefinition(t, store, true,
		automationStep("s1", models.RiskLevelLow, nil),
		models.WorkflowStep{ID: "s2", Name: "sign-off", Type: models.StepTypeApproval, RiskLevel: models.RiskLevelLow},
		automationStep("s3", models.RiskLevelLow, nil),
	)

	run, err := engine.StartRun(ctx, def.ID, "t1", "", nil, operator, "")
	require.NoError(t, err)
	assert.Equal(t, 1, run.CurrentStepIndex)
	assert.Equal(t, models.RunStatusWaitingApproval, run.Status)

	// Advancing a suspended run is rejected rather than moving the cursor.
	_, err = engine.AdvanceRun(ctx, run.ID, operator)
	assert.ErrorIs(t, err, ErrInvalidState)

	approvals, err := store.ListApprovalsByWorkItem(ctx, run.ID)
	require.NoError(t, err)
	_, err = engine.DecideApproval(ctx, approvals[0].ID, operator, models.ApprovalApproved, "")
	require.NoError(t, err)

	final, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, final.Status)
	assert.Equal(t, 3, final.CurrentStepIndex)
	assert.LessOrEqual(t, final.CurrentStepIndex, len(def.Steps))
}
