package models

import (
	"time"
)

// StepType is the closed set of workflow step kinds. Dispatch over step
// types is always an exhaustive switch.
type StepType string

const (
	StepTypeHumanTask      StepType = "human-task"
	StepTypeApproval       StepType = "approval"
	StepTypeAutomation     StepType = "automation"
	StepTypeCondition      StepType = "condition"
	StepTypeWait           StepType = "wait"
	StepTypeNotification   StepType = "notification"
	StepTypeUpdateObject   StepType = "update-object"
	StepTypeCreateWorkItem StepType = "create-work-item"
)

// RiskLevel gates whether a step may auto-execute.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// WorkflowStep is one ordered step of a workflow definition.
type WorkflowStep struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Type      StepType       `json:"type"`
	RiskLevel RiskLevel      `json:"risk_level"`
	Config    map[string]any `json:"config,omitempty"`
}

// WorkflowDefinition is an ordered list of steps for a playbook.
// Immutable once referenced by a run, except for the active flag.
type WorkflowDefinition struct {
	ID          string         `json:"id" db:"id"`
	TenantID    string         `json:"tenant_id" db:"tenant_id"`
	Name        string         `json:"name" db:"name"`
	Version     int            `json:"version" db:"version"`
	Playbook    string         `json:"playbook" db:"playbook"`
	Trigger     string         `json:"trigger" db:"trigger"`
	Steps       []WorkflowStep `json:"steps" db:"steps"`
	Active      bool           `json:"active" db:"active"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty" db:"published_at"`
}

// RunStatus is the lifecycle state of a workflow run. Completed and
// failed are terminal; waiting-approval is suspended but resumable.
type RunStatus string

const (
	RunStatusPending         RunStatus = "pending"
	RunStatusRunning         RunStatus = "running"
	RunStatusWaitingApproval RunStatus = "waiting-approval"
	RunStatusCompleted       RunStatus = "completed"
	RunStatusFailed          RunStatus = "failed"
)

// WorkflowRun is one executing instance of a workflow definition. The
// step cursor only ever moves forward.
type WorkflowRun struct {
	ID               string         `json:"id" db:"id"`
	TenantID         string         `json:"tenant_id" db:"tenant_id"`
	WorkspaceID      string         `json:"workspace_id,omitempty" db:"workspace_id"`
	DefinitionID     string         `json:"definition_id" db:"definition_id"`
	Status           RunStatus      `json:"status" db:"status"`
	CurrentStepIndex int            `json:"current_step_index" db:"current_step_index"`
	Inputs           map[string]any `json:"inputs,omitempty" db:"inputs"`
	LinkedWorkItemID string         `json:"linked_work_item_id,omitempty" db:"linked_work_item_id"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

// Terminal reports whether the run can never advance again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}
