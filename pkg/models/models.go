// Package models defines the domain models for the control plane.
package models

import (
	"time"
)

// ObjectType classifies a canonical entity in the graph.
type ObjectType string

const (
	ObjectTypePerson      ObjectType = "person"
	ObjectTypeDevice      ObjectType = "device"
	ObjectTypeAccount     ObjectType = "account"
	ObjectTypeApplication ObjectType = "application"
	ObjectTypeGroup       ObjectType = "group"
)

// RelationshipType is the closed set of edge types between entities.
type RelationshipType string

const (
	RelationshipAssignedTo RelationshipType = "assigned_to"
	RelationshipOwnedBy    RelationshipType = "owned_by"
	RelationshipMemberOf   RelationshipType = "member_of"
	RelationshipManagedBy  RelationshipType = "managed_by"
	RelationshipAccessTo   RelationshipType = "access_to"
)

// Entity is the canonical source-of-truth record for a real-world
// asset/person/account after reconciliation. Fields is an open,
// schema-less map of JSON-shaped values; every field ever written by a
// signal carries at least one ProvenanceEntry.
type Entity struct {
	ID          string                       `json:"id" db:"id"`
	TenantID    string                       `json:"tenant_id" db:"tenant_id"`
	WorkspaceID string                       `json:"workspace_id" db:"workspace_id"`
	Type        ObjectType                   `json:"type" db:"type"`
	Fields      map[string]any               `json:"fields" db:"fields"`
	Provenance  map[string][]ProvenanceEntry `json:"provenance" db:"provenance"`
	CreatedAt   time.Time                    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time                    `json:"updated_at" db:"updated_at"`
}

// ProvenanceEntry records which source asserted a field value and with
// what confidence. Entries are appended newest-last and never rewritten.
type ProvenanceEntry struct {
	Field          string     `json:"field"`
	SourceID       string     `json:"source_id"`
	SignalID       string     `json:"signal_id"`
	ObservedAt     time.Time  `json:"observed_at"`
	Confidence     float64    `json:"confidence"`
	OverriddenBy   string     `json:"overridden_by,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	OverrideUntil  *time.Time `json:"override_until,omitempty"`
}

// Relationship is a directed edge between two entities. Duplicate edges
// of the same type/direction/endpoints are allowed; dedup is up to the
// caller.
type Relationship struct {
	ID           string           `json:"id" db:"id"`
	Type         RelationshipType `json:"type" db:"type"`
	FromObjectID string           `json:"from_object_id" db:"from_object_id"`
	ToObjectID   string           `json:"to_object_id" db:"to_object_id"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	CreatedBy    string           `json:"created_by" db:"created_by"`
}

// SourceSignal is a snapshot of attributes about an entity as reported
// by one external system of record at one point in time. It is persisted
// for audit once ingested.
type SourceSignal struct {
	ID         string         `json:"id" db:"id"`
	SourceID   string         `json:"source_id" db:"source_id"`
	ObjectType ObjectType     `json:"object_type" db:"object_type"`
	ExternalID string         `json:"external_id" db:"external_id"`
	Snapshot   map[string]any `json:"snapshot" db:"snapshot"`
	ObservedAt time.Time      `json:"observed_at" db:"observed_at"`
	Confidence float64        `json:"confidence" db:"confidence"`
}

// Candidate is one possible reconciliation target for a signal.
type Candidate struct {
	EntityID          string   `json:"entity_id"`
	Confidence        float64  `json:"confidence"`
	MatchReason       string   `json:"match_reason"`
	ConflictingFields []string `json:"conflicting_fields,omitempty"`
}

// WorkItemType classifies a work item.
type WorkItemType string

const (
	WorkItemTypeTask        WorkItemType = "task"
	WorkItemTypeException   WorkItemType = "exception"
	WorkItemTypeOnboarding  WorkItemType = "onboarding"
	WorkItemTypeOffboarding WorkItemType = "offboarding"
)

// WorkItemStatus is the lifecycle state of a work item.
type WorkItemStatus string

const (
	WorkItemStatusOpen       WorkItemStatus = "open"
	WorkItemStatusInProgress WorkItemStatus = "in_progress"
	WorkItemStatusDone       WorkItemStatus = "done"
	WorkItemStatusCancelled  WorkItemStatus = "cancelled"
)

// WorkItem is a unit of human-facing work. Exception work items are the
// durable record of a failed workflow step; task work items come from
// create-work-item steps.
type WorkItem struct {
	ID            string         `json:"id" db:"id"`
	TenantID      string         `json:"tenant_id" db:"tenant_id"`
	Type          WorkItemType   `json:"type" db:"type"`
	Status        WorkItemStatus `json:"status" db:"status"`
	Title         string         `json:"title" db:"title"`
	Description   string         `json:"description,omitempty" db:"description"`
	WorkflowRunID string         `json:"workflow_run_id,omitempty" db:"workflow_run_id"`
	StepID        string         `json:"step_id,omitempty" db:"step_id"`
	AssigneeID    string         `json:"assignee_id,omitempty" db:"assignee_id"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// ApprovalType classifies which queue an approval lands in.
type ApprovalType string

const (
	ApprovalTypeIT       ApprovalType = "it"
	ApprovalTypeSecurity ApprovalType = "security"
	ApprovalTypeHR       ApprovalType = "hr"
	ApprovalTypeManager  ApprovalType = "manager"
)

// ApprovalDecision is the state of an approval record.
type ApprovalDecision string

const (
	ApprovalPending  ApprovalDecision = "pending"
	ApprovalApproved ApprovalDecision = "approved"
	ApprovalRejected ApprovalDecision = "rejected"
	ApprovalExpired  ApprovalDecision = "expired"
)

// ApprovalRecord gates exactly one suspended workflow run resumption.
// WorkItemID stores the id of the owning run.
type ApprovalRecord struct {
	ID         string           `json:"id" db:"id"`
	WorkItemID string           `json:"work_item_id" db:"work_item_id"`
	Type       ApprovalType     `json:"type" db:"type"`
	ApproverID string           `json:"approver_id,omitempty" db:"approver_id"`
	Decision   ApprovalDecision `json:"decision" db:"decision"`
	Comment    string           `json:"comment,omitempty" db:"comment"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	DecidedAt  *time.Time       `json:"decided_at,omitempty" db:"decided_at"`
}

// ActionStatus is the outcome of one automation dispatch attempt.
type ActionStatus string

const (
	ActionStatusSuccess ActionStatus = "success"
	ActionStatusFailed  ActionStatus = "failed"
)

// ActionExecutionLog is the append-only audit record of every automation
// dispatch attempt, success or failure.
type ActionExecutionLog struct {
	ID             string         `json:"id" db:"id"`
	WorkflowRunID  string         `json:"workflow_run_id" db:"workflow_run_id"`
	StepID         string         `json:"step_id" db:"step_id"`
	ActionName     string         `json:"action_name" db:"action_name"`
	RiskLevel      RiskLevel      `json:"risk_level" db:"risk_level"`
	IdempotencyKey string         `json:"idempotency_key" db:"idempotency_key"`
	TargetSystem   string         `json:"target_system,omitempty" db:"target_system"`
	Status         ActionStatus   `json:"status" db:"status"`
	Input          map[string]any `json:"input,omitempty" db:"input"`
	Output         map[string]any `json:"output,omitempty" db:"output"`
	CorrelationID  string         `json:"correlation_id" db:"correlation_id"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Timeline event types emitted by the core.
const (
	EventObjectCreated     = "object.created"
	EventObjectUpdated     = "object.updated"
	EventWorkflowStarted   = "workflow.started"
	EventWorkflowStep      = "workflow.step.executed"
	EventWorkflowCompleted = "workflow.completed"
	EventApprovalRequested = "approval.requested"
	EventApprovalDecided   = "approval.decided"
	EventExceptionCreated  = "exception.created"
)

// TimelineEvent is an append-only, immutable audit log entry keyed by
// (entity type, entity id).
type TimelineEvent struct {
	ID         string         `json:"id" db:"id"`
	EntityType string         `json:"entity_type" db:"entity_type"`
	EntityID   string         `json:"entity_id" db:"entity_id"`
	EventType  string         `json:"event_type" db:"event_type"`
	ActorID    string         `json:"actor_id,omitempty" db:"actor_id"`
	Payload    map[string]any `json:"payload,omitempty" db:"payload"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// HealthStatus represents service health.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// ProblemDetails represents RFC 7807 Problem Details.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
