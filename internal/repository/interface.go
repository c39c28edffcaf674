// Package repository provides the graph store the engines operate on:
// canonical entities, relationships, signals, work items, approvals,
// workflow definitions/runs, action logs, and the append-only timeline.
package repository

import (
	"context"
	"errors"

	"assetplane/backend/pkg/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// GraphStore is the persistence abstraction shared by the workflow and
// reconciliation engines. Implementations assign a UUID to any record
// submitted without an id. Engines are responsible for per-id
// serialization; stores only guarantee that individual calls are atomic.
type GraphStore interface {
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error)

	CreateEntity(ctx context.Context, entity *models.Entity) error
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	UpdateEntity(ctx context.Context, entity *models.Entity) error
	ListEntitiesByType(ctx context.Context, tenantID string, objectType models.ObjectType) ([]*models.Entity, error)

	CreateRelationship(ctx context.Context, rel *models.Relationship) error
	ListRelationshipsByObject(ctx context.Context, objectID string) ([]*models.Relationship, error)

	SaveSignal(ctx context.Context, signal *models.SourceSignal) error

	CreateWorkItem(ctx context.Context, item *models.WorkItem) error
	GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error)
	UpdateWorkItem(ctx context.Context, item *models.WorkItem) error
	ListWorkItemsByRun(ctx context.Context, runID string) ([]*models.WorkItem, error)

	CreateApproval(ctx context.Context, approval *models.ApprovalRecord) error
	GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error)
	UpdateApproval(ctx context.Context, approval *models.ApprovalRecord) error
	ListApprovalsByWorkItem(ctx context.Context, workItemID string) ([]*models.ApprovalRecord, error)

	CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error
	GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	ListDefinitions(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error)

	CreateRun(ctx context.Context, run *models.WorkflowRun) error
	GetRun(ctx context.Context, id string) (*models.WorkflowRun, error)
	UpdateRun(ctx context.Context, run *models.WorkflowRun) error

	AppendActionLog(ctx context.Context, log *models.ActionExecutionLog) error
	ListActionLogsByRun(ctx context.Context, runID string) ([]*models.ActionExecutionLog, error)

	AppendEvent(ctx context.Context, event *models.TimelineEvent) (*models.TimelineEvent, error)
	ListEvents(ctx context.Context, entityType, entityID string) ([]*models.TimelineEvent, error)
}
