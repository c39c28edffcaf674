package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetplane/backend/pkg/models"
)

// Schema is the DDL for the Postgres-backed graph store. Applied by
// EnsureSchema; also used by the seed command and the integration test.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	domain TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS entities (
	id UUID PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	workspace_id TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	fields JSONB NOT NULL DEFAULT '{}',
	provenance JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS entities_tenant_type_idx ON entities (tenant_id, type);
CREATE TABLE IF NOT EXISTS relationships (
	id UUID PRIMARY KEY,
	type TEXT NOT NULL,
	from_object_id TEXT NOT NULL,
	to_object_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	created_by TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS signals (
	id UUID PRIMARY KEY,
	source_id TEXT NOT NULL,
	object_type TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	snapshot JSONB NOT NULL DEFAULT '{}',
	observed_at TIMESTAMPTZ NOT NULL,
	confidence DOUBLE PRECISION NOT NULL
);
CREATE TABLE IF NOT EXISTS work_items (
	id UUID PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	type TEXT NOT NULL,
	status TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	workflow_run_id TEXT NOT NULL DEFAULT '',
	step_id TEXT NOT NULL DEFAULT '',
	assignee_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS approvals (
	id UUID PRIMARY KEY,
	work_item_id TEXT NOT NULL,
	type TEXT NOT NULL,
	approver_id TEXT NOT NULL DEFAULT '',
	decision TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	decided_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS workflow_definitions (
	id UUID PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL,
	version INT NOT NULL,
	playbook TEXT NOT NULL DEFAULT '',
	trigger TEXT NOT NULL DEFAULT '',
	steps JSONB NOT NULL DEFAULT '[]',
	active BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	published_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS workflow_runs (
	id UUID PRIMARY KEY,
	tenant_id TEXT NOT NULL DEFAULT '',
	workspace_id TEXT NOT NULL DEFAULT '',
	definition_id TEXT NOT NULL,
	status TEXT NOT NULL,
	current_step_index INT NOT NULL,
	inputs JSONB NOT NULL DEFAULT '{}',
	linked_work_item_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS action_logs (
	id UUID PRIMARY KEY,
	workflow_run_id TEXT NOT NULL,
	step_id TEXT NOT NULL,
	action_name TEXT NOT NULL,
	risk_level TEXT NOT NULL,
	idempotency_key TEXT NOT NULL,
	target_system TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	input JSONB NOT NULL DEFAULT '{}',
	output JSONB NOT NULL DEFAULT '{}',
	correlation_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS timeline_events (
	id UUID PRIMARY KEY,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	actor_id TEXT NOT NULL DEFAULT '',
	payload JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS timeline_entity_idx ON timeline_events (entity_type, entity_id, created_at);
`

// PostgresGraphStore is a PostgreSQL implementation of the GraphStore
// interface. Dynamic maps are stored as JSONB.
type PostgresGraphStore struct {
	db *pgxpool.Pool
}

// NewPostgresGraphStore creates a new PostgresGraphStore.
func NewPostgresGraphStore(db *pgxpool.Pool) *PostgresGraphStore {
	return &PostgresGraphStore{db: db}
}

// EnsureSchema applies the store DDL. Idempotent.
func (s *PostgresGraphStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mustJSON(v any) []byte {
	if v == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func (s *PostgresGraphStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	_, err := s.db.Exec(ctx,
		"INSERT INTO tenants (id, name, domain, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		tenant.ID, tenant.Name, tenant.Domain, tenant.CreatedAt, tenant.UpdatedAt)
	return err
}

func (s *PostgresGraphStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRow(ctx,
		"SELECT id, name, domain, created_at, updated_at FROM tenants WHERE domain = $1", domain).
		Scan(&t.ID, &t.Name, &t.Domain, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *PostgresGraphStore) CreateEntity(ctx context.Context, entity *models.Entity) error {
	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO entities (id, tenant_id, workspace_id, type, fields, provenance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entity.ID, entity.TenantID, entity.WorkspaceID, entity.Type,
		mustJSON(entity.Fields), mustJSON(entity.Provenance), entity.CreatedAt, entity.UpdatedAt)
	return err
}

func scanEntity(row pgx.Row) (*models.Entity, error) {
	var e models.Entity
	var fields, provenance []byte
	err := row.Scan(&e.ID, &e.TenantID, &e.WorkspaceID, &e.Type, &fields, &provenance, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(fields, &e.Fields); err != nil {
		return nil, fmt.Errorf("decode entity fields: %w", err)
	}
	if err := json.Unmarshal(provenance, &e.Provenance); err != nil {
		return nil, fmt.Errorf("decode entity provenance: %w", err)
	}
	return &e, nil
}

const entityColumns = "id, tenant_id, workspace_id, type, fields, provenance, created_at, updated_at"

func (s *PostgresGraphStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return scanEntity(s.db.QueryRow(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = $1", id))
}

func (s *PostgresGraphStore) UpdateEntity(ctx context.Context, entity *models.Entity) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE entities SET fields = $1, provenance = $2, updated_at = $3 WHERE id = $4`,
		mustJSON(entity.Fields), mustJSON(entity.Provenance), entity.UpdatedAt, entity.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresGraphStore) ListEntitiesByType(ctx context.Context, tenantID string, objectType models.ObjectType) ([]*models.Entity, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE ($1 = '' OR tenant_id = $1) AND type = $2 ORDER BY id",
		tenantID, objectType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	if rel.ID == "" {
		rel.ID = uuid.New().String()
	}
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO relationships (id, type, from_object_id, to_object_id, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rel.ID, rel.Type, rel.FromObjectID, rel.ToObjectID, rel.CreatedAt, rel.CreatedBy)
	return err
}

func (s *PostgresGraphStore) ListRelationshipsByObject(ctx context.Context, objectID string) ([]*models.Relationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, type, from_object_id, to_object_id, created_at, created_by
		 FROM relationships WHERE from_object_id = $1 OR to_object_id = $1 ORDER BY created_at`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Relationship
	for rows.Next() {
		var r models.Relationship
		if err := rows.Scan(&r.ID, &r.Type, &r.FromObjectID, &r.ToObjectID, &r.CreatedAt, &r.CreatedBy); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) SaveSignal(ctx context.Context, signal *models.SourceSignal) error {
	if signal.ID == "" {
		signal.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO signals (id, source_id, object_type, external_id, snapshot, observed_at, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		signal.ID, signal.SourceID, signal.ObjectType, signal.ExternalID,
		mustJSON(signal.Snapshot), signal.ObservedAt, signal.Confidence)
	return err
}

func (s *PostgresGraphStore) CreateWorkItem(ctx context.Context, item *models.WorkItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	_, err := s.db.Exec(ctx,
		`INSERT INTO work_items (id, tenant_id, type, status, title, description, workflow_run_id, step_id, assignee_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.TenantID, item.Type, item.Status, item.Title, item.Description,
		item.WorkflowRunID, item.StepID, item.AssigneeID, item.CreatedAt, item.UpdatedAt)
	return err
}

const workItemColumns = "id, tenant_id, type, status, title, description, workflow_run_id, step_id, assignee_id, created_at, updated_at"

func scanWorkItem(row pgx.Row) (*models.WorkItem, error) {
	var w models.WorkItem
	err := row.Scan(&w.ID, &w.TenantID, &w.Type, &w.Status, &w.Title, &w.Description,
		&w.WorkflowRunID, &w.StepID, &w.AssigneeID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

func (s *PostgresGraphStore) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	return scanWorkItem(s.db.QueryRow(ctx, "SELECT "+workItemColumns+" FROM work_items WHERE id = $1", id))
}

func (s *PostgresGraphStore) UpdateWorkItem(ctx context.Context, item *models.WorkItem) error {
	item.UpdatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx,
		`UPDATE work_items SET status = $1, title = $2, description = $3, assignee_id = $4, updated_at = $5 WHERE id = $6`,
		item.Status, item.Title, item.Description, item.AssigneeID, item.UpdatedAt, item.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresGraphStore) ListWorkItemsByRun(ctx context.Context, runID string) ([]*models.WorkItem, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+workItemColumns+" FROM work_items WHERE workflow_run_id = $1 ORDER BY created_at", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WorkItem
	for rows.Next() {
		w, err := scanWorkItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) CreateApproval(ctx context.Context, approval *models.ApprovalRecord) error {
	if approval.ID == "" {
		approval.ID = uuid.New().String()
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO approvals (id, work_item_id, type, approver_id, decision, comment, created_at, decided_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		approval.ID, approval.WorkItemID, approval.Type, approval.ApproverID,
		approval.Decision, approval.Comment, approval.CreatedAt, approval.DecidedAt)
	return err
}

const approvalColumns = "id, work_item_id, type, approver_id, decision, comment, created_at, decided_at"

func scanApproval(row pgx.Row) (*models.ApprovalRecord, error) {
	var a models.ApprovalRecord
	err := row.Scan(&a.ID, &a.WorkItemID, &a.Type, &a.ApproverID, &a.Decision, &a.Comment, &a.CreatedAt, &a.DecidedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (s *PostgresGraphStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	return scanApproval(s.db.QueryRow(ctx, "SELECT "+approvalColumns+" FROM approvals WHERE id = $1", id))
}

func (s *PostgresGraphStore) UpdateApproval(ctx context.Context, approval *models.ApprovalRecord) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE approvals SET approver_id = $1, decision = $2, comment = $3, decided_at = $4 WHERE id = $5`,
		approval.ApproverID, approval.Decision, approval.Comment, approval.DecidedAt, approval.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresGraphStore) ListApprovalsByWorkItem(ctx context.Context, workItemID string) ([]*models.ApprovalRecord, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+approvalColumns+" FROM approvals WHERE work_item_id = $1 ORDER BY created_at", workItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ApprovalRecord
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	if def.ID == "" {
		def.ID = uuid.New().String()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	steps, err := json.Marshal(def.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO workflow_definitions (id, tenant_id, name, version, playbook, trigger, steps, active, created_at, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		def.ID, def.TenantID, def.Name, def.Version, def.Playbook, def.Trigger,
		steps, def.Active, def.CreatedAt, def.PublishedAt)
	return err
}

const definitionColumns = "id, tenant_id, name, version, playbook, trigger, steps, active, created_at, published_at"

func scanDefinition(row pgx.Row) (*models.WorkflowDefinition, error) {
	var d models.WorkflowDefinition
	var steps []byte
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.Version, &d.Playbook, &d.Trigger,
		&steps, &d.Active, &d.CreatedAt, &d.PublishedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(steps, &d.Steps); err != nil {
		return nil, fmt.Errorf("decode definition steps: %w", err)
	}
	return &d, nil
}

func (s *PostgresGraphStore) GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return scanDefinition(s.db.QueryRow(ctx, "SELECT "+definitionColumns+" FROM workflow_definitions WHERE id = $1", id))
}

func (s *PostgresGraphStore) ListDefinitions(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+definitionColumns+" FROM workflow_definitions WHERE $1 = '' OR tenant_id = $1 ORDER BY name", tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.WorkflowDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO workflow_runs (id, tenant_id, workspace_id, definition_id, status, current_step_index, inputs, linked_work_item_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.TenantID, run.WorkspaceID, run.DefinitionID, run.Status, run.CurrentStepIndex,
		mustJSON(run.Inputs), run.LinkedWorkItemID, run.CreatedAt, run.UpdatedAt)
	return err
}

func (s *PostgresGraphStore) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	var r models.WorkflowRun
	var inputs []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, workspace_id, definition_id, status, current_step_index, inputs, linked_work_item_id, created_at, updated_at
		 FROM workflow_runs WHERE id = $1`, id).
		Scan(&r.ID, &r.TenantID, &r.WorkspaceID, &r.DefinitionID, &r.Status, &r.CurrentStepIndex,
			&inputs, &r.LinkedWorkItemID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal(inputs, &r.Inputs); err != nil {
		return nil, fmt.Errorf("decode run inputs: %w", err)
	}
	return &r, nil
}

func (s *PostgresGraphStore) UpdateRun(ctx context.Context, run *models.WorkflowRun) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE workflow_runs SET status = $1, current_step_index = $2, updated_at = $3 WHERE id = $4`,
		run.Status, run.CurrentStepIndex, run.UpdatedAt, run.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresGraphStore) AppendActionLog(ctx context.Context, log *models.ActionExecutionLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO action_logs (id, workflow_run_id, step_id, action_name, risk_level, idempotency_key, target_system, status, input, output, correlation_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		log.ID, log.WorkflowRunID, log.StepID, log.ActionName, log.RiskLevel, log.IdempotencyKey,
		log.TargetSystem, log.Status, mustJSON(log.Input), mustJSON(log.Output), log.CorrelationID, log.CreatedAt)
	return err
}

func (s *PostgresGraphStore) ListActionLogsByRun(ctx context.Context, runID string) ([]*models.ActionExecutionLog, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workflow_run_id, step_id, action_name, risk_level, idempotency_key, target_system, status, input, output, correlation_id, created_at
		 FROM action_logs WHERE workflow_run_id = $1 ORDER BY created_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ActionExecutionLog
	for rows.Next() {
		var l models.ActionExecutionLog
		var input, output []byte
		if err := rows.Scan(&l.ID, &l.WorkflowRunID, &l.StepID, &l.ActionName, &l.RiskLevel,
			&l.IdempotencyKey, &l.TargetSystem, &l.Status, &input, &output, &l.CorrelationID, &l.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(input, &l.Input); err != nil {
			return nil, fmt.Errorf("decode action log input: %w", err)
		}
		if err := json.Unmarshal(output, &l.Output); err != nil {
			return nil, fmt.Errorf("decode action log output: %w", err)
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}

func (s *PostgresGraphStore) AppendEvent(ctx context.Context, event *models.TimelineEvent) (*models.TimelineEvent, error) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO timeline_events (id, entity_type, entity_id, event_type, actor_id, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.EntityType, event.EntityID, event.EventType, event.ActorID,
		mustJSON(event.Payload), event.CreatedAt)
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (s *PostgresGraphStore) ListEvents(ctx context.Context, entityType, entityID string) ([]*models.TimelineEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, entity_type, entity_id, event_type, actor_id, payload, created_at
		 FROM timeline_events WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at`, entityType, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TimelineEvent
	for rows.Next() {
		var e models.TimelineEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.EventType, &e.ActorID, &payload, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
