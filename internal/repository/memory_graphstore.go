package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetplane/backend/pkg/models"
)

// MemoryGraphStore is a volatile in-memory implementation of GraphStore.
// Reads and writes deep-copy records so callers never alias stored
// state; the timeline slice is strictly append-only.
type MemoryGraphStore struct {
	mu sync.RWMutex

	tenants       map[string]*models.Tenant
	entities      map[string]*models.Entity
	relationships map[string]*models.Relationship
	signals       map[string]*models.SourceSignal
	workItems     map[string]*models.WorkItem
	approvals     map[string]*models.ApprovalRecord
	definitions   map[string]*models.WorkflowDefinition
	runs          map[string]*models.WorkflowRun
	actionLogs    []*models.ActionExecutionLog
	timeline      []*models.TimelineEvent
}

// NewMemoryGraphStore creates an empty MemoryGraphStore.
func NewMemoryGraphStore() *MemoryGraphStore {
	return &MemoryGraphStore{
		tenants:       make(map[string]*models.Tenant),
		entities:      make(map[string]*models.Entity),
		relationships: make(map[string]*models.Relationship),
		signals:       make(map[string]*models.SourceSignal),
		workItems:     make(map[string]*models.WorkItem),
		approvals:     make(map[string]*models.ApprovalRecord),
		definitions:   make(map[string]*models.WorkflowDefinition),
		runs:          make(map[string]*models.WorkflowRun),
	}
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = cloneMap(val)
		case []any:
			list := make([]any, len(val))
			for i, item := range val {
				if nested, ok := item.(map[string]any); ok {
					list[i] = cloneMap(nested)
				} else {
					list[i] = item
				}
			}
			out[k] = list
		default:
			out[k] = v
		}
	}
	return out
}

func cloneEntity(e *models.Entity) *models.Entity {
	c := *e
	c.Fields = cloneMap(e.Fields)
	if e.Provenance != nil {
		c.Provenance = make(map[string][]models.ProvenanceEntry, len(e.Provenance))
		for field, entries := range e.Provenance {
			c.Provenance[field] = append([]models.ProvenanceEntry(nil), entries...)
		}
	}
	return &c
}

func cloneRun(r *models.WorkflowRun) *models.WorkflowRun {
	c := *r
	c.Inputs = cloneMap(r.Inputs)
	return &c
}

func cloneDefinition(d *models.WorkflowDefinition) *models.WorkflowDefinition {
	c := *d
	c.Steps = make([]models.WorkflowStep, len(d.Steps))
	for i, s := range d.Steps {
		c.Steps[i] = s
		c.Steps[i].Config = cloneMap(s.Config)
	}
	return &c
}

func cloneEvent(e *models.TimelineEvent) *models.TimelineEvent {
	c := *e
	c.Payload = cloneMap(e.Payload)
	return &c
}

func (s *MemoryGraphStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant.ID = orNewID(tenant.ID)
	now := time.Now().UTC()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	c := *tenant
	s.tenants[tenant.ID] = &c
	return nil
}

func (s *MemoryGraphStore) GetTenantByDomain(ctx context.Context, domain string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Domain == domain {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryGraphStore) CreateEntity(ctx context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity.ID = orNewID(entity.ID)
	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

func (s *MemoryGraphStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntity(e), nil
}

func (s *MemoryGraphStore) UpdateEntity(ctx context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[entity.ID]; !ok {
		return ErrNotFound
	}
	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

func (s *MemoryGraphStore) ListEntitiesByType(ctx context.Context, tenantID string, objectType models.ObjectType) ([]*models.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Entity
	for _, e := range s.entities {
		if e.Type != objectType {
			continue
		}
		if tenantID != "" && e.TenantID != tenantID {
			continue
		}
		out = append(out, cloneEntity(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryGraphStore) CreateRelationship(ctx context.Context, rel *models.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel.ID = orNewID(rel.ID)
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	c := *rel
	s.relationships[rel.ID] = &c
	return nil
}

func (s *MemoryGraphStore) ListRelationshipsByObject(ctx context.Context, objectID string) ([]*models.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Relationship
	for _, r := range s.relationships {
		if r.FromObjectID == objectID || r.ToObjectID == objectID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryGraphStore) SaveSignal(ctx context.Context, signal *models.SourceSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	signal.ID = orNewID(signal.ID)
	c := *signal
	c.Snapshot = cloneMap(signal.Snapshot)
	s.signals[signal.ID] = &c
	return nil
}

func (s *MemoryGraphStore) CreateWorkItem(ctx context.Context, item *models.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = orNewID(item.ID)
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	c := *item
	s.workItems[item.ID] = &c
	return nil
}

func (s *MemoryGraphStore) GetWorkItem(ctx context.Context, id string) (*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workItems[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *w
	return &c, nil
}

func (s *MemoryGraphStore) UpdateWorkItem(ctx context.Context, item *models.WorkItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workItems[item.ID]; !ok {
		return ErrNotFound
	}
	item.UpdatedAt = time.Now().UTC()
	c := *item
	s.workItems[item.ID] = &c
	return nil
}

func (s *MemoryGraphStore) ListWorkItemsByRun(ctx context.Context, runID string) ([]*models.WorkItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.WorkItem
	for _, w := range s.workItems {
		if w.WorkflowRunID == runID {
			c := *w
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryGraphStore) CreateApproval(ctx context.Context, approval *models.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	approval.ID = orNewID(approval.ID)
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = time.Now().UTC()
	}
	c := *approval
	s.approvals[approval.ID] = &c
	return nil
}

func (s *MemoryGraphStore) GetApproval(ctx context.Context, id string) (*models.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.approvals[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *a
	return &c, nil
}

func (s *MemoryGraphStore) UpdateApproval(ctx context.Context, approval *models.ApprovalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.approvals[approval.ID]; !ok {
		return ErrNotFound
	}
	c := *approval
	s.approvals[approval.ID] = &c
	return nil
}

func (s *MemoryGraphStore) ListApprovalsByWorkItem(ctx context.Context, workItemID string) ([]*models.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ApprovalRecord
	for _, a := range s.approvals {
		if a.WorkItemID == workItemID {
			c := *a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryGraphStore) CreateDefinition(ctx context.Context, def *models.WorkflowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	def.ID = orNewID(def.ID)
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	s.definitions[def.ID] = cloneDefinition(def)
	return nil
}

func (s *MemoryGraphStore) GetDefinition(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.definitions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDefinition(d), nil
}

func (s *MemoryGraphStore) ListDefinitions(ctx context.Context, tenantID string) ([]*models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.WorkflowDefinition
	for _, d := range s.definitions {
		if tenantID != "" && d.TenantID != tenantID {
			continue
		}
		out = append(out, cloneDefinition(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryGraphStore) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.ID = orNewID(run.ID)
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryGraphStore) GetRun(ctx context.Context, id string) (*models.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRun(r), nil
}

func (s *MemoryGraphStore) UpdateRun(ctx context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryGraphStore) AppendActionLog(ctx context.Context, log *models.ActionExecutionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = orNewID(log.ID)
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	c := *log
	c.Input = cloneMap(log.Input)
	c.Output = cloneMap(log.Output)
	s.actionLogs = append(s.actionLogs, &c)
	return nil
}

func (s *MemoryGraphStore) ListActionLogsByRun(ctx context.Context, runID string) ([]*models.ActionExecutionLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ActionExecutionLog
	for _, l := range s.actionLogs {
		if l.WorkflowRunID == runID {
			c := *l
			c.Input = cloneMap(l.Input)
			c.Output = cloneMap(l.Output)
			out = append(out, &c)
		}
	}
	return out, nil
}

func (s *MemoryGraphStore) AppendEvent(ctx context.Context, event *models.TimelineEvent) (*models.TimelineEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = orNewID(event.ID)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.timeline = append(s.timeline, cloneEvent(event))
	return cloneEvent(event), nil
}

func (s *MemoryGraphStore) ListEvents(ctx context.Context, entityType, entityID string) ([]*models.TimelineEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.TimelineEvent
	for _, e := range s.timeline {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, cloneEvent(e))
		}
	}
	return out, nil
}
