package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/pkg/models"
)

const (
	// Weights for the two match key tiers.
	highTierWeight     = 0.8
	fallbackTierWeight = 0.2

	// Candidates below candidateFloor are discarded; a top candidate at
	// or above mergeThreshold absorbs the signal instead of a new
	// entity being created.
	candidateFloor = 0.4
	mergeThreshold = 0.75
)

// ReconciliationEngine scores incoming source signals against canonical
// entities and either merges them into the best match or creates a new
// entity, preserving field-level provenance either way.
type ReconciliationEngine struct {
	store   repository.GraphStore
	logger  *logging.Logger
	locks   *repository.KeyedMutex
	metrics *engineMetrics
}

// NewReconciliationEngine creates a new ReconciliationEngine.
func NewReconciliationEngine(store repository.GraphStore, logger *logging.Logger) *ReconciliationEngine {
	return &ReconciliationEngine{
		store:   store,
		logger:  logger,
		locks:   repository.NewKeyedMutex(),
		metrics: newEngineMetrics(),
	}
}

// IngestResult is the outcome of one signal ingestion.
type IngestResult struct {
	Entity     *models.Entity     `json:"entity"`
	Candidates []models.Candidate `json:"candidates"`
	Created    bool               `json:"created"`
}

// FindCandidates scores the signal against every canonical entity of
// the same object type in the tenant and returns the surviving
// candidates in descending score order. Read-only; ties are broken by
// entity id so one input always yields one ranking.
func (e *ReconciliationEngine) FindCandidates(ctx context.Context, tenantID string, signal *models.SourceSignal) ([]models.Candidate, error) {
	entities, err := e.store.ListEntitiesByType(ctx, tenantID, signal.ObjectType)
	if err != nil {
		return nil, err
	}

	tiers := tiersFor(signal.ObjectType)
	var candidates []models.Candidate
	for _, entity := range entities {
		highScore, highMatched := tierScore(tiers.high, signal.Snapshot, entity.Fields)
		fallbackScore, fallbackMatched := tierScore(tiers.fallback, signal.Snapshot, entity.Fields)

		score := highTierWeight*highScore + fallbackTierWeight*fallbackScore
		if score > 1 {
			score = 1
		}
		if score < candidateFloor {
			continue
		}

		candidates = append(candidates, models.Candidate{
			EntityID:          entity.ID,
			Confidence:        score,
			MatchReason:       matchReason(highMatched, fallbackMatched),
			ConflictingFields: conflictingFields(signal.Snapshot, entity.Fields),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Confidence != candidates[j].Confidence {
			return candidates[i].Confidence > candidates[j].Confidence
		}
		return candidates[i].EntityID < candidates[j].EntityID
	})
	return candidates, nil
}

// IngestSignal persists the raw signal for audit, then merges it into
// the top candidate (score ≥ mergeThreshold) or creates a new entity.
// Merges serialize per entity id so provenance ordering stays intact
// under concurrent ingests.
func (e *ReconciliationEngine) IngestSignal(ctx context.Context, tenantID string, signal *models.SourceSignal, actor string) (*IngestResult, error) {
	if signal.ObservedAt.IsZero() {
		signal.ObservedAt = time.Now().UTC()
	}
	if err := e.store.SaveSignal(ctx, signal); err != nil {
		return nil, err
	}
	e.metrics.signalsIngested.Add(ctx, 1)

	candidates, err := e.FindCandidates(ctx, tenantID, signal)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 || candidates[0].Confidence < mergeThreshold {
		entity, err := e.createFromSignal(ctx, tenantID, signal, actor)
		if err != nil {
			return nil, err
		}
		return &IngestResult{Entity: entity, Candidates: candidates, Created: true}, nil
	}

	entity, err := e.mergeIntoEntity(ctx, candidates[0].EntityID, signal, actor)
	if err != nil {
		return nil, err
	}
	return &IngestResult{Entity: entity, Candidates: candidates, Created: false}, nil
}

func (e *ReconciliationEngine) createFromSignal(ctx context.Context, tenantID string, signal *models.SourceSignal, actor string) (*models.Entity, error) {
	now := time.Now().UTC()
	entity := &models.Entity{
		TenantID:   tenantID,
		Type:       signal.ObjectType,
		Fields:     make(map[string]any, len(signal.Snapshot)),
		Provenance: make(map[string][]models.ProvenanceEntry, len(signal.Snapshot)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for field, value := range signal.Snapshot {
		entity.Fields[field] = value
		entity.Provenance[field] = []models.ProvenanceEntry{provenanceFor(field, signal)}
	}

	if err := e.store.CreateEntity(ctx, entity); err != nil {
		return nil, err
	}
	if _, err := e.store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: timelineEntity,
		EntityID:   entity.ID,
		EventType:  models.EventObjectCreated,
		ActorID:    actor,
		Payload:    map[string]any{"signal_id": signal.ID, "source_id": signal.SourceID},
	}); err != nil {
		return nil, err
	}

	e.metrics.entitiesCreated.Add(ctx, 1)
	e.logger.Info("entity created from signal",
		"entity_id", entity.ID, "signal_id", signal.ID, "type", signal.ObjectType)
	return entity, nil
}

func (e *ReconciliationEngine) mergeIntoEntity(ctx context.Context, entityID string, signal *models.SourceSignal, actor string) (*models.Entity, error) {
	unlock := e.locks.Lock(entityID)
	defer unlock()

	// Re-read under the lock; the candidate could have vanished between
	// scoring and write only if callers bypass this serialization.
	entity, err := e.store.GetEntity(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("merge target %s: %w", entityID, err)
	}

	if entity.Fields == nil {
		entity.Fields = make(map[string]any)
	}
	if entity.Provenance == nil {
		entity.Provenance = make(map[string][]models.ProvenanceEntry)
	}

	fields := make([]string, 0, len(signal.Snapshot))
	for field := range signal.Snapshot {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	// Field changes are collected first; their timeline events append
	// only after the entity write commits, so the timeline never records
	// changes that did not land.
	var changes []*models.TimelineEvent
	for _, field := range fields {
		next := signal.Snapshot[field]
		previous, had := entity.Fields[field]

		entity.Fields[field] = next
		entity.Provenance[field] = append(entity.Provenance[field], provenanceFor(field, signal))

		if had && normalizeValue(previous) == normalizeValue(next) {
			continue
		}
		changes = append(changes, &models.TimelineEvent{
			EntityType: timelineEntity,
			EntityID:   entity.ID,
			EventType:  models.EventObjectUpdated,
			ActorID:    actor,
			Payload:    map[string]any{"field": field, "previous": previous, "next": next},
		})
	}

	entity.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateEntity(ctx, entity); err != nil {
		return nil, err
	}
	for _, event := range changes {
		if _, err := e.store.AppendEvent(ctx, event); err != nil {
			return nil, err
		}
	}

	e.metrics.entitiesMerged.Add(ctx, 1)
	e.logger.Info("signal merged into entity",
		"entity_id", entity.ID, "signal_id", signal.ID, "source_id", signal.SourceID)
	return entity, nil
}

func provenanceFor(field string, signal *models.SourceSignal) models.ProvenanceEntry {
	return models.ProvenanceEntry{
		Field:      field,
		SourceID:   signal.SourceID,
		SignalID:   signal.ID,
		ObservedAt: signal.ObservedAt,
		Confidence: signal.Confidence,
	}
}

func matchReason(highMatched, fallbackMatched []string) string {
	var parts []string
	if len(highMatched) > 0 {
		parts = append(parts, "matched "+strings.Join(highMatched, ", "))
	}
	if len(fallbackMatched) > 0 {
		parts = append(parts, "weak match on "+strings.Join(fallbackMatched, ", "))
	}
	if len(parts) == 0 {
		return "no direct key match"
	}
	return strings.Join(parts, "; ")
}

// conflictingFields lists every field present on both sides whose
// normalized values differ.
func conflictingFields(snapshot, fields map[string]any) []string {
	var out []string
	for field, sv := range snapshot {
		ev, ok := fields[field]
		if !ok {
			continue
		}
		if normalizeValue(sv) != normalizeValue(ev) {
			out = append(out, field)
		}
	}
	sort.Strings(out)
	return out
}
