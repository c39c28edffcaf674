package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetplane/backend/internal/logging"
	"assetplane/backend/internal/repository"
	"assetplane/backend/pkg/models"
)

func newReconTestEngine() (*ReconciliationEngine, *repository.MemoryGraphStore) {
	store := repository.NewMemoryGraphStore()
	return NewReconciliationEngine(store, logging.NewLogger()), store
}

func seedDevice(t *testing.T, store *repository.MemoryGraphStore, fields map[string]any) *models.Entity {
	t.Helper()
	entity := &models.Entity{
		TenantID:   "t1",
		Type:       models.ObjectTypeDevice,
		Fields:     fields,
		Provenance: map[string][]models.ProvenanceEntry{},
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateEntity(context.Background(), entity))
	return entity
}

func TestFindCandidatesDeterminism(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	seedDevice(t, store, map[string]any{"serial_number": "SN-001", "hostname": "mbp-01"})
	seedDevice(t, store, map[string]any{"serial_number": "SN-002", "hostname": "mbp-02"})

	signal := &models.SourceSignal{
		SourceID:   "mdm",
		ObjectType: models.ObjectTypeDevice,
		Snapshot:   map[string]any{"serial_number": "SN-001", "hostname": "mbp-01"},
		Confidence: 0.9,
	}

	first, err := engine.FindCandidates(ctx, "t1", signal)
	require.NoError(t, err)
	second, err := engine.FindCandidates(ctx, "t1", signal)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.NotEmpty(t, first)
	assert.Equal(t, 1.0, first[0].Confidence)
}

func TestFindCandidatesNormalization(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	seedDevice(t, store, map[string]any{"serial_number": "sn-001"})

	signal := &models.SourceSignal{
		ObjectType: models.ObjectTypeDevice,
		Snapshot:   map[string]any{"serial_number": "  SN-001 "},
	}
	candidates, err := engine.FindCandidates(ctx, "t1", signal)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.8, candidates[0].Confidence)
}

func TestFindCandidatesDiscardsWeakMatches(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	// Only one of three populated fallback keys matches: 0.2 * 1/3 and
	// no high-tier overlap leaves the score under the floor.
	seedDevice(t, store, map[string]any{"hostname": "mbp-01", "name": "other", "model": "other"})

	signal := &models.SourceSignal{
		ObjectType: models.ObjectTypeDevice,
		Snapshot:   map[string]any{"hostname": "mbp-01", "name": "spare laptop", "model": "a1502"},
	}
	candidates, err := engine.FindCandidates(ctx, "t1", signal)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestFindCandidatesConflictingFields(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	seedDevice(t, store, map[string]any{
		"serial_number": "SN-001",
		"asset_tag":     "LAP-001",
		"hostname":      "old-host",
	})

	signal := &models.SourceSignal{
		ObjectType: models.ObjectTypeDevice,
		Snapshot: map[string]any{
			"serial_number": "SN-001",
			"asset_tag":     "LAP-001",
			"hostname":      "new-host",
		},
	}
	candidates, err := engine.FindCandidates(ctx, "t1", signal)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, []string{"hostname"}, candidates[0].ConflictingFields)
}

func TestIngestSignalMergeThresholdBoundary(t *testing.T) {
	ctx := context.Background()

	// Three of four populated keys match in each tier, which lands the
	// combined score exactly on the merge threshold.
	boundaryFields := map[string]any{
		"serial_number": "SN-001", "asset_tag": "LAP-001", "udid": "U-1", "imei": "I-1",
		"hostname": "mbp-01", "name": "laptop", "model": "a1502", "region": "emea",
	}
	boundarySnapshot := map[string]any{
		"serial_number": "SN-001", "asset_tag": "LAP-001", "udid": "U-1", "imei": "mismatch",
		"hostname": "mbp-01", "name": "laptop", "model": "a1502", "region": "apac",
	}

	t.Run("exactly at threshold merges", func(t *testing.T) {
		engine, store := newReconTestEngine()
		existing := seedDevice(t, store, boundaryFields)

		result, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
			SourceID:   "mdm",
			ObjectType: models.ObjectTypeDevice,
			Snapshot:   boundarySnapshot,
			Confidence: 0.9,
		}, "tester")
		require.NoError(t, err)
		require.NotEmpty(t, result.Candidates)
		assert.InDelta(t, mergeThreshold, result.Candidates[0].Confidence, 1e-9)
		assert.False(t, result.Created)
		assert.Equal(t, existing.ID, result.Entity.ID)
	})

	t.Run("below threshold creates", func(t *testing.T) {
		engine, store := newReconTestEngine()
		existing := seedDevice(t, store, boundaryFields)

		snapshot := make(map[string]any, len(boundarySnapshot))
		for k, v := range boundarySnapshot {
			snapshot[k] = v
		}
		snapshot["model"] = "mismatch" // fallback overlap drops to 2/4

		result, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
			SourceID:   "mdm",
			ObjectType: models.ObjectTypeDevice,
			Snapshot:   snapshot,
			Confidence: 0.9,
		}, "tester")
		require.NoError(t, err)
		require.NotEmpty(t, result.Candidates)
		assert.Less(t, result.Candidates[0].Confidence, mergeThreshold)
		assert.True(t, result.Created)
		assert.NotEqual(t, existing.ID, result.Entity.ID)
	})
}

func TestIngestSignalMergeScenario(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	target := seedDevice(t, store, map[string]any{"serial_number": "SN-001", "asset_tag": "LAP-001"})
	seedDevice(t, store, map[string]any{"serial_number": "SN-999", "asset_tag": "LAP-999"})

	result, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
		SourceID:   "mdm",
		ObjectType: models.ObjectTypeDevice,
		Snapshot: map[string]any{
			"serial_number": "SN-001",
			"asset_tag":     "LAP-001",
			"hostname":      "mbp-01",
		},
		Confidence: 0.9,
	}, "tester")
	require.NoError(t, err)

	assert.False(t, result.Created)
	assert.Equal(t, target.ID, result.Entity.ID)
	assert.Equal(t, "mbp-01", result.Entity.Fields["hostname"])

	devices, err := store.ListEntitiesByType(ctx, "t1", models.ObjectTypeDevice)
	require.NoError(t, err)
	assert.Len(t, devices, 2)

	// The new field changed, so the timeline carries an update event.
	events, err := store.ListEvents(ctx, "entity", target.ID)
	require.NoError(t, err)
	var updates int
	for _, ev := range events {
		if ev.EventType == models.EventObjectUpdated {
			updates++
			assert.Contains(t, ev.Payload, "field")
			assert.Contains(t, ev.Payload, "next")
		}
	}
	assert.Equal(t, 1, updates)
}

func TestIngestSignalCreatesWithProvenance(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	result, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
		SourceID:   "hris",
		ObjectType: models.ObjectTypePerson,
		Snapshot:   map[string]any{"worker_id": "W-1", "name": "Ada"},
		Confidence: 0.8,
	}, "tester")
	require.NoError(t, err)
	require.True(t, result.Created)

	for _, field := range []string{"worker_id", "name"} {
		entries := result.Entity.Provenance[field]
		require.Len(t, entries, 1)
		assert.Equal(t, "hris", entries[0].SourceID)
		assert.Equal(t, 0.8, entries[0].Confidence)
	}

	events, err := store.ListEvents(ctx, "entity", result.Entity.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventObjectCreated, events[0].EventType)
}

func TestProvenanceAppendOnly(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	const n = 4
	var entityID string
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		result, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
			SourceID:   "mdm",
			ObjectType: models.ObjectTypeDevice,
			Snapshot:   map[string]any{"serial_number": "SN-001", "hostname": "mbp-01"},
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
			Confidence: 0.9,
		}, "tester")
		require.NoError(t, err)
		if i == 0 {
			require.True(t, result.Created)
			entityID = result.Entity.ID
		} else {
			require.False(t, result.Created)
			require.Equal(t, entityID, result.Entity.ID)
		}
	}

	entity, err := store.GetEntity(ctx, entityID)
	require.NoError(t, err)
	entries := entity.Provenance["hostname"]
	require.Len(t, entries, n)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].ObservedAt.Before(entries[i-1].ObservedAt),
			"provenance entries out of observedAt order")
	}
}

// refusingEntityStore rejects entity updates so tests can observe what
// happens when a merge write does not land.
type refusingEntityStore struct {
	*repository.MemoryGraphStore
	refuseUpdates bool
}

func (s *refusingEntityStore) UpdateEntity(ctx context.Context, entity *models.Entity) error {
	if s.refuseUpdates {
		return errors.New("entity write refused")
	}
	return s.MemoryGraphStore.UpdateEntity(ctx, entity)
}

func TestMergeEventsRequireCommittedWrite(t *testing.T) {
	ctx := context.Background()
	store := &refusingEntityStore{MemoryGraphStore: repository.NewMemoryGraphStore()}
	engine := NewReconciliationEngine(store, logging.NewLogger())

	entity := seedDevice(t, store.MemoryGraphStore, map[string]any{"serial_number": "SN-001"})

	store.refuseUpdates = true
	_, err := engine.IngestSignal(ctx, "t1", &models.SourceSignal{
		SourceID:   "mdm",
		ObjectType: models.ObjectTypeDevice,
		Snapshot:   map[string]any{"serial_number": "SN-001", "hostname": "mbp-01"},
		Confidence: 0.9,
	}, "tester")
	require.Error(t, err)

	// The aborted merge must leave no trace on the timeline.
	events, err := store.ListEvents(ctx, "entity", entity.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	// The stored entity is untouched too.
	stored, err := store.GetEntity(ctx, entity.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.Fields, "hostname")
}

func TestIngestSignalUnknownTypeDefaultsToNameKeys(t *testing.T) {
	ctx := context.Background()
	engine, store := newReconTestEngine()

	entity := &models.Entity{
		TenantID: "t1",
		Type:     models.ObjectTypeGroup,
		Fields:   map[string]any{"id": "grp-1", "name": "Engineering"},
	}
	require.NoError(t, store.CreateEntity(ctx, entity))

	candidates, err := engine.FindCandidates(ctx, "t1", &models.SourceSignal{
		ObjectType: models.ObjectTypeGroup,
		Snapshot:   map[string]any{"id": "grp-1", "name": "engineering"},
	})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1.0, candidates[0].Confidence)
}
