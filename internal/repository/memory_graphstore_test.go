package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetplane/backend/pkg/models"
)

func TestMemoryGraphStoreEntities(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()

	entity := &models.Entity{
		TenantID: "t1",
		Type:     models.ObjectTypeDevice,
		Fields:   map[string]any{"serial_number": "SN-001"},
		Provenance: map[string][]models.ProvenanceEntry{
			"serial_number": {{Field: "serial_number", SourceID: "mdm"}},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateEntity(ctx, entity))
	require.NotEmpty(t, entity.ID)

	t.Run("get returns a copy", func(t *testing.T) {
		got, err := store.GetEntity(ctx, entity.ID)
		require.NoError(t, err)
		got.Fields["serial_number"] = "tampered"

		again, err := store.GetEntity(ctx, entity.ID)
		require.NoError(t, err)
		assert.Equal(t, "SN-001", again.Fields["serial_number"])
	})

	t.Run("list filters by tenant and type", func(t *testing.T) {
		require.NoError(t, store.CreateEntity(ctx, &models.Entity{
			TenantID: "t2", Type: models.ObjectTypeDevice, Fields: map[string]any{},
		}))
		require.NoError(t, store.CreateEntity(ctx, &models.Entity{
			TenantID: "t1", Type: models.ObjectTypePerson, Fields: map[string]any{},
		}))

		devices, err := store.ListEntitiesByType(ctx, "t1", models.ObjectTypeDevice)
		require.NoError(t, err)
		assert.Len(t, devices, 1)
	})

	t.Run("update missing entity", func(t *testing.T) {
		err := store.UpdateEntity(ctx, &models.Entity{ID: "nope"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryGraphStoreTimelineAppendOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryGraphStore()

	for i := 0; i < 3; i++ {
		_, err := store.AppendEvent(ctx, &models.TimelineEvent{
			EntityType: "entity",
			EntityID:   "e1",
			EventType:  models.EventObjectUpdated,
		})
		require.NoError(t, err)
	}
	_, err := store.AppendEvent(ctx, &models.TimelineEvent{
		EntityType: "entity", EntityID: "e2", EventType: models.EventObjectCreated,
	})
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, "entity", "e1")
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.CreatedAt.IsZero())
	}
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	var mu sync.Mutex
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("run-1")
			defer unlock()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	// Distinct keys must not block each other.
	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
	unlockA()
}
