package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"assetplane/backend/pkg/models"
)

func TestPostgresGraphStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("failed to terminate container: %s", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()

	store := NewPostgresGraphStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))

	t.Run("entity round trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		entity := &models.Entity{
			TenantID: "t1",
			Type:     models.ObjectTypeDevice,
			Fields:   map[string]any{"serial_number": "SN-001", "hostname": "mbp-01"},
			Provenance: map[string][]models.ProvenanceEntry{
				"serial_number": {{Field: "serial_number", SourceID: "mdm", Confidence: 0.9, ObservedAt: now}},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, store.CreateEntity(ctx, entity))

		got, err := store.GetEntity(ctx, entity.ID)
		require.NoError(t, err)
		assert.Equal(t, "SN-001", got.Fields["serial_number"])
		assert.Len(t, got.Provenance["serial_number"], 1)
		assert.Equal(t, "mdm", got.Provenance["serial_number"][0].SourceID)

		listed, err := store.ListEntitiesByType(ctx, "t1", models.ObjectTypeDevice)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("definition and run round trip", func(t *testing.T) {
		def := &models.WorkflowDefinition{
			TenantID: "t1",
			Name:     "Device Remediation",
			Version:  1,
			Active:   true,
			Steps: []models.WorkflowStep{
				{ID: "s1", Name: "lock device", Type: models.StepTypeAutomation, RiskLevel: models.RiskLevelLow},
			},
		}
		require.NoError(t, store.CreateDefinition(ctx, def))

		got, err := store.GetDefinition(ctx, def.ID)
		require.NoError(t, err)
		require.Len(t, got.Steps, 1)
		assert.Equal(t, models.StepTypeAutomation, got.Steps[0].Type)

		now := time.Now().UTC().Truncate(time.Microsecond)
		run := &models.WorkflowRun{
			TenantID:     "t1",
			DefinitionID: def.ID,
			Status:       models.RunStatusRunning,
			Inputs:       map[string]any{"device_id": "d1"},
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		require.NoError(t, store.CreateRun(ctx, run))

		run.Status = models.RunStatusCompleted
		run.CurrentStepIndex = 1
		require.NoError(t, store.UpdateRun(ctx, run))

		fetched, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, fetched.Status)
		assert.Equal(t, 1, fetched.CurrentStepIndex)
	})

	t.Run("timeline append and scan", func(t *testing.T) {
		ev, err := store.AppendEvent(ctx, &models.TimelineEvent{
			EntityType: "workflow_run",
			EntityID:   "r1",
			EventType:  models.EventWorkflowStarted,
			Payload:    map[string]any{"definition_id": "d1"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, ev.ID)

		events, err := store.ListEvents(ctx, "workflow_run", "r1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, models.EventWorkflowStarted, events[0].EventType)
	})

	t.Run("missing records", func(t *testing.T) {
		_, err := store.GetRun(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = store.GetApproval(ctx, "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
