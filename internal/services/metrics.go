package services

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// engineMetrics holds the otel counters shared by both engines. The
// global meter provider is a no-op unless the host process installs one.
type engineMetrics struct {
	signalsIngested  metric.Int64Counter
	entitiesCreated  metric.Int64Counter
	entitiesMerged   metric.Int64Counter
	runsStarted      metric.Int64Counter
	runsCompleted    metric.Int64Counter
	runsFailed       metric.Int64Counter
	stepsExecuted    metric.Int64Counter
	approvalsDecided metric.Int64Counter
}

func newEngineMetrics() *engineMetrics {
	meter := otel.Meter("assetplane/backend/services")
	m := &engineMetrics{}
	m.signalsIngested, _ = meter.Int64Counter("reconciliation.signals.ingested")
	m.entitiesCreated, _ = meter.Int64Counter("reconciliation.entities.created")
	m.entitiesMerged, _ = meter.Int64Counter("reconciliation.entities.merged")
	m.runsStarted, _ = meter.Int64Counter("workflow.runs.started")
	m.runsCompleted, _ = meter.Int64Counter("workflow.runs.completed")
	m.runsFailed, _ = meter.Int64Counter("workflow.runs.failed")
	m.stepsExecuted, _ = meter.Int64Counter("workflow.steps.executed")
	m.approvalsDecided, _ = meter.Int64Counter("workflow.approvals.decided")
	return m
}
