// Package services contains the two engines at the core of the control
// plane: the entity reconciliation engine and the workflow run engine.
package services

import (
	"errors"
)

// ErrInvalidState is returned when an operation targets a run or
// definition in a state that cannot accept it (inactive definition,
// terminal run, already-decided approval).
var ErrInvalidState = errors.New("invalid state")

// ErrPermissionDenied is returned when the actor lacks the capability
// the operation requires.
var ErrPermissionDenied = errors.New("permission denied")

// Timeline entity kinds used as the (entityType, entityId) key.
const (
	timelineEntity = "entity"
	timelineRun    = "workflow_run"
)
