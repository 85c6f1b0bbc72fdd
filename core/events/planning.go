package events

import (
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

// Kind names a planning event.
type Kind string

const (
	AssignmentCreated Kind = "assignment_created"
	AssignmentUpdated Kind = "assignment_updated"
	ConflictRaised    Kind = "conflict_raised"
	OptimizeFinished  Kind = "optimize_finished"
)

// PlanningEvent is published by the orchestrator after every committed
// decision. Only the fields relevant to Kind are set.
type PlanningEvent struct {
	Kind       Kind
	Operation  string
	Task       *model.Task
	Assignment *model.Assignment
	// Previous is the assignment status before an AssignmentUpdated change.
	Previous  model.AssignmentStatus
	Conflicts []model.Conflict
	Assigned  int
	Attempted int
	Time      time.Time
}
