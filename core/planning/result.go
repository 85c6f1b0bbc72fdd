package planning

import (
	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/scoring"
)

// Result is the outcome of one assignment operation. Conflicts are data:
// a failed Result comes with a nil error.
type Result struct {
	Success     bool              `json:"success"`
	Assignment  *model.Assignment `json:"assignment,omitempty"`
	Score       *scoring.Score    `json:"score,omitempty"`
	Conflicts   []model.Conflict  `json:"conflicts,omitempty"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// TaskOutcome pairs a task with the result of its optimize attempt.
// Skipped tasks carry the reason in Error.
type TaskOutcome struct {
	TaskID string  `json:"task_id"`
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// OptimizeResult summarises a bulk optimize pass.
type OptimizeResult struct {
	Message   string        `json:"message"`
	Attempted int           `json:"attempted"`
	Assigned  int           `json:"assigned"`
	Outcomes  []TaskOutcome `json:"outcomes"`
	Load      LoadReport    `json:"load"`
}

// ConflictReport is the outcome of a full sweep.
type ConflictReport struct {
	Conflicts []model.Conflict           `json:"conflicts"`
	Counts    map[model.ConflictKind]int `json:"counts"`
}

const (
	suggestCheckSkills   = "Check the technicians' skills"
	suggestRaiseCapacity = "Increase the weekly capacity"
	suggestAnotherSlot   = "Choose another date or time"
)

func failure(msg string, suggestions []string, conflicts ...model.Conflict) Result {
	return Result{Success: false, Conflicts: conflicts, Suggestions: suggestions, Message: msg}
}
