package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	MinDurationMinutes = 15
	MaxDurationMinutes = 480
)

// ErrInvalid is returned by Validate methods.
var ErrInvalid = errors.New("invalid")

// Priority orders tasks: LOW < MEDIUM < HIGH < URGENT.
type Priority int

const (
	PriorityLow Priority = iota + 1
	PriorityMedium
	PriorityHigh
	PriorityUrgent
)

// String returns the wire name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return "unknown"
	}
}

// ParsePriority converts a wire name to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PriorityLow, nil
	case "MEDIUM", "":
		return PriorityMedium, nil
	case "HIGH":
		return PriorityHigh, nil
	case "URGENT":
		return PriorityUrgent, nil
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalid, s)
}

func (p Priority) MarshalJSON() ([]byte, error) { return json.Marshal(p.String()) }

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
	TaskCancelled  TaskStatus = "CANCELLED"
)

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskAssigned, TaskCancelled},
	TaskAssigned:   {TaskInProgress, TaskCancelled, TaskPending},
	TaskInProgress: {TaskDone},
}

// CanTransition reports whether the state machine allows s → to.
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	for _, t := range taskTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskAssigned, TaskInProgress, TaskDone, TaskCancelled:
		return true
	}
	return false
}

// Task is a unit of field work.
type Task struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	RequiredSkills  []string   `json:"required_skills"`
	Location        string     `json:"location,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Priority        Priority   `json:"priority"`
	Status          TaskStatus `json:"status"`
	PlannedStart    *time.Time `json:"planned_start,omitempty"`
	PlannedEnd      *time.Time `json:"planned_end,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Duration returns the estimated duration.
func (t Task) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// Validate checks the intake constraints of a task.
func (t Task) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Title) == "" {
		errs = append(errs, fmt.Errorf("title is required"))
	}
	if t.DurationMinutes < MinDurationMinutes || t.DurationMinutes > MaxDurationMinutes {
		errs = append(errs, fmt.Errorf("duration_minutes must be within [%d,%d], got %d",
			MinDurationMinutes, MaxDurationMinutes, t.DurationMinutes))
	}
	if t.Priority < PriorityLow || t.Priority > PriorityUrgent {
		errs = append(errs, fmt.Errorf("unknown priority %d", t.Priority))
	}
	if t.Status != "" && !t.Status.Valid() {
		errs = append(errs, fmt.Errorf("unknown status %q", t.Status))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
