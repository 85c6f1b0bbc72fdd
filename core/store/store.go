// Package store defines the persistence boundary used by the planning
// engine. Implementations live in this package (memory) and in
// infra/sqlstore (sqlite, postgres).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

var (
	// ErrNotFound is returned when an id does not resolve.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// TaskOrder selects the ordering of task listings.
type TaskOrder int

const (
	// OrderCreatedAsc lists the oldest tasks first.
	OrderCreatedAsc TaskOrder = iota
	// OrderPriorityDescCreatedAsc lists the most urgent, oldest tasks first.
	OrderPriorityDescCreatedAsc
	// OrderCreatedDesc lists the newest tasks first.
	OrderCreatedDesc
)

// TechnicianStore persists technicians.
type TechnicianStore interface {
	GetTechnician(ctx context.Context, id string) (model.Technician, error)
	// ListActiveTechnicians returns active technicians ordered by id.
	ListActiveTechnicians(ctx context.Context) ([]model.Technician, error)
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	// CreateTechnician inserts a technician and fails with ErrDuplicate if
	// the e-mail is already registered.
	CreateTechnician(ctx context.Context, t model.Technician) error
	SaveTechnician(ctx context.Context, t model.Technician) error
}

// TaskStore persists tasks.
type TaskStore interface {
	GetTask(ctx context.Context, id string) (model.Task, error)
	ListTasksByStatus(ctx context.Context, status model.TaskStatus, order TaskOrder) ([]model.Task, error)
	ListTasks(ctx context.Context, order TaskOrder) ([]model.Task, error)
	CreateTask(ctx context.Context, t model.Task) error
	SaveTask(ctx context.Context, t model.Task) error
}

// AssignmentStore persists assignments. Cancelled assignments are kept.
type AssignmentStore interface {
	// CountOverlapping counts non-cancelled assignments of the technician
	// whose interval intersects [start,end). excludeID is skipped when set.
	CountOverlapping(ctx context.Context, technicianID string, start, end time.Time, excludeID string) (int, error)
	// ListByTechnician lists the technician's assignments ordered by start.
	// A nil status returns every status.
	ListByTechnician(ctx context.Context, technicianID string, status *model.AssignmentStatus) ([]model.Assignment, error)
	// FindByTask returns the live assignment of the task if any, otherwise
	// its most recent one.
	FindByTask(ctx context.Context, taskID string) (model.Assignment, error)
	GetAssignment(ctx context.Context, id string) (model.Assignment, error)
	SaveAssignment(ctx context.Context, a model.Assignment) error
}

// Store aggregates the three collections.
type Store interface {
	TechnicianStore
	TaskStore
	AssignmentStore
	Close() error
}

// StatusPtr is a helper for ListByTechnician filters.
func StatusPtr(s model.AssignmentStatus) *model.AssignmentStatus { return &s }
