package planning

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

// ErrDuplicate is returned when a technician e-mail is already registered.
var ErrDuplicate = store.ErrDuplicate

// NewTechnician is the intake form of a technician.
type NewTechnician struct {
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	Skills        []string `json:"skills"`
	Location      string   `json:"location,omitempty"`
	CapacityHours float64  `json:"capacity_hours,omitempty"`
	// Active defaults to true.
	Active *bool `json:"active,omitempty"`
}

// CreateTechnician validates and stores a technician. A missing capacity
// defaults to DefaultCapacityHours.
func (o *Orchestrator) CreateTechnician(ctx context.Context, in NewTechnician) (model.Technician, error) {
	t := model.Technician{
		ID:            o.newID(),
		Name:          in.Name,
		Email:         in.Email,
		Skills:        in.Skills,
		Location:      in.Location,
		Active:        true,
		CapacityHours: in.CapacityHours,
		CreatedAt:     o.clock(),
	}
	if in.Active != nil {
		t.Active = *in.Active
	}
	if t.CapacityHours == 0 {
		t.CapacityHours = model.DefaultCapacityHours
	}
	if err := t.Validate(); err != nil {
		return model.Technician{}, err
	}
	if err := o.store.CreateTechnician(ctx, t); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.Technician{}, fmt.Errorf("technician %s: %w", t.Email, err)
		}
		return model.Technician{}, o.storeFailure("create_technician", err)
	}
	o.logger.Infof("technician %s created (%s)", t.ID, t.Email)
	return t, nil
}

// ListTechnicians returns every technician.
func (o *Orchestrator) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	list, err := o.store.ListTechnicians(ctx)
	if err != nil {
		return nil, o.storeFailure("list_technicians", err)
	}
	return list, nil
}

// NewTask is the intake form of a task.
type NewTask struct {
	Title           string         `json:"title"`
	Description     string         `json:"description,omitempty"`
	RequiredSkills  []string       `json:"required_skills"`
	Location        string         `json:"location,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	Priority        model.Priority `json:"priority"`
}

// CreateTask validates and stores a PENDING task. Priority defaults to
// MEDIUM.
func (o *Orchestrator) CreateTask(ctx context.Context, in NewTask) (model.Task, error) {
	t := model.Task{
		ID:              o.newID(),
		Title:           in.Title,
		Description:     in.Description,
		RequiredSkills:  in.RequiredSkills,
		Location:        in.Location,
		DurationMinutes: in.DurationMinutes,
		Priority:        in.Priority,
		Status:          model.TaskPending,
		CreatedAt:       o.clock(),
	}
	if t.Priority == 0 {
		t.Priority = model.PriorityMedium
	}
	if err := t.Validate(); err != nil {
		return model.Task{}, err
	}
	if err := o.store.CreateTask(ctx, t); err != nil {
		return model.Task{}, o.storeFailure("create_task", err)
	}
	o.logger.Infof("task %s created (%s, %s)", t.ID, t.Title, t.Priority)
	return t, nil
}

// ListTasks returns tasks, optionally filtered by status, newest first.
func (o *Orchestrator) ListTasks(ctx context.Context, status model.TaskStatus) ([]model.Task, error) {
	var (
		list []model.Task
		err  error
	)
	if status == "" {
		list, err = o.store.ListTasks(ctx, store.OrderCreatedDesc)
	} else {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
		}
		list, err = o.store.ListTasksByStatus(ctx, status, store.OrderCreatedDesc)
	}
	if err != nil {
		return nil, o.storeFailure("list_tasks", err)
	}
	return list, nil
}
