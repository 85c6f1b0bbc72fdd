// Package conflict validates the feasibility of assignments and sweeps the
// whole plan for constraint violations.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

// Store is the subset of the data store the detector reads from.
type Store interface {
	store.TechnicianStore
	store.TaskStore
	store.AssignmentStore
}

// Detector runs query-driven checks against the store. It holds no state
// besides its collaborators and is safe for concurrent use.
type Detector struct {
	store Store
	loc   *time.Location
}

// NewDetector returns a detector computing week boundaries in loc. A nil
// loc uses time.Local.
func NewDetector(s Store, loc *time.Location) *Detector {
	if loc == nil {
		loc = time.Local
	}
	return &Detector{store: s, loc: loc}
}

// Location returns the time zone used for week boundaries.
func (d *Detector) Location() *time.Location { return d.loc }

// HasOverlap reports whether a non-cancelled assignment of the technician
// intersects [start,end). excludeAssignmentID is ignored when empty.
func (d *Detector) HasOverlap(ctx context.Context, technicianID string, start, end time.Time, excludeAssignmentID string) (bool, error) {
	n, err := d.store.CountOverlapping(ctx, technicianID, start, end, excludeAssignmentID)
	if err != nil {
		return false, fmt.Errorf("count overlapping: %w", err)
	}
	return n > 0, nil
}

// HasRequiredSkills reports whether the technician holds every required
// skill. It is false, without error, for an unknown technician.
func (d *Detector) HasRequiredSkills(ctx context.Context, technicianID string, required []string) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}
	tech, ok, err := d.lookup(ctx, technicianID)
	if err != nil || !ok {
		return false, err
	}
	return Qualifies(tech, required), nil
}

// Qualifies is the in-memory form of HasRequiredSkills.
func Qualifies(tech model.Technician, required []string) bool {
	return tech.SkillSet().CoversAll(required)
}

// HasCapacityFor reports whether extraMinutes still fit in the
// technician's weekly capacity for the week containing at. It is false,
// without error, for an unknown technician.
func (d *Detector) HasCapacityFor(ctx context.Context, technicianID string, extraMinutes int, at time.Time) (bool, error) {
	tech, ok, err := d.lookup(ctx, technicianID)
	if err != nil || !ok {
		return false, err
	}
	return d.TechnicianHasCapacityFor(ctx, tech, extraMinutes, at)
}

// TechnicianHasCapacityFor is HasCapacityFor for an already loaded technician.
func (d *Detector) TechnicianHasCapacityFor(ctx context.Context, tech model.Technician, extraMinutes int, at time.Time) (bool, error) {
	used, err := d.WeeklyMinutes(ctx, tech.ID, at)
	if err != nil {
		return false, err
	}
	return FitsCapacity(tech, used, extraMinutes), nil
}

// FitsCapacity reports whether extraMinutes on top of usedMinutes stay
// within the technician's weekly limit. Reaching the limit exactly fits.
func FitsCapacity(tech model.Technician, usedMinutes float64, extraMinutes int) bool {
	return usedMinutes+float64(extraMinutes) <= tech.CapacityMinutes()
}

// WeeklyMinutes sums the committed minutes of the technician's assignments
// starting within the week of at. Cancelled assignments do not count.
func (d *Detector) WeeklyMinutes(ctx context.Context, technicianID string, at time.Time) (float64, error) {
	list, err := d.store.ListByTechnician(ctx, technicianID, nil)
	if err != nil {
		return 0, fmt.Errorf("list assignments: %w", err)
	}
	start, end := WeekBounds(at, d.loc)
	var total float64
	for _, a := range list {
		if !a.Live() {
			continue
		}
		if a.Start.Before(start) || !a.Start.Before(end) {
			continue
		}
		total += a.Minutes()
	}
	return total, nil
}

// FindUnassignedUrgent returns every pending task with URGENT priority,
// oldest first.
func (d *Detector) FindUnassignedUrgent(ctx context.Context) ([]model.Task, error) {
	pending, err := d.store.ListTasksByStatus(ctx, model.TaskPending, store.OrderCreatedAsc)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	var res []model.Task
	for _, t := range pending {
		if t.Priority == model.PriorityUrgent {
			res = append(res, t)
		}
	}
	return res, nil
}

// SweepAllConflicts reports, in order, unassigned urgent tasks, active
// technicians over capacity for the week of at, and pending tasks that no
// active technician is qualified for.
func (d *Detector) SweepAllConflicts(ctx context.Context, at time.Time) ([]model.Conflict, error) {
	conflicts := []model.Conflict{}

	urgent, err := d.FindUnassignedUrgent(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range urgent {
		conflicts = append(conflicts, model.Conflict{
			Kind:    model.ConflictUrgentUnassigned,
			Message: fmt.Sprintf("urgent task %q is not assigned", t.Title),
			TaskID:  t.ID,
		})
	}

	techs, err := d.store.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active technicians: %w", err)
	}
	for _, tech := range techs {
		ok, err := d.TechnicianHasCapacityFor(ctx, tech, 0, at)
		if err != nil {
			return nil, err
		}
		if !ok {
			conflicts = append(conflicts, model.Conflict{
				Kind:         model.ConflictCapacityExceeded,
				Message:      fmt.Sprintf("technician %q exceeded weekly capacity of %gh", tech.Name, tech.CapacityHours),
				TechnicianID: tech.ID,
			})
		}
	}

	pending, err := d.store.ListTasksByStatus(ctx, model.TaskPending, store.OrderCreatedAsc)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	idx := NewSkillIndex(techs)
	for _, t := range pending {
		if idx.AnyQualified(t.RequiredSkills) {
			continue
		}
		conflicts = append(conflicts, model.Conflict{
			Kind:    model.ConflictNoQualified,
			Message: fmt.Sprintf("no qualified technician for task %q", t.Title),
			TaskID:  t.ID,
		})
	}
	return conflicts, nil
}

func (d *Detector) lookup(ctx context.Context, id string) (model.Technician, bool, error) {
	tech, err := d.store.GetTechnician(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.Technician{}, false, nil
	}
	if err != nil {
		return model.Technician{}, false, fmt.Errorf("get technician: %w", err)
	}
	return tech, true, nil
}
