package planning

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

const OpSendSchedule = "send_schedule"

// Availability reports the committed and remaining hours of a technician in
// the current week. Remaining hours never go below zero.
func (o *Orchestrator) Availability(ctx context.Context, technicianID string) (model.Availability, error) {
	tech, err := o.store.GetTechnician(ctx, technicianID)
	if err != nil {
		return model.Availability{}, o.storeFailure("availability", notFound("technician", technicianID, err), "technician_id", technicianID)
	}
	now := o.clock()
	used, err := o.detector.WeeklyMinutes(ctx, tech.ID, now)
	if err != nil {
		return model.Availability{}, o.storeFailure("availability", err, "technician_id", technicianID)
	}
	start, end := o.detector.WeekBoundsAt(now)
	hours := used / 60
	return model.Availability{
		TechnicianID:   tech.ID,
		CapacityHours:  tech.CapacityHours,
		HoursUsed:      hours,
		HoursRemaining: math.Max(0, tech.CapacityHours-hours),
		WeekStart:      start,
		WeekEnd:        end,
	}, nil
}

// Schedule lists the PLANNED assignments of a technician ordered by start,
// joined with their task.
func (o *Orchestrator) Schedule(ctx context.Context, technicianID string) (model.Schedule, error) {
	tech, err := o.store.GetTechnician(ctx, technicianID)
	if err != nil {
		return model.Schedule{}, o.storeFailure("schedule", notFound("technician", technicianID, err), "technician_id", technicianID)
	}
	planned, err := o.store.ListByTechnician(ctx, tech.ID, store.StatusPtr(model.AssignmentPlanned))
	if err != nil {
		return model.Schedule{}, o.storeFailure("schedule", err, "technician_id", technicianID)
	}
	out := model.Schedule{
		TechnicianID: tech.ID,
		Name:         tech.Name,
		Email:        tech.Email,
		GeneratedAt:  o.clock(),
		Entries:      make([]model.ScheduleEntry, 0, len(planned)),
	}
	for _, a := range planned {
		task, err := o.store.GetTask(ctx, a.TaskID)
		if err != nil {
			return model.Schedule{}, o.storeFailure("schedule", fmt.Errorf("assignment %s: %w", a.ID, notFound("task", a.TaskID, err)), "technician_id", technicianID)
		}
		out.Entries = append(out.Entries, model.ScheduleEntry{
			AssignmentID:    a.ID,
			TaskID:          task.ID,
			Title:           task.Title,
			Description:     task.Description,
			Location:        task.Location,
			RequiredSkills:  task.RequiredSkills,
			Priority:        task.Priority,
			DurationMinutes: task.DurationMinutes,
			Start:           a.Start,
			End:             a.End,
		})
	}
	return out, nil
}

// SendSchedule builds the schedule of a technician and hands it to the
// notifier. Unlike assignment notices, a delivery failure is returned.
func (o *Orchestrator) SendSchedule(ctx context.Context, technicianID string) (model.Schedule, error) {
	sched, err := o.Schedule(ctx, technicianID)
	if err != nil {
		return model.Schedule{}, err
	}
	if err := o.notifier.SendSchedule(ctx, sched); err != nil {
		return model.Schedule{}, fmt.Errorf("send schedule to %s: %w", technicianID, err)
	}
	o.logger.Infow("schedule sent", map[string]any{
		"operation":     OpSendSchedule,
		"technician_id": technicianID,
		"entries":       len(sched.Entries),
	})
	return sched, nil
}
