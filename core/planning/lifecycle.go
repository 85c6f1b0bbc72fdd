package planning

import (
	"context"
	"errors"

	"github.com/kilianp07/fieldplan/core/events"
	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

const (
	OpStartAssignment    = "start_assignment"
	OpCompleteAssignment = "complete_assignment"
	OpCancelAssignment   = "cancel_assignment"
	OpCancelTask         = "cancel_task"
)

var assignmentTransitions = map[model.AssignmentStatus][]model.AssignmentStatus{
	model.AssignmentPlanned:    {model.AssignmentInProgress, model.AssignmentCancelled},
	model.AssignmentInProgress: {model.AssignmentDone, model.AssignmentCancelled},
}

func canTransition(from, to model.AssignmentStatus) bool {
	for _, s := range assignmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StartAssignment moves a PLANNED assignment and its task to IN_PROGRESS.
func (o *Orchestrator) StartAssignment(ctx context.Context, assignmentID string) (model.Assignment, error) {
	return o.transition(ctx, OpStartAssignment, assignmentID, model.AssignmentInProgress, model.TaskInProgress)
}

// CompleteAssignment moves an IN_PROGRESS assignment and its task to DONE.
func (o *Orchestrator) CompleteAssignment(ctx context.Context, assignmentID string) (model.Assignment, error) {
	return o.transition(ctx, OpCompleteAssignment, assignmentID, model.AssignmentDone, model.TaskDone)
}

// CancelAssignment cancels a live assignment and puts its task back to
// PENDING so it can be planned again.
func (o *Orchestrator) CancelAssignment(ctx context.Context, assignmentID string) (model.Assignment, error) {
	return o.transition(ctx, OpCancelAssignment, assignmentID, model.AssignmentCancelled, model.TaskPending)
}

func (o *Orchestrator) transition(ctx context.Context, op, assignmentID string, to model.AssignmentStatus, taskTo model.TaskStatus) (model.Assignment, error) {
	a, err := o.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return model.Assignment{}, o.storeFailure(op, notFound("assignment", assignmentID, err), "assignment_id", assignmentID)
	}
	defer o.lock(taskKey(a.TaskID), "task")()

	// Reload under the lock; the assignment may have moved meanwhile.
	if a, err = o.store.GetAssignment(ctx, assignmentID); err != nil {
		return model.Assignment{}, o.storeFailure(op, notFound("assignment", assignmentID, err), "assignment_id", assignmentID)
	}
	if !canTransition(a.Status, to) {
		return model.Assignment{}, invalidState("assignment %s is %s and cannot become %s", a.ID, a.Status, to)
	}
	task, err := o.store.GetTask(ctx, a.TaskID)
	if err != nil {
		return model.Assignment{}, o.storeFailure(op, notFound("task", a.TaskID, err), "task_id", a.TaskID)
	}
	if task.Status != taskTo && !task.Status.CanTransition(taskTo) {
		return model.Assignment{}, invalidState("task %s is %s and cannot become %s", task.ID, task.Status, taskTo)
	}

	updated, err := o.setAssignmentStatus(ctx, op, a, to)
	if err != nil {
		return model.Assignment{}, err
	}
	if task.Status != taskTo {
		task.Status = taskTo
		if taskTo == model.TaskPending {
			task.PlannedStart, task.PlannedEnd = nil, nil
		}
		if err := o.store.SaveTask(ctx, task); err != nil {
			return model.Assignment{}, o.storeFailure(op, err, "task_id", task.ID)
		}
	}
	if to == model.AssignmentCancelled {
		o.notifyAssignment(ctx, task, updated)
	}
	o.logger.Infow("assignment status changed", map[string]any{
		"operation":     op,
		"assignment_id": updated.ID,
		"technician_id": updated.TechnicianID,
		"from":          string(a.Status),
		"to":            string(to),
	})
	return updated, nil
}

// CancelTask cancels a PENDING or ASSIGNED task together with its live
// assignment.
func (o *Orchestrator) CancelTask(ctx context.Context, taskID string) (model.Task, error) {
	defer o.lock(taskKey(taskID), "task")()
	op := OpCancelTask

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return model.Task{}, o.storeFailure(op, notFound("task", taskID, err), "task_id", taskID)
	}
	if !task.Status.CanTransition(model.TaskCancelled) {
		return model.Task{}, invalidState("task %s is %s and cannot be cancelled", task.ID, task.Status)
	}
	a, err := o.store.FindByTask(ctx, taskID)
	switch {
	case err == nil:
		if canTransition(a.Status, model.AssignmentCancelled) {
			cancelled, err := o.setAssignmentStatus(ctx, op, a, model.AssignmentCancelled)
			if err != nil {
				return model.Task{}, err
			}
			o.notifyAssignment(ctx, task, cancelled)
		}
	case isStoreMiss(err):
	default:
		return model.Task{}, o.storeFailure(op, err, "task_id", taskID)
	}
	task.Status = model.TaskCancelled
	task.PlannedStart, task.PlannedEnd = nil, nil
	if err := o.store.SaveTask(ctx, task); err != nil {
		return model.Task{}, o.storeFailure(op, err, "task_id", taskID)
	}
	o.logger.Infof("task %s cancelled", task.ID)
	return task, nil
}

// setAssignmentStatus persists the new status and publishes the
// AssignmentUpdated event.
func (o *Orchestrator) setAssignmentStatus(ctx context.Context, op string, a model.Assignment, to model.AssignmentStatus) (model.Assignment, error) {
	from := a.Status
	a.Status = to
	if err := o.store.SaveAssignment(ctx, a); err != nil {
		return model.Assignment{}, o.storeFailure(op, err, "assignment_id", a.ID)
	}
	o.publish(events.PlanningEvent{Kind: events.AssignmentUpdated, Operation: op, Assignment: &a, Previous: from})
	return a, nil
}

func isStoreMiss(err error) bool { return errors.Is(err, store.ErrNotFound) }

// isSkippable reports caller errors that Optimize steps over.
func isSkippable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidState)
}
