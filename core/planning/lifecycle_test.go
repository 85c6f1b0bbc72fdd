package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldplan/core/events"
	"github.com/kilianp07/fieldplan/core/model"
)

func assigned(t *testing.T, f *fixture, taskID, techID string) model.Assignment {
	t.Helper()
	res, err := f.orch.AssignManually(context.Background(), taskID, techID, ref)
	require.NoError(t, err)
	require.True(t, res.Success)
	return *res.Assignment
}

func TestAssignmentLifecycle(t *testing.T) {
	f := newFixture(t)
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")
	ctx := context.Background()
	sub := f.bus.Subscribe()

	started, err := f.orch.StartAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentInProgress, started.Status)
	assert.Equal(t, model.TaskInProgress, f.getTask(t, "k1").Status)

	ev := <-sub
	assert.Equal(t, events.AssignmentUpdated, ev.Kind)
	assert.Equal(t, model.AssignmentPlanned, ev.Previous)
	assert.Equal(t, model.AssignmentInProgress, ev.Assignment.Status)

	_, err = f.orch.StartAssignment(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	done, err := f.orch.CompleteAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentDone, done.Status)
	assert.Equal(t, model.TaskDone, f.getTask(t, "k1").Status)

	_, err = f.orch.CancelAssignment(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "done is terminal")
}

func TestCompleteRequiresStart(t *testing.T) {
	f := newFixture(t)
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")

	_, err := f.orch.CompleteAssignment(context.Background(), a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.orch.StartAssignment(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelAssignmentReturnsTaskToPending(t *testing.T) {
	f := newFixture(t, WithConfig(Config{NotifyAssignments: true}))
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")

	cancelled, err := f.orch.CancelAssignment(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCancelled, cancelled.Status)

	task := f.getTask(t, "k1")
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Nil(t, task.PlannedStart)
	assert.Nil(t, task.PlannedEnd)

	require.Len(t, f.notifier.notices, 2)
	assert.Equal(t, model.AssignmentCancelled, f.notifier.notices[1].Status)

	// The freed slot can be booked again.
	again := assigned(t, f, "k1", "a")
	assert.NotEqual(t, a.ID, again.ID)
}

func TestCancelTask(t *testing.T) {
	f := newFixture(t)
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	f.task(t, "k2", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")
	ctx := context.Background()

	task, err := f.orch.CancelTask(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, model.TaskCancelled, task.Status)
	got, err := f.store.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentCancelled, got.Status)

	_, err = f.orch.CancelTask(ctx, "k2")
	require.NoError(t, err, "a task without assignment can be cancelled")

	_, err = f.orch.CancelTask(ctx, "k1")
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = f.orch.CancelTask(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelTaskRejectsWorkInProgress(t *testing.T) {
	f := newFixture(t)
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")
	_, err := f.orch.StartAssignment(context.Background(), a.ID)
	require.NoError(t, err)

	_, err = f.orch.CancelTask(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelAssignmentRejectsWorkInProgress(t *testing.T) {
	f := newFixture(t)
	f.tech(t, "a", "A", 40)
	f.task(t, "k1", 60, model.PriorityMedium)
	a := assigned(t, f, "k1", "a")
	ctx := context.Background()
	_, err := f.orch.StartAssignment(ctx, a.ID)
	require.NoError(t, err)

	_, err = f.orch.CancelAssignment(ctx, a.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, model.TaskInProgress, f.getTask(t, "k1").Status)
	got, err := f.store.GetAssignment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssignmentInProgress, got.Status)

	res, err := f.orch.Optimize(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Attempted, "work in progress is never re-booked")
}
