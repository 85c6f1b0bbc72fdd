package planning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldplan/core/model"
)

func TestCreateTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tech, err := f.orch.CreateTechnician(ctx, NewTechnician{Name: "Jean", Email: "jean@example.com", Skills: []string{"electricity"}})
	require.NoError(t, err)
	assert.Equal(t, "a001", tech.ID)
	assert.True(t, tech.Active)
	assert.Equal(t, float64(model.DefaultCapacityHours), tech.CapacityHours)
	assert.True(t, tech.CreatedAt.Equal(ref))

	_, err = f.orch.CreateTechnician(ctx, NewTechnician{Name: "Jean B", Email: "JEAN@example.com"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = f.orch.CreateTechnician(ctx, NewTechnician{Name: "", Email: "nope"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	inactive := false
	off, err := f.orch.CreateTechnician(ctx, NewTechnician{Name: "Off", Email: "off@example.com", CapacityHours: 20, Active: &inactive})
	require.NoError(t, err)
	assert.False(t, off.Active)
	assert.Equal(t, 20.0, off.CapacityHours)

	list, err := f.orch.ListTechnicians(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCreateTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.orch.CreateTask(ctx, NewTask{Title: "Install meter", RequiredSkills: []string{"electricity"}, DurationMinutes: 120})
	require.NoError(t, err)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)

	for _, d := range []int{0, 14, 481} {
		_, err := f.orch.CreateTask(ctx, NewTask{Title: "bad", DurationMinutes: d})
		assert.ErrorIs(t, err, ErrInvalidInput, "duration %d", d)
	}

	urgent, err := f.orch.CreateTask(ctx, NewTask{Title: "Leak", DurationMinutes: 30, Priority: model.PriorityUrgent})
	require.NoError(t, err)

	all, err := f.orch.ListTasks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := f.orch.ListTasks(ctx, model.TaskPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.orch.ListTasks(ctx, "LOST")
	assert.ErrorIs(t, err, ErrInvalidInput)

	res, err := f.orch.AutoAssign(ctx, urgent.ID, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
}
