package planning

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldplan/core/events"
	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/notify"
	"github.com/kilianp07/fieldplan/core/planning/audit"
	"github.com/kilianp07/fieldplan/core/store"
	"github.com/kilianp07/fieldplan/internal/eventbus"
)

// Wednesday 2026-03-04 09:00 UTC.
var ref = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

var errDisk = errors.New("disk full")

type fixture struct {
	store    *store.MemoryStore
	orch     *Orchestrator
	audit    *recordingAudit
	notifier *recordingNotifier
	monitor  *recordMonitor
	bus      *eventbus.TypedBus[events.PlanningEvent]
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	return newFixtureWithStore(t, store.NewMemoryStore(), opts...)
}

func newFixtureWithStore(t *testing.T, s *store.MemoryStore, opts ...Option) *fixture {
	t.Helper()
	return newFixtureOver(t, s, s, opts...)
}

// newFixtureOver lets tests put a failing wrapper in front of mem.
func newFixtureOver(t *testing.T, mem *store.MemoryStore, s Store, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:    mem,
		audit:    &recordingAudit{},
		notifier: &recordingNotifier{},
		monitor:  &recordMonitor{},
		bus:      eventbus.NewTypedWithBuffer[events.PlanningEvent](64),
	}
	t.Cleanup(f.bus.Close)
	var seq atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return ref }),
		WithLocation(time.UTC),
		WithIDGenerator(func() string { return fmt.Sprintf("a%03d", seq.Add(1)) }),
		WithAudit(f.audit),
		WithNotifier(f.notifier),
		WithMonitor(f.monitor),
		WithBus(f.bus),
	}
	f.orch = New(s, append(base, opts...)...)
	return f
}

func (f *fixture) tech(t *testing.T, id, name string, capacity float64, skills ...string) model.Technician {
	t.Helper()
	tech := model.Technician{
		ID:            id,
		Name:          name,
		Email:         id + "@example.com",
		Skills:        skills,
		Active:        true,
		CapacityHours: capacity,
	}
	require.NoError(t, f.store.CreateTechnician(context.Background(), tech))
	return tech
}

func (f *fixture) task(t *testing.T, id string, minutes int, prio model.Priority, skills ...string) model.Task {
	t.Helper()
	task := model.Task{
		ID:              id,
		Title:           "task " + id,
		RequiredSkills:  skills,
		DurationMinutes: minutes,
		Priority:        prio,
		Status:          model.TaskPending,
		CreatedAt:       ref.Add(-time.Hour),
	}
	require.NoError(t, f.store.CreateTask(context.Background(), task))
	return task
}

func (f *fixture) assignment(t *testing.T, id, techID, taskID string, start time.Time, minutes int) {
	t.Helper()
	require.NoError(t, f.store.SaveAssignment(context.Background(), model.Assignment{
		ID:           id,
		TechnicianID: techID,
		TaskID:       taskID,
		Start:        start,
		End:          start.Add(time.Duration(minutes) * time.Minute),
		Status:       model.AssignmentPlanned,
		CreatedAt:    ref.Add(-time.Hour),
	}))
}

func (f *fixture) getTask(t *testing.T, id string) model.Task {
	t.Helper()
	task, err := f.store.GetTask(context.Background(), id)
	require.NoError(t, err)
	return task
}

func (f *fixture) assignments(t *testing.T, techID string) []model.Assignment {
	t.Helper()
	list, err := f.store.ListByTechnician(context.Background(), techID, nil)
	require.NoError(t, err)
	return list
}

type recordingAudit struct {
	mu      sync.Mutex
	records []audit.Record
	err     error
}

func (r *recordingAudit) Append(_ context.Context, rec audit.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.err
}

func (r *recordingAudit) Query(_ context.Context, q audit.Query) ([]audit.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Record
	for _, rec := range r.records {
		if q.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *recordingAudit) Close() error { return nil }

type recordingNotifier struct {
	mu        sync.Mutex
	notices   []notify.AssignmentNotice
	schedules []model.Schedule
	err       error
}

func (n *recordingNotifier) NotifyAssignment(_ context.Context, a notify.AssignmentNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, a)
	return n.err
}

func (n *recordingNotifier) SendSchedule(_ context.Context, s model.Schedule) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.schedules = append(n.schedules, s)
	return n.err
}

type captured struct {
	err  error
	tags map[string]string
}

type recordMonitor struct {
	mu     sync.Mutex
	events []captured
}

func (m *recordMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, captured{err: err, tags: tags})
}

func (m *recordMonitor) Recover()              {}
func (m *recordMonitor) Flush(d time.Duration) {}

// brokenStore fails the calls selected by its flags.
type brokenStore struct {
	*store.MemoryStore
	failActive     bool
	failSaveTask   bool
	failListAssign bool
}

func (b *brokenStore) ListActiveTechnicians(ctx context.Context) ([]model.Technician, error) {
	if b.failActive {
		return nil, errDisk
	}
	return b.MemoryStore.ListActiveTechnicians(ctx)
}

func (b *brokenStore) SaveTask(ctx context.Context, t model.Task) error {
	if b.failSaveTask {
		return errDisk
	}
	return b.MemoryStore.SaveTask(ctx, t)
}

func (b *brokenStore) ListByTechnician(ctx context.Context, id string, status *model.AssignmentStatus) ([]model.Assignment, error) {
	if b.failListAssign {
		return nil, errDisk
	}
	return b.MemoryStore.ListByTechnician(ctx, id, status)
}
