package planning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldplan/core/model"
	core "github.com/kilianp07/fieldplan/core/planning"
	"github.com/kilianp07/fieldplan/core/planning/audit"
	"github.com/kilianp07/fieldplan/core/store"
)

var now = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func newServer(t *testing.T, token string) (*httptest.Server, *core.Orchestrator) {
	t.Helper()
	seq := 0
	orch := core.New(store.NewMemoryStore(),
		core.WithClock(func() time.Time { return now }),
		core.WithLocation(time.UTC),
		core.WithIDGenerator(func() string { seq++; return fmt.Sprintf("id%d", seq) }),
	)
	srv := httptest.NewServer(NewHandler(orch, token, nil))
	t.Cleanup(srv.Close)
	return srv, orch
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestEndToEndAssignFlow(t *testing.T) {
	srv, _ := newServer(t, "")

	var tech model.Technician
	code := do(t, srv, http.MethodPost, "/api/technicians", map[string]any{
		"name": "Jean", "email": "jean@example.com", "skills": []string{"electricity"}, "capacity_hours": 40,
	}, &tech)
	require.Equal(t, http.StatusCreated, code)

	var task model.Task
	code = do(t, srv, http.MethodPost, "/api/tasks", map[string]any{
		"title": "Install meter", "required_skills": []string{"electricity"}, "duration_minutes": 120, "priority": "HIGH",
	}, &task)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, model.PriorityHigh, task.Priority)

	var res core.Result
	code = do(t, srv, http.MethodPost, "/api/planning/auto-assign", map[string]any{"task_id": task.ID}, &res)
	require.Equal(t, http.StatusOK, code)
	require.True(t, res.Success)
	assert.Equal(t, tech.ID, res.Assignment.TechnicianID)
	assert.True(t, res.Assignment.Start.Equal(now))

	var sched model.Schedule
	code = do(t, srv, http.MethodGet, "/api/planning/export/"+tech.ID, nil, &sched)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, sched.Entries, 1)
	assert.Equal(t, "Install meter", sched.Entries[0].Title)

	resp, err := srv.Client().Get(srv.URL + "/api/planning/export/" + tech.ID + "?format=csv")
	require.NoError(t, err)
	csvBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(csvBody), res.Assignment.ID+","+task.ID+",Install meter,HIGH")

	var av model.Availability
	code = do(t, srv, http.MethodGet, "/api/technicians/"+tech.ID+"/availability", nil, &av)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 2.0, av.HoursUsed)
	assert.Equal(t, 38.0, av.HoursRemaining)

	var a model.Assignment
	code = do(t, srv, http.MethodPost, "/api/assignments/"+res.Assignment.ID+"/start", nil, &a)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.AssignmentInProgress, a.Status)

	var e errorBody
	code = do(t, srv, http.MethodPost, "/api/assignments/"+res.Assignment.ID+"/start", nil, &e)
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, e.Error, "cannot become")

	var tasks []model.Task
	code = do(t, srv, http.MethodGet, "/api/tasks?status=IN_PROGRESS", nil, &tasks)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, tasks, 1)
}

func TestConflictsAreData(t *testing.T) {
	srv, orch := newServer(t, "")
	ctx := context.Background()
	tech, err := orch.CreateTechnician(ctx, core.NewTechnician{Name: "Jean", Email: "jean@example.com"})
	require.NoError(t, err)
	k1, err := orch.CreateTask(ctx, core.NewTask{Title: "a", DurationMinutes: 120})
	require.NoError(t, err)
	k2, err := orch.CreateTask(ctx, core.NewTask{Title: "b", DurationMinutes: 120, Priority: model.PriorityUrgent})
	require.NoError(t, err)

	var res core.Result
	code := do(t, srv, http.MethodPost, "/api/planning/assign", map[string]any{"task_id": k1.ID, "technician_id": tech.ID, "start": now}, &res)
	require.Equal(t, http.StatusOK, code)
	require.True(t, res.Success)

	code = do(t, srv, http.MethodPost, "/api/planning/assign", map[string]any{"task_id": k2.ID, "technician_id": tech.ID, "start": now.Add(time.Hour)}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, res.Success)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, model.ConflictTimeOverlap, res.Conflicts[0].Kind)

	var rep core.ConflictReport
	code = do(t, srv, http.MethodGet, "/api/planning/conflicts", nil, &rep)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, rep.Counts[model.ConflictUrgentUnassigned])

	var opt core.OptimizeResult
	code = do(t, srv, http.MethodPost, "/api/planning/optimize", nil, &opt)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, opt.Attempted)
	assert.Zero(t, opt.Assigned)

	code = do(t, srv, http.MethodPost, "/api/planning/reassign/"+k1.ID, nil, &res)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
}

func TestErrorMapping(t *testing.T) {
	srv, orch := newServer(t, "")
	_, err := orch.CreateTechnician(context.Background(), core.NewTechnician{Name: "Jean", Email: "jean@example.com"})
	require.NoError(t, err)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown task", http.MethodPost, "/api/planning/auto-assign", map[string]any{"task_id": "ghost"}, http.StatusNotFound},
		{"missing task id", http.MethodPost, "/api/planning/auto-assign", map[string]any{}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/planning/auto-assign", map[string]any{"task": "x"}, http.StatusBadRequest},
		{"manual without start", http.MethodPost, "/api/planning/assign", map[string]any{"task_id": "a", "technician_id": "b"}, http.StatusBadRequest},
		{"unknown technician export", http.MethodGet, "/api/planning/export/ghost", nil, http.StatusNotFound},
		{"unknown export format", http.MethodGet, "/api/planning/export/id1?format=xml", nil, http.StatusBadRequest},
		{"invalid task", http.MethodPost, "/api/tasks", map[string]any{"title": "x", "duration_minutes": 5}, http.StatusBadRequest},
		{"duplicate email", http.MethodPost, "/api/technicians", map[string]any{"name": "J", "email": "JEAN@example.com"}, http.StatusConflict},
		{"unknown status", http.MethodGet, "/api/tasks?status=LOST", nil, http.StatusBadRequest},
		{"cancel unknown task", http.MethodPost, "/api/tasks/ghost/cancel", nil, http.StatusNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var e errorBody
			code := do(t, srv, c.method, c.path, c.body, &e)
			assert.Equal(t, c.want, code)
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(fmt.Errorf("x: %w", core.ErrNotFound)))
	assert.Equal(t, http.StatusConflict, StatusFor(core.ErrInvalidState))
	assert.Equal(t, http.StatusBadRequest, StatusFor(core.ErrInvalidInput))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("disk")))
}

func TestTokenRequired(t *testing.T) {
	srv, _ := newServer(t, "tok")

	resp, err := srv.Client().Get(srv.URL + "/api/technicians")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/technicians", nil)
	req.Header.Set("Authorization", "Bearer tok")
	resp, err = srv.Client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDecisionHandler(t *testing.T) {
	st := &memAudit{}
	require.NoError(t, st.Append(context.Background(), audit.Record{Timestamp: now, Operation: core.OpAutoAssign, TaskID: "k1", TechnicianID: "t1", Success: true}))
	require.NoError(t, st.Append(context.Background(), audit.Record{Timestamp: now, Operation: core.OpAutoAssign, TaskID: "k2"}))
	srv := httptest.NewServer(NewDecisionHandler(st, ""))
	defer srv.Close()

	var recs []audit.Record
	code := do(t, srv, http.MethodGet, "/api/planning/decisions?task_id=k1", nil, &recs)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, recs, 1)
	assert.Equal(t, "t1", recs[0].TechnicianID)

	var e errorBody
	code = do(t, srv, http.MethodGet, "/api/planning/decisions?start=yesterday", nil, &e)
	assert.Equal(t, http.StatusBadRequest, code)
}

type memAudit struct{ recs []audit.Record }

func (m *memAudit) Append(_ context.Context, r audit.Record) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memAudit) Query(_ context.Context, q audit.Query) ([]audit.Record, error) {
	var out []audit.Record
	for _, r := range m.recs {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memAudit) Close() error { return nil }
