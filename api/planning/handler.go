// Package planning exposes the planning engine over HTTP.
package planning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/fieldplan/core/logger"
	"github.com/kilianp07/fieldplan/core/model"
	core "github.com/kilianp07/fieldplan/core/planning"
	"github.com/kilianp07/fieldplan/pkg/export"
)

// Planner is the engine surface served by the handler.
type Planner interface {
	AutoAssign(ctx context.Context, taskID string, preferredStart *time.Time) (core.Result, error)
	AssignManually(ctx context.Context, taskID, technicianID string, start time.Time) (core.Result, error)
	DetectConflicts(ctx context.Context) (core.ConflictReport, error)
	Reassign(ctx context.Context, taskID string) (core.Result, error)
	Optimize(ctx context.Context) (core.OptimizeResult, error)

	Schedule(ctx context.Context, technicianID string) (model.Schedule, error)
	SendSchedule(ctx context.Context, technicianID string) (model.Schedule, error)
	Availability(ctx context.Context, technicianID string) (model.Availability, error)

	CreateTechnician(ctx context.Context, in core.NewTechnician) (model.Technician, error)
	ListTechnicians(ctx context.Context) ([]model.Technician, error)
	CreateTask(ctx context.Context, in core.NewTask) (model.Task, error)
	ListTasks(ctx context.Context, status model.TaskStatus) ([]model.Task, error)

	StartAssignment(ctx context.Context, assignmentID string) (model.Assignment, error)
	CompleteAssignment(ctx context.Context, assignmentID string) (model.Assignment, error)
	CancelAssignment(ctx context.Context, assignmentID string) (model.Assignment, error)
	CancelTask(ctx context.Context, taskID string) (model.Task, error)
}

type autoAssignRequest struct {
	TaskID         string     `json:"task_id"`
	PreferredStart *time.Time `json:"preferred_start,omitempty"`
}

type assignRequest struct {
	TaskID       string    `json:"task_id"`
	TechnicianID string    `json:"technician_id"`
	Start        time.Time `json:"start"`
}

type handler struct {
	p   Planner
	log logger.Logger
}

// NewHandler returns the HTTP API. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty.
func NewHandler(p Planner, token string, log logger.Logger) http.Handler {
	h := &handler{p: p, log: log}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/planning/auto-assign", h.autoAssign)
	mux.HandleFunc("POST /api/planning/assign", h.assign)
	mux.HandleFunc("GET /api/planning/conflicts", h.conflicts)
	mux.HandleFunc("POST /api/planning/reassign/{taskID}", h.reassign)
	mux.HandleFunc("POST /api/planning/optimize", h.optimize)
	mux.HandleFunc("GET /api/planning/export/{technicianID}", h.export)
	mux.HandleFunc("POST /api/planning/send-schedule/{technicianID}", h.sendSchedule)

	mux.HandleFunc("GET /api/technicians", h.listTechnicians)
	mux.HandleFunc("POST /api/technicians", h.createTechnician)
	mux.HandleFunc("GET /api/technicians/{id}/availability", h.availability)

	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", h.cancelTask)

	mux.HandleFunc("POST /api/assignments/{id}/start", h.lifecycle(p.StartAssignment))
	mux.HandleFunc("POST /api/assignments/{id}/complete", h.lifecycle(p.CompleteAssignment))
	mux.HandleFunc("POST /api/assignments/{id}/cancel", h.lifecycle(p.CancelAssignment))

	return withToken(mux, token)
}

func withToken(next http.Handler, token string) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) autoAssign(w http.ResponseWriter, r *http.Request) {
	var req autoAssignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TaskID == "" {
		h.fail(w, fmt.Errorf("%w: task_id is required", core.ErrInvalidInput))
		return
	}
	res, err := h.p.AutoAssign(r.Context(), req.TaskID, req.PreferredStart)
	h.respond(w, res, err)
}

func (h *handler) assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TaskID == "" || req.TechnicianID == "" || req.Start.IsZero() {
		h.fail(w, fmt.Errorf("%w: task_id, technician_id and start are required", core.ErrInvalidInput))
		return
	}
	res, err := h.p.AssignManually(r.Context(), req.TaskID, req.TechnicianID, req.Start)
	h.respond(w, res, err)
}

func (h *handler) conflicts(w http.ResponseWriter, r *http.Request) {
	rep, err := h.p.DetectConflicts(r.Context())
	h.respond(w, rep, err)
}

func (h *handler) reassign(w http.ResponseWriter, r *http.Request) {
	res, err := h.p.Reassign(r.Context(), r.PathValue("taskID"))
	h.respond(w, res, err)
}

func (h *handler) optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.p.Optimize(r.Context())
	h.respond(w, res, err)
}

// export serves the schedule as JSON, or as CSV with ?format=csv.
func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	s, err := h.p.Schedule(r.Context(), r.PathValue("technicianID"))
	if err != nil || format == "" || format == export.FormatJSON {
		h.respond(w, s, err)
		return
	}
	if format != export.FormatCSV {
		h.fail(w, fmt.Errorf("%w: unknown export format %q", core.ErrInvalidInput, format))
		return
	}
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "schedule-"+s.TechnicianID+".csv"))
	if err := export.WriteCSV(w, s); err != nil && h.log != nil {
		h.log.Errorf("export schedule %s: %v", s.TechnicianID, err)
	}
}

func (h *handler) sendSchedule(w http.ResponseWriter, r *http.Request) {
	s, err := h.p.SendSchedule(r.Context(), r.PathValue("technicianID"))
	h.respond(w, s, err)
}

func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	a, err := h.p.Availability(r.Context(), r.PathValue("id"))
	h.respond(w, a, err)
}

func (h *handler) listTechnicians(w http.ResponseWriter, r *http.Request) {
	list, err := h.p.ListTechnicians(r.Context())
	if list == nil {
		list = []model.Technician{}
	}
	h.respond(w, list, err)
}

func (h *handler) createTechnician(w http.ResponseWriter, r *http.Request) {
	var in core.NewTechnician
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.p.CreateTechnician(r.Context(), in)
	h.respondStatus(w, http.StatusCreated, t, err)
}

func (h *handler) listTasks(w http.ResponseWriter, r *http.Request) {
	list, err := h.p.ListTasks(r.Context(), model.TaskStatus(r.URL.Query().Get("status")))
	if list == nil {
		list = []model.Task{}
	}
	h.respond(w, list, err)
}

func (h *handler) createTask(w http.ResponseWriter, r *http.Request) {
	var in core.NewTask
	if !h.decode(w, r, &in) {
		return
	}
	t, err := h.p.CreateTask(r.Context(), in)
	h.respondStatus(w, http.StatusCreated, t, err)
}

func (h *handler) cancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.p.CancelTask(r.Context(), r.PathValue("id"))
	h.respond(w, t, err)
}

func (h *handler) lifecycle(op func(context.Context, string) (model.Assignment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := op(r.Context(), r.PathValue("id"))
		h.respond(w, a, err)
	}
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		h.fail(w, fmt.Errorf("%w: body: %v", core.ErrInvalidInput, err))
		return false
	}
	return true
}

func (h *handler) respond(w http.ResponseWriter, v any, err error) {
	h.respondStatus(w, http.StatusOK, v, err)
}

func (h *handler) respondStatus(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, status, v)
}

type errorBody struct {
	Error string `json:"error"`
}

// fail maps engine errors to HTTP statuses. Unknown errors get a generic
// body; their detail goes to the log only.
func (h *handler) fail(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if h.log != nil {
			h.log.Errorf("request failed: %v", err)
		}
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

// StatusFor returns the HTTP status matching err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidState), errors.Is(err, core.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
