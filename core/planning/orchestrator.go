// Package planning is the only write path of the engine. The Orchestrator
// decides assignments, records them and keeps task and assignment status
// consistent.
//
// Automatic assignment and Optimize are greedy heuristics: every task is
// decided on its own, in a fixed order, and earlier decisions are never
// revisited.
package planning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldplan/core/conflict"
	"github.com/kilianp07/fieldplan/core/events"
	"github.com/kilianp07/fieldplan/core/logger"
	"github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/monitoring"
	"github.com/kilianp07/fieldplan/core/notify"
	"github.com/kilianp07/fieldplan/core/planning/audit"
	"github.com/kilianp07/fieldplan/core/scoring"
	"github.com/kilianp07/fieldplan/core/store"
	"github.com/kilianp07/fieldplan/internal/eventbus"
)

const (
	OpAutoAssign     = "auto_assign"
	OpAssignManually = "assign_manually"
	OpReassign       = "reassign"
	OpOptimize       = "optimize"
	OpDetect         = "detect_conflicts"
)

// Store is the persistence the orchestrator reads and writes.
type Store interface {
	store.TechnicianStore
	store.TaskStore
	store.AssignmentStore
}

// Orchestrator coordinates scoring, conflict checks and persistence.
type Orchestrator struct {
	store    Store
	detector *conflict.Detector
	engine   scoring.Engine
	locks    *KeyedMutex
	clock    func() time.Time
	newID    func() string
	loc      *time.Location
	notifyOn bool

	logger   logger.Logger
	metrics  metrics.MetricsSink
	bus      *eventbus.TypedBus[events.PlanningEvent]
	audit    audit.Store
	notifier notify.Notifier
	monitor  monitoring.Monitor
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithClock sets the source of the reference instant. It defaults to
// time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.clock = now
		}
	}
}

// WithLocation sets the zone used for week boundaries.
func WithLocation(loc *time.Location) Option {
	return func(o *Orchestrator) { o.loc = loc }
}

// WithConfig applies the planning configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		if cfg.Timezone != "" {
			if loc, err := cfg.Location(); err == nil {
				o.loc = loc
			}
		}
		o.notifyOn = cfg.NotifyAssignments
	}
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithMetrics(s metrics.MetricsSink) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.metrics = s
		}
	}
}

// WithBus publishes planning events on bus.
func WithBus(bus *eventbus.TypedBus[events.PlanningEvent]) Option {
	return func(o *Orchestrator) { o.bus = bus }
}

// WithAudit records every decision in s.
func WithAudit(s audit.Store) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.audit = s
		}
	}
}

// WithNotifier sets how schedules and assignment notices are delivered.
func WithNotifier(n notify.Notifier) Option {
	return func(o *Orchestrator) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithMonitor reports store failures to m instead of the global monitor.
func WithMonitor(m monitoring.Monitor) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.monitor = m
		}
	}
}

// WithIDGenerator replaces the uuid generator used for new records.
func WithIDGenerator(f func() string) Option {
	return func(o *Orchestrator) {
		if f != nil {
			o.newID = f
		}
	}
}

// New builds an orchestrator over s.
func New(s Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    s,
		engine:   scoring.NewEngine(),
		locks:    NewKeyedMutex(),
		clock:    time.Now,
		newID:    uuid.NewString,
		loc:      time.Local,
		logger:   nopLogger{},
		metrics:  metrics.NopSink{},
		audit:    audit.NopStore{},
		notifier: notify.NopNotifier{},
		monitor:  monitoring.Current(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.detector = conflict.NewDetector(s, o.loc)
	return o
}

// Detector exposes the conflict detector bound to the orchestrator store.
func (o *Orchestrator) Detector() *conflict.Detector { return o.detector }

// AutoAssign picks the best qualified technician for a pending task and
// books it at preferredStart, or now when nil.
func (o *Orchestrator) AutoAssign(ctx context.Context, taskID string, preferredStart *time.Time) (Result, error) {
	defer o.lock(taskKey(taskID), "task")()
	return o.autoAssign(ctx, OpAutoAssign, taskID, preferredStart)
}

func (o *Orchestrator) autoAssign(ctx context.Context, op, taskID string, preferredStart *time.Time) (Result, error) {
	began := time.Now()
	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, o.storeFailure(op, notFound("task", taskID, err), "task_id", taskID)
	}
	if task.Status != model.TaskPending {
		return Result{}, invalidState("task %s is %s, expected %s", task.ID, task.Status, model.TaskPending)
	}

	now := o.clock()
	techs, err := o.store.ListActiveTechnicians(ctx)
	if err != nil {
		return Result{}, o.storeFailure(op, err, "task_id", taskID)
	}
	if len(techs) == 0 {
		res := failure("No active technician available", nil, model.Conflict{
			Kind:    model.ConflictNoQualified,
			Message: "No active technician available",
		})
		o.record(ctx, op, task, res, nil, began)
		return res, nil
	}

	type candidate struct {
		tech      model.Technician
		hoursUsed float64
	}
	var candidates []candidate
	for _, tech := range techs {
		if !conflict.Qualifies(tech, task.RequiredSkills) {
			continue
		}
		used, err := o.detector.WeeklyMinutes(ctx, tech.ID, now)
		if err != nil {
			return Result{}, o.storeFailure(op, err, "task_id", taskID, "technician_id", tech.ID)
		}
		if !conflict.FitsCapacity(tech, used, task.DurationMinutes) {
			continue
		}
		candidates = append(candidates, candidate{tech: tech, hoursUsed: used / 60})
	}
	if len(candidates) == 0 {
		res := failure("No qualified technician available",
			[]string{suggestCheckSkills, suggestRaiseCapacity},
			model.Conflict{
				Kind:    model.ConflictNoQualified,
				Message: "No technician has the required skills and remaining weekly capacity",
				TaskID:  task.ID,
			})
		o.record(ctx, op, task, res, nil, began)
		return res, nil
	}

	scores := make([]scoring.Score, 0, len(candidates))
	byID := make(map[string]model.Technician, len(candidates))
	for _, c := range candidates {
		scores = append(scores, o.engine.Score(c.tech, task, c.hoursUsed))
		byID[c.tech.ID] = c.tech
	}
	ranked := scoring.Rank(scores)
	best := ranked[0]
	winner := byID[best.TechnicianID]

	start := now
	if preferredStart != nil {
		start = *preferredStart
	}
	res, err := o.commit(ctx, op, task, winner, start, &best)
	if err != nil {
		return Result{}, err
	}
	o.record(ctx, op, task, res, ranked, began)
	return res, nil
}

// AssignManually books a specific technician for a pending task. Skills,
// overlap and capacity are checked in that order and the first failing
// check is reported.
func (o *Orchestrator) AssignManually(ctx context.Context, taskID, technicianID string, start time.Time) (Result, error) {
	defer o.lock(taskKey(taskID), "task")()
	began := time.Now()
	op := OpAssignManually

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, o.storeFailure(op, notFound("task", taskID, err), "task_id", taskID)
	}
	tech, err := o.store.GetTechnician(ctx, technicianID)
	if err != nil {
		return Result{}, o.storeFailure(op, notFound("technician", technicianID, err), "technician_id", technicianID)
	}
	if task.Status != model.TaskPending {
		return Result{}, invalidState("task %s is %s, expected %s", task.ID, task.Status, model.TaskPending)
	}
	if !tech.Active {
		return Result{}, invalidState("technician %s is inactive", tech.ID)
	}

	if !conflict.Qualifies(tech, task.RequiredSkills) {
		res := failure("Technician lacks the required skills", []string{suggestCheckSkills}, model.Conflict{
			Kind:         model.ConflictNoQualified,
			Message:      fmt.Sprintf("technician %q lacks the required skills", tech.Name),
			TaskID:       task.ID,
			TechnicianID: tech.ID,
		})
		o.record(ctx, op, task, res, nil, began)
		return res, nil
	}

	res, err := o.commitChecked(ctx, op, task, tech, start, nil, func() (*Result, error) {
		ok, err := o.detector.TechnicianHasCapacityFor(ctx, tech, task.DurationMinutes, o.clock())
		if err != nil || ok {
			return nil, err
		}
		r := failure("Weekly capacity exceeded", []string{suggestRaiseCapacity}, model.Conflict{
			Kind:         model.ConflictCapacityExceeded,
			Message:      fmt.Sprintf("technician %q would exceed weekly capacity of %gh", tech.Name, tech.CapacityHours),
			TaskID:       task.ID,
			TechnicianID: tech.ID,
		})
		return &r, nil
	})
	if err != nil {
		return Result{}, err
	}
	o.record(ctx, op, task, res, nil, began)
	return res, nil
}

// DetectConflicts sweeps the whole plan for the current week.
func (o *Orchestrator) DetectConflicts(ctx context.Context) (ConflictReport, error) {
	now := o.clock()
	list, err := o.detector.SweepAllConflicts(ctx, now)
	if err != nil {
		return ConflictReport{}, o.storeFailure(OpDetect, err)
	}
	rep := ConflictReport{Conflicts: list, Counts: make(map[model.ConflictKind]int)}
	for _, c := range list {
		rep.Counts[c.Kind]++
	}
	if r, ok := o.metrics.(metrics.SweepRecorder); ok {
		if err := r.RecordSweep(metrics.SweepEvent{Counts: rep.Counts, Time: now}); err != nil {
			o.logger.Errorf("sweep metrics error: %v", err)
		}
	}
	o.logger.Infof("conflict sweep found %d conflicts", len(list))
	return rep, nil
}

// Reassign cancels the live assignment of a task, returns the task to
// PENDING and runs automatic assignment again. The cancelled assignment is
// kept.
func (o *Orchestrator) Reassign(ctx context.Context, taskID string) (Result, error) {
	defer o.lock(taskKey(taskID), "task")()
	op := OpReassign

	task, err := o.store.GetTask(ctx, taskID)
	if err != nil {
		return Result{}, o.storeFailure(op, notFound("task", taskID, err), "task_id", taskID)
	}
	if task.Status != model.TaskPending && task.Status != model.TaskAssigned {
		return Result{}, invalidState("task %s is %s and cannot be reassigned", task.ID, task.Status)
	}

	prev, err := o.store.FindByTask(ctx, taskID)
	switch {
	case err == nil:
		if prev.Status != model.AssignmentCancelled {
			if _, err := o.setAssignmentStatus(ctx, op, prev, model.AssignmentCancelled); err != nil {
				return Result{}, err
			}
		}
	case isStoreMiss(err):
	default:
		return Result{}, o.storeFailure(op, err, "task_id", taskID)
	}

	if task.Status != model.TaskPending {
		task.Status = model.TaskPending
		task.PlannedStart, task.PlannedEnd = nil, nil
		if err := o.store.SaveTask(ctx, task); err != nil {
			return Result{}, o.storeFailure(op, err, "task_id", taskID)
		}
	}
	return o.autoAssign(ctx, op, taskID, nil)
}

// Optimize runs automatic assignment over every pending task, most urgent
// and oldest first. Tasks that vanish or change state meanwhile are
// skipped; a store failure aborts the pass.
func (o *Orchestrator) Optimize(ctx context.Context) (OptimizeResult, error) {
	began := time.Now()
	pending, err := o.store.ListTasksByStatus(ctx, model.TaskPending, store.OrderPriorityDescCreatedAsc)
	if err != nil {
		return OptimizeResult{}, o.storeFailure(OpOptimize, err)
	}
	out := OptimizeResult{Outcomes: make([]TaskOutcome, 0, len(pending))}
	for _, t := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		out.Attempted++
		res, err := o.optimizeOne(ctx, t.ID)
		if err != nil {
			if isSkippable(err) {
				o.logger.Warnf("optimize: skipping task %s: %v", t.ID, err)
				out.Outcomes = append(out.Outcomes, TaskOutcome{TaskID: t.ID, Error: err.Error()})
				continue
			}
			return out, err
		}
		if res.Success {
			out.Assigned++
		}
		out.Outcomes = append(out.Outcomes, TaskOutcome{TaskID: t.ID, Result: &res})
	}
	load, err := o.LoadReport(ctx)
	if err != nil {
		return out, err
	}
	out.Load = load
	out.Message = fmt.Sprintf("Optimization finished: %d of %d pending tasks assigned", out.Assigned, out.Attempted)

	if r, ok := o.metrics.(metrics.OptimizeRecorder); ok {
		if err := r.RecordOptimize(metrics.OptimizeEvent{
			Attempted:         out.Attempted,
			Assigned:          out.Assigned,
			MeanUtilization:   load.MeanUtilization,
			StdDevUtilization: load.StdDevUtilization,
			Duration:          time.Since(began),
			Time:              o.clock(),
		}); err != nil {
			o.logger.Errorf("optimize metrics error: %v", err)
		}
	}
	o.publish(events.PlanningEvent{Kind: events.OptimizeFinished, Operation: OpOptimize, Assigned: out.Assigned, Attempted: out.Attempted})
	o.logger.Infof("%s", out.Message)
	return out, nil
}

func (o *Orchestrator) optimizeOne(ctx context.Context, taskID string) (Result, error) {
	defer o.lock(taskKey(taskID), "task")()
	return o.autoAssign(ctx, OpOptimize, taskID, nil)
}

// commit books tech for task starting at start after the overlap check.
func (o *Orchestrator) commit(ctx context.Context, op string, task model.Task, tech model.Technician, start time.Time, score *scoring.Score) (Result, error) {
	return o.commitChecked(ctx, op, task, tech, start, score, nil)
}

// commitChecked holds the technician lock across the overlap check and the
// writes. after runs once the overlap check passed and may veto the commit.
func (o *Orchestrator) commitChecked(ctx context.Context, op string, task model.Task, tech model.Technician, start time.Time, score *scoring.Score, after func() (*Result, error)) (Result, error) {
	defer o.lock(technicianKey(tech.ID), "technician")()

	end := start.Add(task.Duration())
	overlap, err := o.detector.HasOverlap(ctx, tech.ID, start, end, "")
	if err != nil {
		return Result{}, o.storeFailure(op, err, "task_id", task.ID, "technician_id", tech.ID)
	}
	if overlap {
		return failure("Schedule conflict detected", []string{suggestAnotherSlot}, model.Conflict{
			Kind:         model.ConflictTimeOverlap,
			Message:      fmt.Sprintf("technician %q already has an assignment between %s and %s", tech.Name, start.Format(time.RFC3339), end.Format(time.RFC3339)),
			TaskID:       task.ID,
			TechnicianID: tech.ID,
		}), nil
	}
	if after != nil {
		veto, err := after()
		if err != nil {
			return Result{}, o.storeFailure(op, err, "task_id", task.ID, "technician_id", tech.ID)
		}
		if veto != nil {
			return *veto, nil
		}
	}

	a := model.Assignment{
		ID:           o.newID(),
		TechnicianID: tech.ID,
		TaskID:       task.ID,
		Start:        start,
		End:          end,
		Status:       model.AssignmentPlanned,
		CreatedAt:    o.clock(),
	}
	if err := o.store.SaveAssignment(ctx, a); err != nil {
		return Result{}, o.storeFailure(op, err, "task_id", task.ID, "technician_id", tech.ID)
	}
	task.Status = model.TaskAssigned
	task.PlannedStart, task.PlannedEnd = &a.Start, &a.End
	if err := o.store.SaveTask(ctx, task); err != nil {
		a.Status = model.AssignmentCancelled
		if cerr := o.store.SaveAssignment(ctx, a); cerr != nil {
			o.logger.Errorf("rollback of assignment %s failed: %v", a.ID, cerr)
		}
		return Result{}, o.storeFailure(op, err, "task_id", task.ID, "technician_id", tech.ID)
	}

	msg := fmt.Sprintf("Task manually assigned to %s", tech.Name)
	if score != nil {
		msg = fmt.Sprintf("Task assigned to %s with a score of %.2f", tech.Name, score.Value)
	}
	o.publish(events.PlanningEvent{Kind: events.AssignmentCreated, Operation: op, Task: &task, Assignment: &a})
	o.notifyAssignment(ctx, task, a)
	return Result{Success: true, Assignment: &a, Score: score, Message: msg}, nil
}

// lock acquires key and observes the wait. The returned function releases it.
func (o *Orchestrator) lock(key, scope string) func() {
	began := time.Now()
	unlock := o.locks.Lock(key)
	lockWait.WithLabelValues(scope).Observe(time.Since(began).Seconds())
	return unlock
}

// record writes the decision to the audit log, metrics, log and bus.
// Failures of those sinks are logged and never fail the operation.
func (o *Orchestrator) record(ctx context.Context, op string, task model.Task, res Result, ranked []scoring.Score, began time.Time) {
	rec := audit.Record{
		Timestamp:  o.clock(),
		Operation:  op,
		TaskID:     task.ID,
		Success:    res.Success,
		Candidates: ranked,
		Conflicts:  res.Conflicts,
		Message:    res.Message,
	}
	ev := metrics.DecisionEvent{Operation: op, TaskID: task.ID, Success: res.Success, Latency: time.Since(began), Time: rec.Timestamp}
	if res.Assignment != nil {
		rec.TechnicianID = res.Assignment.TechnicianID
		rec.AssignmentID = res.Assignment.ID
		ev.TechnicianID = res.Assignment.TechnicianID
	}
	if res.Score != nil {
		rec.Score = res.Score.Value
		ev.Score = res.Score.Value
	}
	if len(res.Conflicts) > 0 {
		ev.Conflict = res.Conflicts[0].Kind
		if rec.TechnicianID == "" {
			rec.TechnicianID = res.Conflicts[0].TechnicianID
		}
	}
	if err := o.audit.Append(ctx, rec); err != nil {
		o.logger.Errorf("audit append failed: %v", err)
	}
	if err := o.metrics.RecordDecision(ev); err != nil {
		o.logger.Errorf("metrics error: %v", err)
	}
	fields := logger.Fields{"operation": op, "task_id": task.ID, "success": res.Success}
	if ev.TechnicianID != "" {
		fields["technician_id"] = ev.TechnicianID
		fields["score"] = ev.Score
	}
	if ev.Conflict != "" {
		fields["conflict"] = string(ev.Conflict)
	}
	o.logger.Infow(res.Message, fields)
	if !res.Success {
		o.publish(events.PlanningEvent{Kind: events.ConflictRaised, Operation: op, Task: &task, Conflicts: res.Conflicts})
	}
}

func (o *Orchestrator) publish(ev events.PlanningEvent) {
	if o.bus == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = o.clock()
	}
	o.bus.Publish(ev)
}

func (o *Orchestrator) notifyAssignment(ctx context.Context, task model.Task, a model.Assignment) {
	if !o.notifyOn {
		return
	}
	n := notify.AssignmentNotice{
		TechnicianID: a.TechnicianID,
		AssignmentID: a.ID,
		TaskID:       task.ID,
		Title:        task.Title,
		Status:       a.Status,
		Start:        a.Start,
		End:          a.End,
	}
	if err := o.notifier.NotifyAssignment(ctx, n); err != nil {
		o.logger.Warnf("notify technician %s: %v", a.TechnicianID, err)
	}
}

// storeFailure counts and reports err unless it is a caller error
// (not found, invalid state), then returns it unchanged.
func (o *Orchestrator) storeFailure(op string, err error, kv ...string) error {
	if err == nil || isSkippable(err) {
		return err
	}
	storeFailures.WithLabelValues(op).Inc()
	monitoring.CaptureOp(o.monitor, "planning", op, err, kv...)
	o.logger.Errorf("%s: %v", op, err)
	return err
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any)         {}
func (nopLogger) Debugw(string, map[string]any) {}
func (nopLogger) Infof(string, ...any)          {}
func (nopLogger) Infow(string, map[string]any)  {}
func (nopLogger) Warnf(string, ...any)          {}
func (nopLogger) Errorf(string, ...any)         {}
