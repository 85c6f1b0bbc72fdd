package metrics

import (
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

// DecisionEvent is one orchestrator decision: an assignment committed or
// rejected.
type DecisionEvent struct {
	Operation    string
	TaskID       string
	TechnicianID string
	Success      bool
	Conflict     model.ConflictKind
	Score        float64
	Latency      time.Duration
	Time         time.Time
}

// MetricsSink records planning decisions.
type MetricsSink interface {
	RecordDecision(ev DecisionEvent) error
}

// OptimizeEvent summarises one bulk optimize pass.
type OptimizeEvent struct {
	Attempted         int
	Assigned          int
	MeanUtilization   float64
	StdDevUtilization float64
	Duration          time.Duration
	Time              time.Time
}

// OptimizeRecorder records optimize passes.
type OptimizeRecorder interface {
	RecordOptimize(ev OptimizeEvent) error
}

// SweepEvent counts the conflicts found by a full sweep, per kind.
type SweepEvent struct {
	Counts map[model.ConflictKind]int
	Time   time.Time
}

// SweepRecorder records conflict sweeps.
type SweepRecorder interface {
	RecordSweep(ev SweepEvent) error
}

// LifecycleEvent is an assignment status transition.
type LifecycleEvent struct {
	AssignmentID string
	TechnicianID string
	From         model.AssignmentStatus
	To           model.AssignmentStatus
	Time         time.Time
}

// LifecycleRecorder records assignment status transitions.
type LifecycleRecorder interface {
	RecordLifecycle(ev LifecycleEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordDecision(DecisionEvent) error   { return nil }
func (NopSink) RecordOptimize(OptimizeEvent) error   { return nil }
func (NopSink) RecordSweep(SweepEvent) error         { return nil }
func (NopSink) RecordLifecycle(LifecycleEvent) error { return nil }
