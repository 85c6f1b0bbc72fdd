package metrics

import (
	"errors"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/core/model"
)

// PromSink exposes planning decisions as Prometheus metrics.
type PromSink struct {
	decisions   *prometheus.CounterVec
	scores      *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
	optimize    *prometheus.GaugeVec
	utilization *prometheus.GaugeVec
	conflicts   *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewPromSink registers planning metrics on the default Prometheus
// registerer. The /metrics endpoint is started separately with
// StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Metrics
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_decisions_total",
		Help: "Assignment decisions by operation and outcome",
	}, []string{"operation", "outcome"})); err != nil {
		return nil, err
	}
	if s.scores, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planning_winner_score",
		Help:    "Score of the technician chosen by automatic assignment",
		Buckets: prometheus.LinearBuckets(-0.2, 0.1, 13),
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planning_decision_latency_seconds",
		Help:    "Time spent deciding an assignment",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if s.optimize, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planning_optimize_tasks",
		Help: "Tasks attempted and assigned by the last optimize pass",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planning_technician_utilization",
		Help: "Weekly utilization across active technicians after the last optimize pass",
	}, []string{"stat"})); err != nil {
		return nil, err
	}
	if s.conflicts, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planning_open_conflicts",
		Help: "Conflicts found by the last sweep, per kind",
	}, []string{"kind"})); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planning_assignment_transitions_total",
		Help: "Assignment status transitions",
	}, []string{"from", "to"})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordDecision counts the decision and observes score and latency.
func (s *PromSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	outcome := "assigned"
	if !ev.Success {
		outcome = strings.ToLower(string(ev.Conflict))
		if outcome == "" {
			outcome = "rejected"
		}
	}
	s.decisions.WithLabelValues(ev.Operation, outcome).Inc()
	if ev.Success && ev.TechnicianID != "" {
		s.scores.WithLabelValues(ev.Operation).Observe(ev.Score)
	}
	if ev.Latency > 0 {
		s.latency.WithLabelValues(ev.Operation).Observe(ev.Latency.Seconds())
	}
	return nil
}

// RecordOptimize sets the optimize and utilization gauges.
func (s *PromSink) RecordOptimize(ev coremetrics.OptimizeEvent) error {
	s.optimize.WithLabelValues("attempted").Set(float64(ev.Attempted))
	s.optimize.WithLabelValues("assigned").Set(float64(ev.Assigned))
	s.utilization.WithLabelValues("mean").Set(ev.MeanUtilization)
	s.utilization.WithLabelValues("stddev").Set(ev.StdDevUtilization)
	return nil
}

// RecordSweep sets the open conflict gauge for every kind, zero included.
func (s *PromSink) RecordSweep(ev coremetrics.SweepEvent) error {
	for _, k := range []model.ConflictKind{
		model.ConflictTimeOverlap,
		model.ConflictNoQualified,
		model.ConflictUrgentUnassigned,
		model.ConflictCapacityExceeded,
	} {
		s.conflicts.WithLabelValues(string(k)).Set(float64(ev.Counts[k]))
	}
	return nil
}

// RecordLifecycle counts an assignment status transition.
func (s *PromSink) RecordLifecycle(ev coremetrics.LifecycleEvent) error {
	s.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	return nil
}
