package planning

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	lockWait      *prometheus.HistogramVec
	storeFailures *prometheus.CounterVec
)

func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec) {
	wait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "planning_lock_wait_seconds",
			Help:    "Time spent waiting for a task or technician lock",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"scope"},
	)
	fail := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "planning_store_failures_total",
			Help: "Store failures surfaced by planning operations",
		},
		[]string{"operation"},
	)
	return wait, fail
}

func init() {
	lockWait, storeFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planning metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(lockWait, storeFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	lockWait, storeFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
