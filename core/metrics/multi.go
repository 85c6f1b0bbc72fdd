package metrics

// MultiSink fans events out to several sinks. Forwarding stops at the
// first error, which is returned.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordDecision(ev DecisionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordDecision(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOptimize forwards to the sinks implementing OptimizeRecorder.
func (m *MultiSink) RecordOptimize(ev OptimizeEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(OptimizeRecorder); ok {
			if err := r.RecordOptimize(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordSweep forwards to the sinks implementing SweepRecorder.
func (m *MultiSink) RecordSweep(ev SweepEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(SweepRecorder); ok {
			if err := r.RecordSweep(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordLifecycle forwards to the sinks implementing LifecycleRecorder.
func (m *MultiSink) RecordLifecycle(ev LifecycleEvent) error {
	for _, s := range m.Sinks {
		if r, ok := s.(LifecycleRecorder); ok {
			if err := r.RecordLifecycle(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
