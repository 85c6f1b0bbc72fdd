package metrics

import (
	"context"

	"github.com/kilianp07/fieldplan/core/events"
	coremetrics "github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/internal/eventbus"
)

// StartEventCollector subscribes to the planning bus and records assignment
// transitions on sinks implementing LifecycleRecorder. It stops when the
// context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.PlanningEvent], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rec, ok := sink.(coremetrics.LifecycleRecorder)
	if !ok {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if ev.Kind != events.AssignmentUpdated || ev.Assignment == nil {
					continue
				}
				_ = rec.RecordLifecycle(coremetrics.LifecycleEvent{
					AssignmentID: ev.Assignment.ID,
					TechnicianID: ev.Assignment.TechnicianID,
					From:         ev.Previous,
					To:           ev.Assignment.Status,
					Time:         ev.Time,
				})
			}
		}
	}()
}
