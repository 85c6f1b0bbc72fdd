package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/core/model"
)

type capture struct {
	mu     sync.Mutex
	bodies []string
}

func (c *capture) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, strings.TrimSpace(string(data)))
		c.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func line(p *write.Point) string {
	return strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
}

func TestInfluxSink_RecordDecision(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Token: "token", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.DecisionEvent{
		Operation:    "auto_assign",
		TaskID:       "t1",
		TechnicianID: "jean",
		Success:      true,
		Score:        0.91234,
		Latency:      2 * time.Millisecond,
		Time:         now,
	}
	if err := sink.RecordDecision(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("planning_decision").
		AddTag("operation", "auto_assign").
		AddTag("task_id", "t1").
		AddField("success", true).
		AddField("score", 0.912).
		AddField("latency_ms", 2.0).
		SetTime(now)
	p.AddTag("technician_id", "jean")
	if len(c.bodies) != 1 || c.bodies[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", c.bodies)
	}
}

func TestInfluxSink_RecordConflictDecision(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL + "/api/v2/write", Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.DecisionEvent{Operation: "assign_manually", TaskID: "t2", Conflict: model.ConflictTimeOverlap, Time: now}
	if err := sink.RecordDecision(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("planning_decision").
		AddTag("operation", "assign_manually").
		AddTag("task_id", "t2").
		AddField("success", false).
		AddField("score", 0.0).
		AddField("latency_ms", 0.0).
		SetTime(now)
	p.AddTag("conflict", "TIME_OVERLAP")
	if len(c.bodies) != 1 || c.bodies[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", c.bodies)
	}
}

func TestInfluxSink_RecordOptimize(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	sink := NewInfluxSink(InfluxConfig{URL: srv.URL, Org: "org", Bucket: "bucket"})
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.OptimizeEvent{Attempted: 4, Assigned: 3, MeanUtilization: 0.5, StdDevUtilization: 0.25, Time: now}
	if err := sink.RecordOptimize(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("planning_optimize").
		AddField("attempted", 4).
		AddField("assigned", 3).
		AddField("utilization_mean", 0.5).
		AddField("utilization_stddev", 0.25).
		AddField("duration_ms", 0.0).
		SetTime(now)
	if len(c.bodies) != 1 || c.bodies[0] != line(p) {
		t.Errorf("unexpected bodies: %#v", c.bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(InfluxConfig{URL: srv.URL + "/api/v2/write", Token: "tok", Org: "org", Bucket: "bucket"})
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
