package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/infra/logger"
)

// InfluxConfig holds the connection settings of an InfluxSink.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes planning events to an InfluxDB instance.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx_sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDecision writes one planning_decision point.
func (s *InfluxSink) RecordDecision(ev coremetrics.DecisionEvent) error {
	p := write.NewPointWithMeasurement("planning_decision").
		AddTag("operation", ev.Operation).
		AddTag("task_id", ev.TaskID).
		AddField("success", ev.Success).
		AddField("score", round3(ev.Score)).
		AddField("latency_ms", round3(float64(ev.Latency)/float64(time.Millisecond))).
		SetTime(ev.Time)
	if ev.TechnicianID != "" {
		p.AddTag("technician_id", ev.TechnicianID)
	}
	if ev.Conflict != "" {
		p.AddTag("conflict", string(ev.Conflict))
	}
	return s.write(p)
}

// RecordOptimize writes the summary of an optimize pass.
func (s *InfluxSink) RecordOptimize(ev coremetrics.OptimizeEvent) error {
	p := write.NewPointWithMeasurement("planning_optimize").
		AddField("attempted", ev.Attempted).
		AddField("assigned", ev.Assigned).
		AddField("utilization_mean", round3(ev.MeanUtilization)).
		AddField("utilization_stddev", round3(ev.StdDevUtilization)).
		AddField("duration_ms", round3(float64(ev.Duration)/float64(time.Millisecond))).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordSweep writes one point per conflict kind found.
func (s *InfluxSink) RecordSweep(ev coremetrics.SweepEvent) error {
	for kind, n := range ev.Counts {
		p := write.NewPointWithMeasurement("planning_conflicts").
			AddTag("kind", string(kind)).
			AddField("count", n).
			SetTime(ev.Time)
		if err := s.write(p); err != nil {
			return err
		}
	}
	return nil
}

// RecordLifecycle writes an assignment status transition.
func (s *InfluxSink) RecordLifecycle(ev coremetrics.LifecycleEvent) error {
	p := write.NewPointWithMeasurement("assignment_transition").
		AddTag("technician_id", ev.TechnicianID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddField("assignment_id", ev.AssignmentID).
		SetTime(ev.Time)
	return s.write(p)
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying HTTP client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
