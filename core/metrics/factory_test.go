package metrics_test

import (
	"encoding/json"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/fieldplan/core/factory"
	metrics "github.com/kilianp07/fieldplan/core/metrics"
	_ "github.com/kilianp07/fieldplan/infra/metrics"
)

/*
TestMetricsFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop sink
	- unknown type returns error
*/
func TestMetricsFactory_Builtins(t *testing.T) {
	s, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestNewMetricsSink_Multi(t *testing.T) {
	s, err := metrics.NewMetricsSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	s, err = metrics.NewMetricsSink([]factory.ModuleConfig{{Type: "nop"}, {Type: "nop"}})
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}

func TestMetricsConfigDecodeYAML(t *testing.T) {
	data := `prometheus_addr: ":9100"
sinks:
  - type: nop
  - type: nop
`
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(data), &raw); err != nil {
		t.Fatalf("yaml unmarshal: %v", err)
	}
	var cfg metrics.Config
	if err := factory.Decode(raw, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.PrometheusAddr != ":9100" || len(cfg.Sinks) != 2 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := metrics.NewMetricsSink(cfg.Sinks); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestMetricsConfigDecodeJSON_Invalid(t *testing.T) {
	var cfg metrics.Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	if _, err := metrics.NewMetricsSink(cfg.Sinks); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
