package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `store:
  backend: "sqlite"
  dsn: "plan.db"
planning:
  timezone: "Europe/Paris"
  notify_assignments: true
http:
  addr: ":9000"
  token: "secret"
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "fieldplan"
  topic_prefix: "acme/techs"
  qos:
    assignment: 1
    status: 0
metrics:
  prometheus_addr: ":2112"
  sinks:
    - type: "prometheus"
audit:
  backend: "sqlite"
sentry:
  dsn: "https://key@sentry.example.com/1"
log_level: "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"store.dsn", cfg.Store.DSN, "plan.db"},
		{"planning.timezone", cfg.Planning.Timezone, "Europe/Paris"},
		{"planning.notify_assignments", cfg.Planning.NotifyAssignments, true},
		{"http.addr", cfg.HTTP.Addr, ":9000"},
		{"http.token", cfg.HTTP.Token, "secret"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "acme/techs"},
		{"mqtt.qos.status", cfg.MQTT.QoS["status"], byte(0)},
		{"metrics.prometheus_addr", cfg.Metrics.PrometheusAddr, ":2112"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"audit.backend", cfg.Audit.Backend, "sqlite"},
		{"audit.path", cfg.Audit.Path, "decisions.db"},
		{"sentry.sample_rate", cfg.Sentry.SampleRate, 1.0},
		{"log_level", cfg.LogLevel, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http":{"addr":":7000"},"planning":{"timezone":"UTC"}}`), 0o644))
	t.Setenv("FP_HTTP__ADDR", ":7100")
	t.Setenv("FP_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.HTTP.Addr)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "UTC", cfg.Planning.Timezone)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "jsonl", cfg.Audit.Backend)
	assert.Equal(t, "decisions.log", cfg.Audit.Path)
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"config.toml": "store = 1",
		"store.yaml":  "store:\n  backend: mongo\n",
		"tz.yaml":     "planning:\n  timezone: Mars/Olympus\n",
		"audit.yaml":  "audit:\n  backend: kafka\n",
		"level.yaml":  "log_level: loud\n",
		"mqtt.yaml":   "mqtt:\n  broker: tcp://localhost:1883\n",
		"sentry.yaml": "sentry:\n  sample_rate: 2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
