// Package app wires the planning engine to its storage, telemetry and
// transports.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apiplanning "github.com/kilianp07/fieldplan/api/planning"
	"github.com/kilianp07/fieldplan/app/plugins"
	"github.com/kilianp07/fieldplan/config"
	"github.com/kilianp07/fieldplan/core/events"
	coremetrics "github.com/kilianp07/fieldplan/core/metrics"
	coremon "github.com/kilianp07/fieldplan/core/monitoring"
	"github.com/kilianp07/fieldplan/core/notify"
	"github.com/kilianp07/fieldplan/core/planning"
	"github.com/kilianp07/fieldplan/core/planning/audit"
	"github.com/kilianp07/fieldplan/core/store"
	"github.com/kilianp07/fieldplan/infra/logger"
	"github.com/kilianp07/fieldplan/infra/metrics"
	"github.com/kilianp07/fieldplan/infra/monitoring"
	"github.com/kilianp07/fieldplan/infra/mqtt"
	"github.com/kilianp07/fieldplan/infra/sqlstore"
	"github.com/kilianp07/fieldplan/internal/eventbus"
)

const statusBuffer = 64

// Service owns the orchestrator and everything it depends on.
type Service struct {
	Planner *planning.Orchestrator

	cfg      *config.Config
	store    store.Store
	audit    audit.Store
	sink     coremetrics.MetricsSink
	monitor  coremon.Monitor
	bus      *eventbus.TypedBus[events.PlanningEvent]
	mqtt     *mqtt.Notifier
	statuses chan mqtt.StatusReport
	handler  http.Handler
	log      logger.Logger
}

// New creates a Service from the configuration. Resources opened before a
// failing step are released.
func New(ctx context.Context, cfg *config.Config) (_ *Service, err error) {
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	s := &Service{
		cfg:      cfg,
		bus:      eventbus.NewTyped[events.PlanningEvent](),
		statuses: make(chan mqtt.StatusReport, statusBuffer),
		log:      logger.New("service"),
	}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	s.monitor, err = monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(s.monitor)

	s.store, err = sqlstore.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s.audit, err = plugins.NewAuditStore(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("audit store: %w", err)
	}
	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.MQTT.Enabled() {
		s.mqtt, err = mqtt.NewNotifier(cfg.MQTT, s.enqueueStatus)
		if err != nil {
			return nil, fmt.Errorf("mqtt notifier: %w", err)
		}
		notifier = s.mqtt
	}

	s.Planner = planning.New(s.store,
		planning.WithConfig(cfg.Planning),
		planning.WithLogger(logger.New("planning")),
		planning.WithMetrics(s.sink),
		planning.WithBus(s.bus),
		planning.WithAudit(s.audit),
		planning.WithNotifier(notifier),
		planning.WithMonitor(s.monitor),
	)

	mux := http.NewServeMux()
	mux.Handle("GET /api/planning/decisions", apiplanning.NewDecisionHandler(s.audit, cfg.HTTP.Token))
	mux.Handle("/", apiplanning.NewHandler(s.Planner, cfg.HTTP.Token, logger.New("api")))
	s.handler = mux
	return s, nil
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler { return s.handler }

// Run serves the API until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go s.consumeStatuses(ctx)

	srv := &http.Server{Addr: s.cfg.HTTP.Addr, Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Errorf("http shutdown: %v", err)
		}
	}()
	s.log.Infof("serving planning API on %s", s.cfg.HTTP.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// enqueueStatus is called from the MQTT client goroutine and never blocks.
func (s *Service) enqueueStatus(_ context.Context, r mqtt.StatusReport) {
	select {
	case s.statuses <- r:
	default:
		s.log.Warnf("status queue full, dropping report for assignment %s", r.AssignmentID)
	}
}

func (s *Service) consumeStatuses(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-s.statuses:
			s.applyStatus(ctx, r)
		}
	}
}

// applyStatus maps a device report onto the assignment lifecycle.
func (s *Service) applyStatus(ctx context.Context, r mqtt.StatusReport) {
	var err error
	switch strings.ToUpper(strings.TrimSpace(r.Status)) {
	case "IN_PROGRESS", "STARTED":
		_, err = s.Planner.StartAssignment(ctx, r.AssignmentID)
	case "DONE", "COMPLETED":
		_, err = s.Planner.CompleteAssignment(ctx, r.AssignmentID)
	default:
		s.log.Warnf("unknown status %q for assignment %s", r.Status, r.AssignmentID)
		return
	}
	if err != nil {
		s.log.Errorf("status %s for assignment %s: %v", r.Status, r.AssignmentID, err)
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.bus != nil {
		s.bus.Close()
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.monitor != nil {
		s.monitor.Flush(2 * time.Second)
	}
	return errors.Join(errs...)
}
