// Package monitoring is the error reporting hook used by the planning core.
// The default implementation discards everything; infra/monitoring installs
// a Sentry backed one.
package monitoring

import "time"

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var current Monitor = NopMonitor{}

// Init sets the global monitor implementation. A nil monitor is ignored.
func Init(m Monitor) {
	if m != nil {
		current = m
	}
}

// Current returns the installed monitor.
func Current() Monitor { return current }

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err != nil && current != nil {
		current.CaptureException(err, tags)
	}
}

// CaptureOp reports err tagged with the module and operation that produced
// it. Extra key/value pairs are added as tags; empty values are skipped.
func CaptureOp(m Monitor, module, op string, err error, kv ...string) {
	if m == nil || err == nil {
		return
	}
	tags := map[string]string{"module": module, "operation": op}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			tags[kv[i]] = kv[i+1]
		}
	}
	m.CaptureException(err, tags)
}

// Recover captures panics in goroutines.
func Recover() {
	if current != nil {
		current.Recover()
	}
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	if current != nil {
		current.Flush(d)
	}
}
