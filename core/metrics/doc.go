// Package metrics defines the sinks that record planning decisions for
// observability. PromSink and InfluxSink live in infra/metrics and register
// themselves with the factory in this package. Several configured sinks
// are combined into a MultiSink automatically. Optional recorder
// interfaces extend MetricsSink; callers type-assert for them.
package metrics
