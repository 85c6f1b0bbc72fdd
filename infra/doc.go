// Package infra contains technical adapters: SQL persistence, the MQTT
// notifier, metrics exporters and Sentry reporting. These packages should
// depend only on the interfaces defined in the core packages.
package infra
