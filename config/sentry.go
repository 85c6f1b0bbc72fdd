package config

import "fmt"

// SentryConfig defines settings for Sentry error monitoring. An empty DSN
// disables reporting.
type SentryConfig struct {
	DSN              string  `json:"dsn"`
	Environment      string  `json:"environment"`
	Release          string  `json:"release"`
	SampleRate       float64 `json:"sample_rate"`
	TracesSampleRate float64 `json:"traces_sample_rate"`
}

// SetDefaults reports every error when no sample rate is given.
func (c *SentryConfig) SetDefaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.Environment == "" {
		c.Environment = "production"
	}
}

// Validate checks the sample rates.
func (c SentryConfig) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sentry: sample_rate must be within [0,1]")
	}
	if c.TracesSampleRate < 0 || c.TracesSampleRate > 1 {
		return fmt.Errorf("sentry: traces_sample_rate must be within [0,1]")
	}
	return nil
}
