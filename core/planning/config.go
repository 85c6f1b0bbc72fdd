package planning

import (
	"fmt"
	"time"
)

// Config holds the planning settings.
type Config struct {
	// Timezone is the IANA zone in which weeks start on Monday 00:00.
	Timezone string `json:"timezone"`
	// NotifyAssignments publishes a notice to the technician for every
	// committed or cancelled assignment.
	NotifyAssignments bool `json:"notify_assignments"`
}

// SetDefaults uses the process local zone when none is configured.
func (c *Config) SetDefaults() {
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate checks that the timezone resolves.
func (c Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("planning: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
