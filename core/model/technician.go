package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultCapacityHours is the weekly limit applied when none is provided.
const DefaultCapacityHours = 40

// Technician is a field worker that can be bound to tasks.
type Technician struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	// Skills are free-form tags compared after NormalizeSkill.
	Skills   []string `json:"skills"`
	Location string   `json:"location,omitempty"`
	Active   bool     `json:"active"`
	// CapacityHours is the maximum committed time per ISO week.
	CapacityHours float64   `json:"capacity_hours"`
	CreatedAt     time.Time `json:"created_at"`
}

// SkillSet returns the normalised skills of the technician.
func (t Technician) SkillSet() SkillSet { return NewSkillSet(t.Skills) }

// CapacityMinutes returns the weekly limit in minutes.
func (t Technician) CapacityMinutes() float64 { return t.CapacityHours * 60 }

// Validate checks the mandatory fields of a technician.
func (t Technician) Validate() error {
	var errs []error
	if strings.TrimSpace(t.Name) == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}
	if !strings.Contains(t.Email, "@") {
		errs = append(errs, fmt.Errorf("invalid email %q", t.Email))
	}
	if t.CapacityHours <= 0 {
		errs = append(errs, fmt.Errorf("capacity_hours must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
