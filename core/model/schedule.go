package model

import "time"

// ScheduleEntry is one planned assignment joined with the task it covers.
type ScheduleEntry struct {
	AssignmentID    string    `json:"assignment_id"`
	TaskID          string    `json:"task_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Location        string    `json:"location,omitempty"`
	RequiredSkills  []string  `json:"required_skills,omitempty"`
	Priority        Priority  `json:"priority"`
	DurationMinutes int       `json:"duration_minutes"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
}

// Schedule is the planning of one technician, ordered by start time.
type Schedule struct {
	TechnicianID string          `json:"technician_id"`
	Name         string          `json:"name"`
	Email        string          `json:"email"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Entries      []ScheduleEntry `json:"entries"`
}

// Availability reports the weekly load of a technician.
type Availability struct {
	TechnicianID   string    `json:"technician_id"`
	CapacityHours  float64   `json:"capacity_hours"`
	HoursUsed      float64   `json:"hours_used"`
	HoursRemaining float64   `json:"hours_remaining"`
	WeekStart      time.Time `json:"week_start"`
	WeekEnd        time.Time `json:"week_end"`
}
