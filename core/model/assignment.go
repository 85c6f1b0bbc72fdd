package model

import "time"

// AssignmentStatus is the lifecycle state of an assignment.
type AssignmentStatus string

const (
	AssignmentPlanned    AssignmentStatus = "PLANNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentDone       AssignmentStatus = "DONE"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// Assignment binds one technician to one task over [Start, End).
type Assignment struct {
	ID           string           `json:"id"`
	TechnicianID string           `json:"technician_id"`
	TaskID       string           `json:"task_id"`
	Start        time.Time        `json:"start"`
	End          time.Time        `json:"end"`
	Status       AssignmentStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Live reports whether the assignment still occupies the technician.
func (a Assignment) Live() bool { return a.Status != AssignmentCancelled }

// Minutes returns the length of the interval in minutes.
func (a Assignment) Minutes() float64 { return a.End.Sub(a.Start).Minutes() }

// Overlaps reports whether [start,end) intersects the assignment interval.
// Touching endpoints do not overlap.
func (a Assignment) Overlaps(start, end time.Time) bool {
	return a.Start.Before(end) && a.End.After(start)
}
