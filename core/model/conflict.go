package model

// ConflictKind is the closed set of scheduling conflicts.
type ConflictKind string

const (
	ConflictTimeOverlap      ConflictKind = "TIME_OVERLAP"
	ConflictNoQualified      ConflictKind = "NO_QUALIFIED_TECHNICIAN"
	ConflictUrgentUnassigned ConflictKind = "URGENT_UNASSIGNED"
	ConflictCapacityExceeded ConflictKind = "CAPACITY_EXCEEDED"
)

// Conflict is a non-fatal reason an assignment could not be made or a
// constraint that is already violated.
type Conflict struct {
	Kind         ConflictKind `json:"kind"`
	Message      string       `json:"message"`
	TaskID       string       `json:"task_id,omitempty"`
	TechnicianID string       `json:"technician_id,omitempty"`
}
