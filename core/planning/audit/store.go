// Package audit persists every planning decision so that an assignment, or
// a refusal, can be explained after the fact.
package audit

import (
	"context"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/scoring"
)

// Record captures one orchestrator decision.
type Record struct {
	Timestamp    time.Time        `json:"timestamp"`
	Operation    string           `json:"operation"`
	TaskID       string           `json:"task_id,omitempty"`
	TechnicianID string           `json:"technician_id,omitempty"`
	AssignmentID string           `json:"assignment_id,omitempty"`
	Success      bool             `json:"success"`
	Score        float64          `json:"score,omitempty"`
	Candidates   []scoring.Score  `json:"candidates,omitempty"`
	Conflicts    []model.Conflict `json:"conflicts,omitempty"`
	Message      string           `json:"message,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match all.
type Query struct {
	Start        time.Time
	End          time.Time
	TaskID       string
	TechnicianID string
	Operation    string
}

// Matches reports whether r passes every filter of q. A technician filter
// also matches records where the technician was only a candidate.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.TaskID != "" && r.TaskID != q.TaskID {
		return false
	}
	if q.Operation != "" && r.Operation != q.Operation {
		return false
	}
	if q.TechnicianID != "" && r.TechnicianID != q.TechnicianID {
		for _, c := range r.Candidates {
			if c.TechnicianID == q.TechnicianID {
				return true
			}
		}
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
