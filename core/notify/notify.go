// Package notify defines how technicians are told about their planning.
package notify

import (
	"context"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

// AssignmentNotice tells a technician about a new or changed assignment.
type AssignmentNotice struct {
	TechnicianID string                 `json:"technician_id"`
	AssignmentID string                 `json:"assignment_id"`
	TaskID       string                 `json:"task_id"`
	Title        string                 `json:"title"`
	Status       model.AssignmentStatus `json:"status"`
	Start        time.Time              `json:"start"`
	End          time.Time              `json:"end"`
}

// Notifier delivers planning messages to technicians.
type Notifier interface {
	NotifyAssignment(ctx context.Context, n AssignmentNotice) error
	SendSchedule(ctx context.Context, s model.Schedule) error
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) NotifyAssignment(context.Context, AssignmentNotice) error { return nil }
func (NopNotifier) SendSchedule(context.Context, model.Schedule) error       { return nil }
