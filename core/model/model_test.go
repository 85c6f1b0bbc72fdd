package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSkillSetCoversAll(t *testing.T) {
	set := NewSkillSet([]string{" Electricity", "PLUMBING "})
	if !set.CoversAll([]string{"electricity", " plumbing"}) {
		t.Fatalf("expected normalised skills to match")
	}
	if set.CoversAll([]string{"electricity", "hvac"}) {
		t.Fatalf("hvac should not be covered")
	}
	if !set.CoversAll(nil) {
		t.Fatalf("empty requirement must be covered")
	}
	m, total := set.Matched([]string{"ELECTRICITY", "hvac", " "})
	if m != 1 || total != 2 {
		t.Fatalf("matched=%d total=%d", m, total)
	}
}

func TestTaskStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskPending, TaskAssigned, true},
		{TaskAssigned, TaskInProgress, true},
		{TaskInProgress, TaskDone, true},
		{TaskPending, TaskCancelled, true},
		{TaskAssigned, TaskCancelled, true},
		{TaskAssigned, TaskPending, true},
		{TaskPending, TaskDone, false},
		{TaskDone, TaskPending, false},
		{TaskInProgress, TaskCancelled, false},
		{TaskCancelled, TaskPending, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransition(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTaskValidate(t *testing.T) {
	ok := Task{Title: "Install meter", DurationMinutes: 120, Priority: PriorityHigh}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range []int{14, 481} {
		bad := ok
		bad.DurationMinutes = d
		if err := bad.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("duration %d: expected ErrInvalid got %v", d, err)
		}
	}
	noTitle := ok
	noTitle.Title = " "
	if err := noTitle.Validate(); err == nil {
		t.Fatalf("expected error for missing title")
	}
}

func TestPriorityJSON(t *testing.T) {
	b, err := json.Marshal(PriorityUrgent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"URGENT"` {
		t.Fatalf("got %s", b)
	}
	var p Priority
	if err := json.Unmarshal([]byte(`"low"`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p != PriorityLow {
		t.Fatalf("got %v", p)
	}
	if err := json.Unmarshal([]byte(`"critical"`), &p); err == nil {
		t.Fatalf("expected error for unknown priority")
	}
	if !(PriorityLow < PriorityMedium && PriorityMedium < PriorityHigh && PriorityHigh < PriorityUrgent) {
		t.Fatalf("priorities not ordered")
	}
}

func TestAssignmentOverlaps(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a := Assignment{Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)}
	if !a.Overlaps(day.Add(11*time.Hour), day.Add(13*time.Hour)) {
		t.Errorf("partial overlap not detected")
	}
	if !a.Overlaps(day.Add(9*time.Hour), day.Add(14*time.Hour)) {
		t.Errorf("containment not detected")
	}
	if a.Overlaps(day.Add(12*time.Hour), day.Add(14*time.Hour)) {
		t.Errorf("touching endpoints must not overlap")
	}
	if a.Minutes() != 120 {
		t.Errorf("minutes = %v", a.Minutes())
	}
}

func TestTechnicianValidate(t *testing.T) {
	tech := Technician{Name: "Jean", Email: "jean@example.com", CapacityHours: 40}
	if err := tech.Validate(); err != nil {
		t.Fatalf("unexpected: %v", err)
	}
	tech.CapacityHours = 0
	tech.Email = "nope"
	if err := tech.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid got %v", err)
	}
}
