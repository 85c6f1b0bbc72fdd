package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

// MemoryStore keeps every collection in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	technicians map[string]model.Technician
	tasks       map[string]model.Task
	assignments map[string]model.Assignment
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		technicians: map[string]model.Technician{},
		tasks:       map[string]model.Task{},
		assignments: map[string]model.Assignment{},
	}
}

func (s *MemoryStore) GetTechnician(_ context.Context, id string) (model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.technicians[id]
	if !ok {
		return model.Technician{}, fmt.Errorf("technician %s: %w", id, ErrNotFound)
	}
	return cloneTechnician(t), nil
}

func (s *MemoryStore) ListActiveTechnicians(_ context.Context) ([]model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		if t.Active {
			res = append(res, cloneTechnician(t))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) ListTechnicians(_ context.Context) ([]model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Technician, 0, len(s.technicians))
	for _, t := range s.technicians {
		res = append(res, cloneTechnician(t))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) CreateTechnician(_ context.Context, t model.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.technicians[t.ID]; ok {
		return fmt.Errorf("technician %s: %w", t.ID, ErrDuplicate)
	}
	for _, other := range s.technicians {
		if strings.EqualFold(other.Email, t.Email) {
			return fmt.Errorf("email %s: %w", t.Email, ErrDuplicate)
		}
	}
	s.technicians[t.ID] = cloneTechnician(t)
	return nil
}

func (s *MemoryStore) SaveTechnician(_ context.Context, t model.Technician) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, other := range s.technicians {
		if id != t.ID && strings.EqualFold(other.Email, t.Email) {
			return fmt.Errorf("email %s: %w", t.Email, ErrDuplicate)
		}
	}
	s.technicians[t.ID] = cloneTechnician(t)
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return cloneTask(t), nil
}

func (s *MemoryStore) ListTasksByStatus(_ context.Context, status model.TaskStatus, order TaskOrder) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Task
	for _, t := range s.tasks {
		if t.Status == status {
			res = append(res, cloneTask(t))
		}
	}
	SortTasks(res, order)
	return res, nil
}

func (s *MemoryStore) ListTasks(_ context.Context, order TaskOrder) ([]model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		res = append(res, cloneTask(t))
	}
	SortTasks(res, order)
	return res, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s: %w", t.ID, ErrDuplicate)
	}
	s.tasks[t.ID] = cloneTask(t)
	return nil
}

func (s *MemoryStore) SaveTask(_ context.Context, t model.Task) error {
	s.mu.Lock()
	s.tasks[t.ID] = cloneTask(t)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) CountOverlapping(_ context.Context, technicianID string, start, end time.Time, excludeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.assignments {
		if a.TechnicianID != technicianID || !a.Live() {
			continue
		}
		if excludeID != "" && a.ID == excludeID {
			continue
		}
		if a.Overlaps(start, end) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByTechnician(_ context.Context, technicianID string, status *model.AssignmentStatus) ([]model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.Assignment
	for _, a := range s.assignments {
		if a.TechnicianID != technicianID {
			continue
		}
		if status != nil && a.Status != *status {
			continue
		}
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Start.Equal(res[j].Start) {
			return res[i].ID < res[j].ID
		}
		return res[i].Start.Before(res[j].Start)
	})
	return res, nil
}

func (s *MemoryStore) FindByTask(_ context.Context, taskID string) (model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  model.Assignment
		found bool
	)
	for _, a := range s.assignments {
		if a.TaskID != taskID {
			continue
		}
		if !found || preferAssignment(a, best) {
			best, found = a, true
		}
	}
	if !found {
		return model.Assignment{}, fmt.Errorf("assignment for task %s: %w", taskID, ErrNotFound)
	}
	return best, nil
}

func (s *MemoryStore) GetAssignment(_ context.Context, id string) (model.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assignments[id]
	if !ok {
		return model.Assignment{}, fmt.Errorf("assignment %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (s *MemoryStore) SaveAssignment(_ context.Context, a model.Assignment) error {
	s.mu.Lock()
	s.assignments[a.ID] = a
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// preferAssignment reports whether a should be returned over b by FindByTask:
// live assignments first, then the most recently created.
func preferAssignment(a, b model.Assignment) bool {
	if a.Live() != b.Live() {
		return a.Live()
	}
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// SortTasks orders tasks in place. Ties fall back to the id so listings are
// deterministic.
func SortTasks(tasks []model.Task, order TaskOrder) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		switch order {
		case OrderPriorityDescCreatedAsc:
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
		case OrderCreatedDesc:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID < b.ID
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func cloneTechnician(t model.Technician) model.Technician {
	t.Skills = append([]string(nil), t.Skills...)
	return t
}

func cloneTask(t model.Task) model.Task {
	t.RequiredSkills = append([]string(nil), t.RequiredSkills...)
	if t.PlannedStart != nil {
		v := *t.PlannedStart
		t.PlannedStart = &v
	}
	if t.PlannedEnd != nil {
		v := *t.PlannedEnd
		t.PlannedEnd = &v
	}
	return t
}
