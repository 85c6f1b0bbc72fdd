package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

const taskColumns = `id, title, description, required_skills, location, duration_minutes, priority, status, planned_start_ns, planned_end_ns, created_ns`

func orderClause(order store.TaskOrder) string {
	switch order {
	case store.OrderPriorityDescCreatedAsc:
		return ` ORDER BY priority DESC, created_ns ASC, id ASC`
	case store.OrderCreatedDesc:
		return ` ORDER BY created_ns DESC, id ASC`
	default:
		return ` ORDER BY created_ns ASC, id ASC`
	}
}

func scanTask(row scanner) (model.Task, error) {
	var (
		t              model.Task
		skills, status string
		priority       int
		start, end     sql.NullInt64
		created        int64
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &skills, &t.Location, &t.DurationMinutes,
		&priority, &status, &start, &end, &created); err != nil {
		return model.Task{}, err
	}
	list, err := decodeList(skills)
	if err != nil {
		return model.Task{}, fmt.Errorf("task %s: required skills: %w", t.ID, err)
	}
	t.RequiredSkills = list
	t.Priority = model.Priority(priority)
	t.Status = model.TaskStatus(status)
	t.PlannedStart = timePtr(start)
	t.PlannedEnd = timePtr(end)
	t.CreatedAt = fromNanos(created)
	return t, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (model.Task, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return model.Task{}, miss("task", id, err)
	}
	return t, nil
}

func (s *Store) ListTasksByStatus(ctx context.Context, status model.TaskStatus, order store.TaskOrder) ([]model.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ?`+orderClause(order), string(status))
}

func (s *Store) ListTasks(ctx context.Context, order store.TaskOrder) ([]model.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks`+orderClause(order))
}

func (s *Store) listTasks(ctx context.Context, q string, args ...any) ([]model.Task, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) CreateTask(ctx context.Context, t model.Task) error {
	skills, err := encodeList(t.RequiredSkills)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, skills, t.Location, t.DurationMinutes, int(t.Priority), string(t.Status),
		nullNanos(t.PlannedStart), nullNanos(t.PlannedEnd), nanos(t.CreatedAt))
	if err != nil {
		if s.d.unique(err) {
			return fmt.Errorf("task %s: %w", t.ID, store.ErrDuplicate)
		}
		return fmt.Errorf("insert task %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) SaveTask(ctx context.Context, t model.Task) error {
	skills, err := encodeList(t.RequiredSkills)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            required_skills = excluded.required_skills,
            location = excluded.location,
            duration_minutes = excluded.duration_minutes,
            priority = excluded.priority,
            status = excluded.status,
            planned_start_ns = excluded.planned_start_ns,
            planned_end_ns = excluded.planned_end_ns`,
		t.ID, t.Title, t.Description, skills, t.Location, t.DurationMinutes, int(t.Priority), string(t.Status),
		nullNanos(t.PlannedStart), nullNanos(t.PlannedEnd), nanos(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}
