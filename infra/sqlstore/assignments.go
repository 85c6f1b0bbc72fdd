package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

const assignmentColumns = `id, technician_id, task_id, start_ns, end_ns, status, created_ns`

func scanAssignment(row scanner) (model.Assignment, error) {
	var (
		a                   model.Assignment
		status              string
		start, end, created int64
	)
	if err := row.Scan(&a.ID, &a.TechnicianID, &a.TaskID, &start, &end, &status, &created); err != nil {
		return model.Assignment{}, err
	}
	a.Start = fromNanos(start)
	a.End = fromNanos(end)
	a.Status = model.AssignmentStatus(status)
	a.CreatedAt = fromNanos(created)
	return a, nil
}

// CountOverlapping uses half-open intervals: touching endpoints do not count.
func (s *Store) CountOverlapping(ctx context.Context, technicianID string, start, end time.Time, excludeID string) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM assignments
        WHERE technician_id = ? AND status <> ? AND start_ns < ? AND end_ns > ? AND id <> ?`,
		technicianID, string(model.AssignmentCancelled), nanos(end), nanos(start), excludeID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overlapping for %s: %w", technicianID, err)
	}
	return n, nil
}

func (s *Store) ListByTechnician(ctx context.Context, technicianID string, status *model.AssignmentStatus) ([]model.Assignment, error) {
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE technician_id = ?`
	args := []any{technicianID}
	if status != nil {
		q += ` AND status = ?`
		args = append(args, string(*status))
	}
	rows, err := s.query(ctx, q+` ORDER BY start_ns, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments of %s: %w", technicianID, err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// FindByTask prefers the live assignment, then the most recent one.
func (s *Store) FindByTask(ctx context.Context, taskID string) (model.Assignment, error) {
	a, err := scanAssignment(s.queryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments
        WHERE task_id = ?
        ORDER BY CASE WHEN status = ? THEN 1 ELSE 0 END, created_ns DESC, id DESC
        LIMIT 1`, taskID, string(model.AssignmentCancelled)))
	if err != nil {
		return model.Assignment{}, miss("assignment for task", taskID, err)
	}
	return a, nil
}

func (s *Store) GetAssignment(ctx context.Context, id string) (model.Assignment, error) {
	a, err := scanAssignment(s.queryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = ?`, id))
	if err != nil {
		return model.Assignment{}, miss("assignment", id, err)
	}
	return a, nil
}

func (s *Store) SaveAssignment(ctx context.Context, a model.Assignment) error {
	_, err := s.exec(ctx, `INSERT INTO assignments (`+assignmentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            technician_id = excluded.technician_id,
            task_id = excluded.task_id,
            start_ns = excluded.start_ns,
            end_ns = excluded.end_ns,
            status = excluded.status`,
		a.ID, a.TechnicianID, a.TaskID, nanos(a.Start), nanos(a.End), string(a.Status), nanos(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("save assignment %s: %w", a.ID, err)
	}
	return nil
}
