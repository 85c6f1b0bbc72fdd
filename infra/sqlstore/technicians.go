package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/store"
)

const technicianColumns = `id, name, email, skills, location, active, capacity_hours, created_ns`

func scanTechnician(row scanner) (model.Technician, error) {
	var (
		t       model.Technician
		skills  string
		created int64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &skills, &t.Location, &t.Active, &t.CapacityHours, &created); err != nil {
		return model.Technician{}, err
	}
	list, err := decodeList(skills)
	if err != nil {
		return model.Technician{}, fmt.Errorf("technician %s: skills: %w", t.ID, err)
	}
	t.Skills = list
	t.CreatedAt = fromNanos(created)
	return t, nil
}

func (s *Store) GetTechnician(ctx context.Context, id string) (model.Technician, error) {
	t, err := scanTechnician(s.queryRow(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE id = ?`, id))
	if err != nil {
		return model.Technician{}, miss("technician", id, err)
	}
	return t, nil
}

func (s *Store) ListActiveTechnicians(ctx context.Context) ([]model.Technician, error) {
	return s.listTechnicians(ctx, `SELECT `+technicianColumns+` FROM technicians WHERE active = ? ORDER BY id`, true)
}

func (s *Store) ListTechnicians(ctx context.Context) ([]model.Technician, error) {
	return s.listTechnicians(ctx, `SELECT `+technicianColumns+` FROM technicians ORDER BY id`)
}

func (s *Store) listTechnicians(ctx context.Context, q string, args ...any) ([]model.Technician, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list technicians: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var res []model.Technician
	for rows.Next() {
		t, err := scanTechnician(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) CreateTechnician(ctx context.Context, t model.Technician) error {
	skills, err := encodeList(t.Skills)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO technicians (id, name, email, email_key, skills, location, active, capacity_hours, created_ns)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Email, emailKey(t.Email), skills, t.Location, t.Active, t.CapacityHours, nanos(t.CreatedAt))
	if err != nil {
		if s.d.unique(err) {
			return fmt.Errorf("technician %s: %w", t.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("insert technician %s: %w", t.ID, err)
	}
	return nil
}

func (s *Store) SaveTechnician(ctx context.Context, t model.Technician) error {
	skills, err := encodeList(t.Skills)
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, `INSERT INTO technicians (id, name, email, email_key, skills, location, active, capacity_hours, created_ns)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            email = excluded.email,
            email_key = excluded.email_key,
            skills = excluded.skills,
            location = excluded.location,
            active = excluded.active,
            capacity_hours = excluded.capacity_hours`,
		t.ID, t.Name, t.Email, emailKey(t.Email), skills, t.Location, t.Active, t.CapacityHours, nanos(t.CreatedAt))
	if err != nil {
		if s.d.unique(err) {
			return fmt.Errorf("technician %s: %w", t.Email, store.ErrDuplicate)
		}
		return fmt.Errorf("save technician %s: %w", t.ID, err)
	}
	return nil
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }
