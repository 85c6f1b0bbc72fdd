package sqlstore

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name   string
	driver string
	// numbered placeholders ($1) instead of ?
	numbered bool
	schema   []string
	unique   func(error) bool
}

var sqliteDialect = dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: append([]string{`PRAGMA foreign_keys = ON`}, schema("INTEGER", "REAL", "INTEGER")...),
	unique: func(err error) bool {
		var se *sqlite.Error
		if errors.As(err, &se) {
			return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
		}
		return false
	},
}

var postgresDialect = dialect{
	name:     "postgres",
	driver:   "postgres",
	numbered: true,
	schema:   schema("BIGINT", "DOUBLE PRECISION", "BOOLEAN"),
	unique: func(err error) bool {
		var pe *pq.Error
		return errors.As(err, &pe) && pe.Code == "23505"
	},
}

func schema(integer, real, boolean string) []string {
	r := strings.NewReplacer("{int}", integer, "{real}", real, "{bool}", boolean)
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS technicians (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    email_key TEXT NOT NULL UNIQUE,
    skills TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    active {bool} NOT NULL,
    capacity_hours {real} NOT NULL,
    created_ns {int} NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    required_skills TEXT NOT NULL,
    location TEXT NOT NULL DEFAULT '',
    duration_minutes {int} NOT NULL,
    priority {int} NOT NULL,
    status TEXT NOT NULL,
    planned_start_ns {int},
    planned_end_ns {int},
    created_ns {int} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status, priority, created_ns)`,
		`CREATE TABLE IF NOT EXISTS assignments (
    id TEXT PRIMARY KEY,
    technician_id TEXT NOT NULL REFERENCES technicians(id),
    task_id TEXT NOT NULL REFERENCES tasks(id),
    start_ns {int} NOT NULL,
    end_ns {int} NOT NULL,
    status TEXT NOT NULL,
    created_ns {int} NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_technician ON assignments(technician_id, start_ns)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_task ON assignments(task_id)`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
