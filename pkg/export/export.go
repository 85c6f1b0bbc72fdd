// Package export renders a technician schedule for download.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/fieldplan/core/model"
)

// Formats served by Write.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ContentType returns the MIME type of format.
func ContentType(format string) string {
	if format == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Write renders s in the given format. An empty format means JSON.
func Write(w io.Writer, format string, s model.Schedule) error {
	switch format {
	case "", FormatJSON:
		return WriteJSON(w, s)
	case FormatCSV:
		return WriteCSV(w, s)
	}
	return fmt.Errorf("%w: unknown export format %q", model.ErrInvalid, format)
}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, s model.Schedule) error {
	enc := json.NewEncoder(w)
	return enc.Encode(s)
}

// WriteCSV writes one row per planned assignment, ordered as in s.
func WriteCSV(w io.Writer, s model.Schedule) error {
	cw := csv.NewWriter(w)
	header := []string{"technician_id", "assignment_id", "task_id", "title", "priority", "location", "required_skills", "start", "end", "duration_minutes"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range s.Entries {
		rec := []string{
			s.TechnicianID,
			e.AssignmentID,
			e.TaskID,
			e.Title,
			e.Priority.String(),
			e.Location,
			strings.Join(e.RequiredSkills, ";"),
			e.Start.Format(time.RFC3339),
			e.End.Format(time.RFC3339),
			strconv.Itoa(e.DurationMinutes),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
