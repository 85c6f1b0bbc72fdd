package planning

import (
	"net/http"
	"time"

	"github.com/kilianp07/fieldplan/core/planning/audit"
)

// NewDecisionHandler serves GET /api/planning/decisions from the audit log.
// Filters: start, end (RFC3339), task_id, technician_id, operation.
func NewDecisionHandler(store audit.Store, token string) http.Handler {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		v := r.URL.Query()
		q := audit.Query{
			TaskID:       v.Get("task_id"),
			TechnicianID: v.Get("technician_id"),
			Operation:    v.Get("operation"),
		}
		for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
			s := v.Get(key)
			if s == "" {
				continue
			}
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid " + key + ": " + err.Error()})
				return
			}
			*dst = t
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
			return
		}
		if records == nil {
			records = []audit.Record{}
		}
		writeJSON(w, http.StatusOK, records)
	})
	return withToken(h, token)
}
