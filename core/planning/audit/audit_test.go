package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldplan/core/model"
	"github.com/kilianp07/fieldplan/core/scoring"
)

var t0 = time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

func sampleRecords() []Record {
	return []Record{
		{Timestamp: t0, Operation: "auto_assign", TaskID: "t1", TechnicianID: "jean", Success: true, Score: 0.9,
			Candidates: []scoring.Score{{TechnicianID: "jean", Value: 0.9}, {TechnicianID: "marie", Value: 0.7}}},
		{Timestamp: t0.Add(time.Hour), Operation: "assign_manually", TaskID: "t2", TechnicianID: "marie",
			Conflicts: []model.Conflict{{Kind: model.ConflictTimeOverlap, Message: "busy"}}},
		{Timestamp: t0.Add(2 * time.Hour), Operation: "auto_assign", TaskID: "t3",
			Conflicts: []model.Conflict{{Kind: model.ConflictNoQualified, Message: "nobody"}}},
	}
}

func TestQueryMatches(t *testing.T) {
	recs := sampleRecords()
	cases := []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"t1", "t2", "t3"}},
		{"task", Query{TaskID: "t2"}, []string{"t2"}},
		{"operation", Query{Operation: "auto_assign"}, []string{"t1", "t3"}},
		{"technician includes candidates", Query{TechnicianID: "marie"}, []string{"t1", "t2"}},
		{"window", Query{Start: t0.Add(30 * time.Minute), End: t0.Add(90 * time.Minute)}, []string{"t2"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var got []string
			for _, r := range recs {
				if c.q.Matches(r) {
					got = append(got, r.TaskID)
				}
			}
			assert.Equal(t, c.want, got)
		})
	}
}

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	for _, r := range sampleRecords() {
		require.NoError(t, store.Append(ctx, r))
	}

	out, err := store.Query(ctx, Query{TechnicianID: "marie"})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "t1", out[0].TaskID)
	assert.Len(t, out[0].Candidates, 2)

	out, err = store.Query(ctx, Query{Operation: "auto_assign", Start: t0.Add(time.Minute)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, model.ConflictNoQualified, out[0].Conflicts[0].Kind)
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "decisions.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	recs := sampleRecords()
	for i := len(recs) - 1; i >= 0; i-- {
		require.NoError(t, store.Append(ctx, recs[i]))
	}

	out, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "t1", out[0].TaskID, "records come back in time order")

	out, err = store.Query(ctx, Query{TaskID: "t3"})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	big := Record{Timestamp: t0, Operation: "optimize", Message: strings.Repeat("x", 64*1024)}
	for i := 0; i < 40; i++ {
		require.NoError(t, store.Append(context.Background(), big))
	}
	files, _ := filepath.Glob(filepath.Join(filepath.Dir(path), "decisions*.jsonl"))
	assert.Greater(t, len(files), 1, "expected rotated files")

	out, err := store.Query(context.Background(), Query{Operation: "optimize"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
