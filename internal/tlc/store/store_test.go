package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	cfg, err := json.Marshal(map[string]any{"frame_rate": 25.0})
	require.NoError(t, err)
	runID, err := s.StartRun(RunRecord{
		CaseName:  "flat-plate-re20k",
		VideoPath: "runs/flat.avi",
		DAQPath:   "runs/flat.lvm",
		Config:    cfg,
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, s.CompleteRun(runID, 38.2, 4.7, 9500, 10000))

	rec, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Equal(t, "flat-plate-re20k", rec.CaseName)
	assert.Equal(t, 38.2, rec.NuMean)
	assert.Equal(t, 9500, rec.ValidPixels)
	assert.NotNil(t, rec.CompletedAt)
	assert.Contains(t, string(rec.Config), "frame_rate")
}

func TestCompleteUnknownRun(t *testing.T) {
	s := openTestStore(t)
	assert.Error(t, s.CompleteRun("no-such-run", 0, 0, 0, 0))
}

func TestFailRun(t *testing.T) {
	s := openTestStore(t)
	runID, err := s.StartRun(RunRecord{CaseName: "bad", VideoPath: "x.avi", DAQPath: "x.lvm", Config: []byte("{}")})
	require.NoError(t, err)
	require.NoError(t, s.FailRun(runID, "stream ended after 10 of 500 frames"))

	rec, err := s.GetRun(runID)
	require.NoError(t, err)
	assert.Contains(t, rec.Error, "stream ended")
	assert.NotNil(t, rec.CompletedAt)
}

func TestGetUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("nope")
	assert.Error(t, err)
}

func TestListRunsFilterAndOrder(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"case-a", "case-b", "case-a"} {
		_, err := s.StartRun(RunRecord{
			CaseName:  name,
			VideoPath: "v.avi", DAQPath: "d.lvm", Config: []byte("{}"),
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns("case-a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt), "runs not ordered newest first")

	all, err := s.ListRuns("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
