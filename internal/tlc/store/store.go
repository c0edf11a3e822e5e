// Package store persists a history of reduction runs in SQLite.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// schema.sql creates the run-history table and its indexes.
//
//go:embed schema.sql
var schemaSQL string

// RunRecord is one reduction run: inputs, a config snapshot, and the result
// summary once the run completes.
type RunRecord struct {
	ID          int64           `json:"id"`
	RunID       string          `json:"run_id"`
	CaseName    string          `json:"case_name"`
	VideoPath   string          `json:"video_path"`
	DAQPath     string          `json:"daq_path"`
	Config      json.RawMessage `json:"config"`
	NuMean      float64         `json:"nu_mean"`
	NuStdDev    float64         `json:"nu_stddev"`
	ValidPixels int             `json:"valid_pixels"`
	TotalPixels int             `json:"total_pixels"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Store wraps the run-history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	log.Println("initialized run history schema")
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// StartRun inserts a new run record and returns its generated run id.
func (s *Store) StartRun(rec RunRecord) (string, error) {
	if rec.RunID == "" {
		rec.RunID = uuid.New().String()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now()
	}
	query := `
		INSERT INTO tlc_runs (run_id, case_name, video_path, daq_path, config_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		rec.RunID, rec.CaseName, rec.VideoPath, rec.DAQPath,
		string(rec.Config), rec.StartedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("store: insert run: %w", err)
	}
	return rec.RunID, nil
}

// CompleteRun records the result summary of a finished run.
func (s *Store) CompleteRun(runID string, nuMean, nuStdDev float64, validPixels, totalPixels int) error {
	query := `
		UPDATE tlc_runs
		SET nu_mean = ?, nu_stddev = ?, valid_pixels = ?, total_pixels = ?, completed_at = ?
		WHERE run_id = ?
	`
	res, err := s.db.Exec(query, nuMean, nuStdDev, validPixels, totalPixels,
		time.Now().UTC().Format(time.RFC3339), runID)
	if err != nil {
		return fmt.Errorf("store: complete run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: complete run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("store: complete run: unknown run id %s", runID)
	}
	return nil
}

// FailRun records a run's failure message.
func (s *Store) FailRun(runID, message string) error {
	query := `UPDATE tlc_runs SET error = ?, completed_at = ? WHERE run_id = ?`
	if _, err := s.db.Exec(query, message, time.Now().UTC().Format(time.RFC3339), runID); err != nil {
		return fmt.Errorf("store: fail run %s: %w", runID, err)
	}
	return nil
}

// GetRun fetches one run by its run id.
func (s *Store) GetRun(runID string) (*RunRecord, error) {
	query := `
		SELECT id, run_id, case_name, video_path, daq_path, config_json,
		       COALESCE(nu_mean, 0), COALESCE(nu_stddev, 0),
		       COALESCE(valid_pixels, 0), COALESCE(total_pixels, 0),
		       started_at, completed_at, COALESCE(error, '')
		FROM tlc_runs WHERE run_id = ?
	`
	rec, err := scanRun(s.db.QueryRow(query, runID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: unknown run id %s", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns up to limit runs for a case, newest first. An empty
// caseName lists runs across all cases.
func (s *Store) ListRuns(caseName string, limit int) ([]RunRecord, error) {
	query := `
		SELECT id, run_id, case_name, video_path, daq_path, config_json,
		       COALESCE(nu_mean, 0), COALESCE(nu_stddev, 0),
		       COALESCE(valid_pixels, 0), COALESCE(total_pixels, 0),
		       started_at, completed_at, COALESCE(error, '')
		FROM tlc_runs
		WHERE (? = '' OR case_name = ?)
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, caseName, caseName, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list runs: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var config, startedAt string
	var completedAt sql.NullString
	err := row.Scan(&rec.ID, &rec.RunID, &rec.CaseName, &rec.VideoPath, &rec.DAQPath,
		&config, &rec.NuMean, &rec.NuStdDev, &rec.ValidPixels, &rec.TotalPixels,
		&startedAt, &completedAt, &rec.Error)
	if err != nil {
		return nil, err
	}
	rec.Config = json.RawMessage(config)
	if rec.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("bad started_at %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad completed_at %q: %w", completedAt.String, err)
		}
		rec.CompletedAt = &t
	}
	return &rec, nil
}
