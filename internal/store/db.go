package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go-fea-pipeline/internal/model"
)

// ErrRunNotFound is returned for unknown run ids
var ErrRunNotFound = errors.New("run not found")

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// DB records extraction runs in sqlite
type DB struct {
	db *sql.DB
}

// Run is a stored extraction run
type Run struct {
	ID        string        `json:"id"`
	Spec      model.RunSpec `json:"spec"`
	Status    string        `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// RunError is a warning or failure recorded for a run
type RunError struct {
	Archive   string    `json:"archive"`
	Step      string    `json:"step,omitempty"`
	Region    string    `json:"region,omitempty"`
	Field     string    `json:"field,omitempty"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// RunOutput is one file written by a run
type RunOutput struct {
	Archive   string    `json:"archive"`
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	Records   int       `json:"records"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSeries indexes one extracted field series
type RunSeries struct {
	Archive    string   `json:"archive"`
	Step       string   `json:"step"`
	Region     string   `json:"region"`
	MeshType   string   `json:"mesh_type"`
	Field      string   `json:"field"`
	Strategy   string   `json:"strategy"`
	Components []string `json:"components"`
	Records    int      `json:"records"`
}

var schema = []string{`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		archive TEXT,
		step TEXT,
		region TEXT,
		field TEXT,
		kind TEXT,
		message TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_outputs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		archive TEXT,
		format TEXT,
		path TEXT,
		records INTEGER,
		success BOOLEAN,
		error TEXT,
		created_at DATETIME
	);`, `
	CREATE TABLE IF NOT EXISTS run_series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		archive TEXT,
		step TEXT,
		region TEXT,
		mesh_type TEXT,
		field TEXT,
		strategy TEXT,
		components TEXT,
		records INTEGER
	);`,
	`CREATE INDEX IF NOT EXISTS idx_run_errors_run ON run_errors(run_id);`,
	`CREATE INDEX IF NOT EXISTS idx_run_outputs_run ON run_outputs(run_id);`,
	`CREATE INDEX IF NOT EXISTS idx_run_series_run ON run_series(run_id);`,
}

// Open connects to the sqlite file at path and creates missing tables
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &DB{db: db}, nil
}

// Close releases the connection
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveRun stores a new pending run
func (d *DB) SaveRun(runID string, spec model.RunSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = d.db.Exec(`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		runID, string(specJSON), StatusPending, now, now)
	return err
}

// UpdateRunStatus updates run status
func (d *DB) UpdateRunStatus(runID string, status string) error {
	now := time.Now().UTC()
	res, err := d.db.Exec(`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`, status, now, runID)
	if err != nil {
		return err
	}
	return requireRow(res, runID)
}

// SaveRunError records a warning or failure of a run
func (d *DB) SaveRunError(runID, archive string, f model.Failure) error {
	if archive == "" {
		archive = f.Archive
	}
	now := time.Now().UTC()
	_, err := d.db.Exec(`INSERT INTO run_errors (run_id, archive, step, region, field, kind, message, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, archive, f.Step, f.Region, f.Field, f.Kind, f.Message, now)
	return err
}

// SaveOutput records an export of a run
func (d *DB) SaveOutput(runID, archive string, out model.ExportResult) error {
	created := out.ExportedAt.UTC()
	if out.ExportedAt.IsZero() {
		created = time.Now().UTC()
	}
	_, err := d.db.Exec(`INSERT INTO run_outputs (run_id, archive, format, path, records, success, error, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, archive, out.Type, out.Path, out.RecordCount, out.Success, out.Error, created)
	return err
}

// SaveSeries indexes a field series of a run. Values stay in the exports.
func (d *DB) SaveSeries(runID, archive string, s *model.FieldSeries) error {
	_, err := d.db.Exec(`INSERT INTO run_series (run_id, archive, step, region, mesh_type, field, strategy, components, records) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, archive, s.Step, s.Region, s.Kind.String(), s.Field, s.Strategy, strings.Join(s.Components, ","), len(s.Records))
	return err
}

// ListRuns returns all runs, newest first
func (d *DB) ListRuns() ([]Run, error) {
	rows, err := d.db.Query(`SELECT id, spec, status, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun fetches a run with its spec
func (d *DB) GetRun(runID string) (Run, error) {
	row := d.db.QueryRow(`SELECT id, spec, status, created_at, updated_at FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var run Run
	var specJSON string
	if err := s.Scan(&run.ID, &specJSON, &run.Status, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return Run{}, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return Run{}, fmt.Errorf("decode spec of run %s: %w", run.ID, err)
	}
	return run, nil
}

// GetRunErrors lists the warnings and failures of a run in insertion order
func (d *DB) GetRunErrors(runID string) ([]RunError, error) {
	rows, err := d.db.Query(`SELECT archive, step, region, field, kind, message, created_at FROM run_errors WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunError{}
	for rows.Next() {
		var e RunError
		if err := rows.Scan(&e.Archive, &e.Step, &e.Region, &e.Field, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetRunOutputs lists the exports of a run
func (d *DB) GetRunOutputs(runID string) ([]RunOutput, error) {
	rows, err := d.db.Query(`SELECT archive, format, path, records, success, error, created_at FROM run_outputs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunOutput{}
	for rows.Next() {
		var o RunOutput
		if err := rows.Scan(&o.Archive, &o.Format, &o.Path, &o.Records, &o.Success, &o.Error, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetRunSeries lists the series index of a run
func (d *DB) GetRunSeries(runID string) ([]RunSeries, error) {
	rows, err := d.db.Query(`SELECT archive, step, region, mesh_type, field, strategy, components, records FROM run_series WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RunSeries{}
	for rows.Next() {
		var s RunSeries
		var components string
		if err := rows.Scan(&s.Archive, &s.Step, &s.Region, &s.MeshType, &s.Field, &s.Strategy, &components, &s.Records); err != nil {
			return nil, err
		}
		if components != "" {
			s.Components = strings.Split(components, ",")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClearRunResults removes the errors, outputs and series of a run before
// it is executed again
func (d *DB) ClearRunResults(runID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	if err := clearResults(tx, runID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteRun removes a run and everything recorded for it
func (d *DB) DeleteRun(runID string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	err = clearResults(tx, runID)
	if err == nil {
		var res sql.Result
		if res, err = tx.Exec(`DELETE FROM runs WHERE id = ?`, runID); err == nil {
			err = requireRow(res, runID)
		}
	}
	if err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func clearResults(tx *sql.Tx, runID string) error {
	for _, table := range []string{"run_errors", "run_outputs", "run_series"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return err
		}
	}
	return nil
}

func requireRow(res sql.Result, runID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
