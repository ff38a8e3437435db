// Package sqldb is a SQLite-backed ports.RunStore built on sqlx.
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/polyglot-flow/internal/core/domain"
	"github.com/tjfontaine/polyglot-flow/internal/core/ports"
)

const driverName = "sqlite"

// Store persists run summaries in two tables: runs and run_steps.
type Store struct {
	db *sqlx.DB
}

var _ ports.RunStore = (*Store)(nil)

// NewSQLite opens (creating if needed) the database at dsn. A plain file
// path has its parent directory created.
func NewSQLite(dsn string) (*Store, error) {
	if dir := filepath.Dir(dsn); !isURI(dsn) && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection; one connection keeps them in force.
	db.SetMaxOpenConns(1)

	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute pragma: %w", err)
		}
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
}

func isURI(dsn string) bool {
	return len(dsn) >= 5 && dsn[:5] == "file:"
}

// DB returns the underlying sqlx.DB for advanced operations
func (s *Store) DB() *sqlx.DB {
	return s.db
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			pipeline_id TEXT NOT NULL,
			status TEXT NOT NULL,
			params TEXT,
			error TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS run_steps (
			run_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			step_id TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			started_at TIMESTAMP,
			duration_ns INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, position),
			FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

type runRow struct {
	ID         string         `db:"id"`
	PipelineID string         `db:"pipeline_id"`
	Status     string         `db:"status"`
	Params     sql.NullString `db:"params"`
	Error      sql.NullString `db:"error"`
	StartedAt  time.Time      `db:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at"`
}

type stepRow struct {
	RunID      string         `db:"run_id"`
	Position   int            `db:"position"`
	StepID     string         `db:"step_id"`
	Status     string         `db:"status"`
	Error      sql.NullString `db:"error"`
	StartedAt  sql.NullTime   `db:"started_at"`
	DurationNS int64          `db:"duration_ns"`
}

// SaveRun upserts the run and replaces its step rows in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *domain.RunRecord) error {
	row, steps, err := toRows(run)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `INSERT INTO runs (id, pipeline_id, status, params, error, started_at, finished_at)
		VALUES (:id, :pipeline_id, :status, :params, :error, :started_at, :finished_at)
		ON CONFLICT(id) DO UPDATE SET status=excluded.status, error=excluded.error, finished_at=excluded.finished_at`, row)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_steps WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear run steps: %w", err)
	}
	if len(steps) > 0 {
		_, err = tx.NamedExecContext(ctx, `INSERT INTO run_steps (run_id, position, step_id, status, error, started_at, duration_ns)
			VALUES (:run_id, :position, :step_id, :status, :error, :started_at, :duration_ns)`, steps)
		if err != nil {
			return fmt.Errorf("failed to save run steps: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.RunRecord, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT id, pipeline_id, status, params, error, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("run " + id + " not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	steps, err := s.loadSteps(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	return fromRows(row, steps[id])
}

func (s *Store) ListRuns(ctx context.Context, pipelineID string, limit int) ([]*domain.RunRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows []runRow
	var err error
	if pipelineID == "" {
		err = s.db.SelectContext(ctx, &rows, `SELECT id, pipeline_id, status, params, error, started_at, finished_at
			FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	} else {
		err = s.db.SelectContext(ctx, &rows, `SELECT id, pipeline_id, status, params, error, started_at, finished_at
			FROM runs WHERE pipeline_id = ? ORDER BY started_at DESC LIMIT ?`, pipelineID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	result := make([]*domain.RunRecord, 0, len(rows))
	if len(rows) == 0 {
		return result, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	steps, err := s.loadSteps(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, r := range rows {
		rec, err := fromRows(r, steps[r.ID])
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// loadSteps returns step rows grouped by run ID, in position order.
func (s *Store) loadSteps(ctx context.Context, runIDs []string) (map[string][]stepRow, error) {
	query, args, err := sqlx.In(`SELECT run_id, position, step_id, status, error, started_at, duration_ns
		FROM run_steps WHERE run_id IN (?) ORDER BY run_id, position`, runIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build step query: %w", err)
	}

	var rows []stepRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query run steps: %w", err)
	}

	out := make(map[string][]stepRow, len(runIDs))
	for _, r := range rows {
		out[r.RunID] = append(out[r.RunID], r)
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toRows(run *domain.RunRecord) (runRow, []stepRow, error) {
	row := runRow{
		ID:         run.ID,
		PipelineID: run.PipelineID,
		Status:     string(run.Status),
		Error:      nullString(run.Error),
		StartedAt:  run.StartedAt,
		FinishedAt: nullTime(run.FinishedAt),
	}
	if run.Params != nil {
		params, err := json.Marshal(run.Params)
		if err != nil {
			return runRow{}, nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		row.Params = nullString(string(params))
	}

	steps := make([]stepRow, len(run.Steps))
	for i, st := range run.Steps {
		steps[i] = stepRow{
			RunID:      run.ID,
			Position:   i,
			StepID:     st.StepID,
			Status:     string(st.Status),
			StartedAt:  nullTime(st.StartedAt),
			DurationNS: int64(st.Duration),
		}
		if st.Error != nil {
			marker, err := json.Marshal(st.Error)
			if err != nil {
				return runRow{}, nil, fmt.Errorf("failed to marshal step error: %w", err)
			}
			steps[i].Error = nullString(string(marker))
		}
	}
	return row, steps, nil
}

func fromRows(row runRow, steps []stepRow) (*domain.RunRecord, error) {
	rec := &domain.RunRecord{
		ID:         row.ID,
		PipelineID: row.PipelineID,
		Status:     domain.RunStatus(row.Status),
		Error:      row.Error.String,
		StartedAt:  row.StartedAt,
		Steps:      make([]domain.StepReport, 0, len(steps)),
	}
	if row.FinishedAt.Valid {
		rec.FinishedAt = row.FinishedAt.Time
	}
	if row.Params.Valid && row.Params.String != "" {
		if err := json.Unmarshal([]byte(row.Params.String), &rec.Params); err != nil {
			return nil, fmt.Errorf("failed to unmarshal params: %w", err)
		}
	}

	for _, st := range steps {
		report := domain.StepReport{
			StepID:   st.StepID,
			Status:   domain.StepStatus(st.Status),
			Duration: time.Duration(st.DurationNS),
		}
		if st.StartedAt.Valid {
			report.StartedAt = st.StartedAt.Time
		}
		if st.Error.Valid && st.Error.String != "" {
			var marker domain.ErrorMarker
			if err := json.Unmarshal([]byte(st.Error.String), &marker); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step error: %w", err)
			}
			report.Error = &marker
		}
		rec.Steps = append(rec.Steps, report)
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
