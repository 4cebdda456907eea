// Package history records training runs, per-step telemetry and metric
// scores in a local sqlite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Run identifies one training session.
type Run struct {
	ID        string
	Name      string
	Config    string
	StartedAt time.Time
}

// StepRecord captures one discriminator update.
type StepRecord struct {
	RunID             string
	Step              int
	Epoch             int
	GeneratorLoss     float64
	DiscriminatorLoss float64
	K                 float64
	Convergence       float64
	HasConvergence    bool
	RecordedAt        time.Time
}

// ScoreRecord captures one metric evaluation.
type ScoreRecord struct {
	RunID      string
	Step       int
	Metric     string
	Value      float64
	RecordedAt time.Time
}

// RunStore persists runs and their telemetry.
type RunStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewRunStore(path string) *RunStore {
	return &RunStore{path: path}
}

func (s *RunStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

// CreateRun registers a new run and returns it with a fresh identifier.
func (s *RunStore) CreateRun(ctx context.Context, name, config string) (Run, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, err
	}

	run := Run{
		ID:        uuid.New().String(),
		Name:      name,
		Config:    config,
		StartedAt: time.Now(),
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs (id, name, config, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Name, run.Config, run.StartedAt.UnixNano())
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *RunStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return Run{}, false, err
	}

	var run Run
	var startedAt int64
	err = db.QueryRowContext(ctx, `
		SELECT id, name, config, started_at FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &run.Name, &run.Config, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, false, nil
		}
		return Run{}, false, err
	}
	run.StartedAt = time.Unix(0, startedAt)
	return run, true, nil
}

func (s *RunStore) ListRuns(ctx context.Context) ([]Run, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, name, config, started_at FROM runs ORDER BY started_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt int64
		if err := rows.Scan(&run.ID, &run.Name, &run.Config, &startedAt); err != nil {
			return nil, err
		}
		run.StartedAt = time.Unix(0, startedAt)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AppendStep records one training step. Re-recording a step overwrites
// the previous row, so resumed runs stay consistent.
func (s *RunStore) AppendStep(ctx context.Context, record StepRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO steps (run_id, step, epoch, generator_loss, discriminator_loss,
			k, convergence, has_convergence, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			epoch = excluded.epoch,
			generator_loss = excluded.generator_loss,
			discriminator_loss = excluded.discriminator_loss,
			k = excluded.k,
			convergence = excluded.convergence,
			has_convergence = excluded.has_convergence,
			recorded_at = excluded.recorded_at
	`, record.RunID, record.Step, record.Epoch, record.GeneratorLoss, record.DiscriminatorLoss,
		record.K, record.Convergence, record.HasConvergence, record.RecordedAt.UnixNano())
	return err
}

func (s *RunStore) Steps(ctx context.Context, runID string) ([]StepRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, step, epoch, generator_loss, discriminator_loss,
			k, convergence, has_convergence, recorded_at
		FROM steps WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		record, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// LatestStep returns the most recent step of a run, if any.
func (s *RunStore) LatestStep(ctx context.Context, runID string) (StepRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return StepRecord{}, false, err
	}

	row := db.QueryRowContext(ctx, `
		SELECT run_id, step, epoch, generator_loss, discriminator_loss,
			k, convergence, has_convergence, recorded_at
		FROM steps WHERE run_id = ? ORDER BY step DESC LIMIT 1
	`, runID)

	record, err := scanStep(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return StepRecord{}, false, nil
		}
		return StepRecord{}, false, err
	}
	return record, true, nil
}

func (s *RunStore) AppendScore(ctx context.Context, record ScoreRecord) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO scores (run_id, step, metric, value, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, record.RunID, record.Step, record.Metric, record.Value, record.RecordedAt.UnixNano())
	return err
}

func (s *RunStore) Scores(ctx context.Context, runID string) ([]ScoreRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, step, metric, value, recorded_at
		FROM scores WHERE run_id = ? ORDER BY step, metric
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ScoreRecord
	for rows.Next() {
		var record ScoreRecord
		var recordedAt int64
		if err := rows.Scan(&record.RunID, &record.Step, &record.Metric, &record.Value, &recordedAt); err != nil {
			return nil, err
		}
		record.RecordedAt = time.Unix(0, recordedAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *RunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *RunStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	return s.db, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(row rowScanner) (StepRecord, error) {
	var record StepRecord
	var recordedAt int64
	err := row.Scan(&record.RunID, &record.Step, &record.Epoch, &record.GeneratorLoss,
		&record.DiscriminatorLoss, &record.K, &record.Convergence, &record.HasConvergence, &recordedAt)
	if err != nil {
		return StepRecord{}, err
	}
	record.RecordedAt = time.Unix(0, recordedAt)
	return record, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS steps (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			epoch INTEGER NOT NULL,
			generator_loss REAL NOT NULL,
			discriminator_loss REAL NOT NULL,
			k REAL NOT NULL,
			convergence REAL NOT NULL,
			has_convergence INTEGER NOT NULL,
			recorded_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);
		CREATE TABLE IF NOT EXISTS scores (
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			metric TEXT NOT NULL,
			value REAL NOT NULL,
			recorded_at INTEGER NOT NULL
		);
	`)
	return err
}
