package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yumyai/habconn/pkg/model"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("Run does not exist")

var schema = []string{`
	CREATE TABLE IF NOT EXISTS runs (
		run_id          TEXT PRIMARY KEY,
		started_at      TEXT NOT NULL,
		habitat_file    TEXT NOT NULL,
		gene_tree_file  TEXT NOT NULL,
		sample_tree_file TEXT NOT NULL,
		iterations      INTEGER NOT NULL,
		max_sample_size INTEGER NOT NULL,
		shuffle_trials  INTEGER NOT NULL,
		seed            INTEGER NOT NULL
	)`, `
	CREATE TABLE IF NOT EXISTS results (
		run_id          TEXT NOT NULL REFERENCES runs(run_id),
		iteration       INTEGER NOT NULL,
		group_name      TEXT NOT NULL,
		gene_avg        REAL NOT NULL,
		sampled_genes   TEXT NOT NULL,
		sampled_samples TEXT NOT NULL,
		PRIMARY KEY (run_id, group_name, iteration)
	)`,
}

// RunInfo describes the inputs of one resampling run.
type RunInfo struct {
	RunID          string
	StartedAt      time.Time
	HabitatFile    string
	GeneTreeFile   string
	SampleTreeFile string
	Iterations     int
	MaxSampleSize  int
	ShuffleTrials  int
	Seed           uint64
}

// ResultStore keeps runs and their per-iteration results in SQLite.
type ResultStore struct {
	resultSQL *sql.DB
}

func OpenResultStore(path string) (*ResultStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return NewResultStore(context.TODO(), db)
}

func NewResultStore(ctx context.Context, db *sql.DB) (*ResultStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &ResultStore{resultSQL: db}, nil
}

func (s *ResultStore) Close() error {
	return s.resultSQL.Close()
}

// SaveRun records the run and all of its results in one transaction. A run
// without an id gets a fresh uuid; the id used is returned.
func (s *ResultStore) SaveRun(ctx context.Context, run RunInfo, results []model.SampleResult) (string, error) {

	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	tx, err := s.resultSQL.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, habitat_file, gene_tree_file, sample_tree_file,
			iterations, max_sample_size, shuffle_trials, seed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.HabitatFile, run.GeneTreeFile,
		run.SampleTreeFile, run.Iterations, run.MaxSampleSize, run.ShuffleTrials, int64(run.Seed))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stm, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, iteration, group_name, gene_avg, sampled_genes, sampled_samples)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer stm.Close()

	for _, r := range results {
		genes, err := json.Marshal(r.SampledGenes)
		if err != nil {
			return "", err
		}
		samples, err := json.Marshal(r.SampledSamples)
		if err != nil {
			return "", err
		}
		if _, err := stm.ExecContext(ctx, run.RunID, r.Iteration, r.Group, r.GeneAvg, string(genes), string(samples)); err != nil {
			return "", fmt.Errorf("insert result %s/%d: %w", r.Group, r.Iteration, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// GetRun returns the recorded inputs of a run.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*RunInfo, error) {

	row := s.resultSQL.QueryRowContext(ctx,
		`SELECT run_id, started_at, habitat_file, gene_tree_file, sample_tree_file,
			iterations, max_sample_size, shuffle_trials, seed
		 FROM runs WHERE run_id == ?`, runID)

	var r RunInfo
	var started string
	var seed int64
	err := row.Scan(&r.RunID, &started, &r.HabitatFile, &r.GeneTreeFile, &r.SampleTreeFile,
		&r.Iterations, &r.MaxSampleSize, &r.ShuffleTrials, &seed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	r.Seed = uint64(seed)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, err
	}
	return &r, nil
}

// Results returns the results of a run in the order they were saved.
func (s *ResultStore) Results(ctx context.Context, runID string) ([]model.SampleResult, error) {

	stm, err := s.resultSQL.PrepareContext(ctx,
		`SELECT iteration, group_name, gene_avg, sampled_genes, sampled_samples
		 FROM results WHERE run_id == ? ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]model.SampleResult, 0, 64)
	for rows.Next() {
		var r model.SampleResult
		var genes, samples string
		if err := rows.Scan(&r.Iteration, &r.Group, &r.GeneAvg, &genes, &samples); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(genes), &r.SampledGenes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(samples), &r.SampledSamples); err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	return results, rows.Err()
}
