// Package store persists explanation runs in SQLite so they can be
// listed, inspected and compared after the fact.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"slime/internal/explain"
)

// Run is one persisted explanation.
type Run struct {
	ID        string               `json:"id"`
	CreatedAt time.Time            `json:"created_at"`
	Dataset   string               `json:"dataset"`
	Instance  []float64            `json:"instance"`
	Params    map[string]any       `json:"params"`
	Result    *explain.Explanation `json:"result"`
	// FeatureNames mirrors the dataset header for rendering.
	FeatureNames []string `json:"feature_names,omitempty"`
}

// RunSummary is the listing row for a run.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Dataset   string    `json:"dataset"`
	Score     float64   `json:"score"`
	Features  int       `json:"features"`
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open initializes the SQLite database at the given path, creating
// parent directories as needed. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal_mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		dataset TEXT NOT NULL,
		instance TEXT NOT NULL,
		params TEXT NOT NULL,
		feature_names TEXT,
		intercept REAL NOT NULL,
		score REAL NOT NULL,
		local_pred REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS run_features (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		feature INTEGER NOT NULL,
		weight REAL NOT NULL,
		sign_entropy REAL,
		eliminated INTEGER NOT NULL DEFAULT 0,
		p_value REAL,
		PRIMARY KEY (run_id, feature)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SaveRun persists an explanation and returns its generated id.
func (s *Store) SaveRun(run *Run) (string, error) {
	if run.Result == nil {
		return "", fmt.Errorf("store: run has no result")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	id := run.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := run.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	instance, err := json.Marshal(run.Instance)
	if err != nil {
		return "", fmt.Errorf("store: marshal instance: %w", err)
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return "", fmt.Errorf("store: marshal params: %w", err)
	}
	names, err := json.Marshal(run.FeatureNames)
	if err != nil {
		return "", fmt.Errorf("store: marshal feature names: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs
		(id, created_at, dataset, instance, params, feature_names, intercept, score, local_pred)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, created.Unix(), run.Dataset, string(instance), string(params), string(names),
		run.Result.Intercept, run.Result.Score, run.Result.LocalPred)
	if err != nil {
		return "", fmt.Errorf("store: insert run: %w", err)
	}

	seen := make(map[int]bool, len(run.Result.Weights))
	for _, fw := range run.Result.Weights {
		seen[fw.Feature] = true
		var entropy any
		if h, ok := run.Result.SignEntropy[fw.Feature]; ok {
			entropy = h
		}
		_, err = tx.Exec(`INSERT INTO run_features (run_id, feature, weight, sign_entropy, eliminated)
			VALUES (?, ?, ?, ?, 0)`, id, fw.Feature, fw.Weight, entropy)
		if err != nil {
			return "", fmt.Errorf("store: insert feature %d: %w", fw.Feature, err)
		}
	}
	for _, j := range run.Result.Eliminated {
		// A feature carrying a weight is part of the explanation; it
		// cannot also be stored as eliminated.
		if seen[j] {
			continue
		}
		var entropy any
		if h, ok := run.Result.SignEntropy[j]; ok {
			entropy = h
		}
		_, err = tx.Exec(`INSERT INTO run_features (run_id, feature, weight, sign_entropy, eliminated)
			VALUES (?, ?, 0, ?, 1)`, id, j, entropy)
		if err != nil {
			return "", fmt.Errorf("store: insert eliminated feature %d: %w", j, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// GetRun loads one run with its feature rows.
func (s *Store) GetRun(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT id, created_at, dataset, instance, params, feature_names,
		intercept, score, local_pred FROM runs WHERE id = ?`, id)

	var run Run
	var created int64
	var instance, params, names string
	result := &explain.Explanation{}
	err := row.Scan(&run.ID, &created, &run.Dataset, &instance, &params, &names,
		&result.Intercept, &result.Score, &result.LocalPred)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.CreatedAt = time.Unix(created, 0)
	if err := json.Unmarshal([]byte(instance), &run.Instance); err != nil {
		return nil, fmt.Errorf("store: unmarshal instance: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("store: unmarshal params: %w", err)
	}
	if names != "" && names != "null" {
		if err := json.Unmarshal([]byte(names), &run.FeatureNames); err != nil {
			return nil, fmt.Errorf("store: unmarshal feature names: %w", err)
		}
	}

	rows, err := s.db.Query(`SELECT feature, weight, sign_entropy, eliminated
		FROM run_features WHERE run_id = ? ORDER BY ABS(weight) DESC, feature`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query features: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var feature, eliminated int
		var weight float64
		var entropy sql.NullFloat64
		if err := rows.Scan(&feature, &weight, &entropy, &eliminated); err != nil {
			return nil, fmt.Errorf("store: scan feature: %w", err)
		}
		if entropy.Valid {
			if result.SignEntropy == nil {
				result.SignEntropy = make(map[int]float64)
			}
			result.SignEntropy[feature] = entropy.Float64
		}
		if eliminated == 1 {
			result.Eliminated = append(result.Eliminated, feature)
			continue
		}
		result.Weights = append(result.Weights, explain.FeatureWeight{Feature: feature, Weight: weight})
		result.Used = append(result.Used, feature)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate features: %w", err)
	}
	sort.Ints(result.Used)

	run.Result = result
	return &run, nil
}

// ListRuns returns run summaries, newest first.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT r.id, r.created_at, r.dataset, r.score,
		(SELECT COUNT(*) FROM run_features f WHERE f.run_id = r.id AND f.eliminated = 0)
		FROM runs r ORDER BY r.created_at DESC, r.id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var created int64
		if err := rows.Scan(&s.ID, &created, &s.Dataset, &s.Score, &s.Features); err != nil {
			return nil, fmt.Errorf("store: scan summary: %w", err)
		}
		s.CreatedAt = time.Unix(created, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its feature rows.
func (s *Store) DeleteRun(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("store: run %s not found", id)
	}
	// Cascade is not guaranteed without foreign_keys pragma; delete
	// explicitly.
	if _, err := s.db.Exec(`DELETE FROM run_features WHERE run_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete features: %w", err)
	}
	return nil
}

// Stats reports row counts per table.
func (s *Store) Stats() (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, 2)
	for _, table := range []string{"runs", "run_features"} {
		var n int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("store: count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
