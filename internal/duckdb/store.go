// Package duckdb stores per-sample evidence verdicts in DuckDB so runs can
// be queried after the fact.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection for evidence results.
type Store struct {
	db   *sql.DB
	path string

	mu   sync.Mutex
	seen map[string]map[evidenceKey]struct{} // run ID -> keys written
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path, seen: make(map[string]map[evidenceKey]struct{})}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		input_path VARCHAR,
		input_size BIGINT,
		input_modtime TIMESTAMP,
		base_error_rate DOUBLE,
		pvalue_threshold DOUBLE,
		started_at TIMESTAMP
	)`); err != nil {
		return err
	}

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS sample_evidence (
		run_id VARCHAR,
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		sample_index INTEGER,
		sample VARCHAR,
		genotype_before VARCHAR,
		genotype_after VARCHAR,
		ref_count INTEGER,
		alt_count INTEGER,
		tail_prob DOUBLE,
		present BOOLEAN,
		af DOUBLE,
		maf DOUBLE,
		PRIMARY KEY (run_id, chrom, pos, ref, alt, sample_index)
	)`)
	return err
}
