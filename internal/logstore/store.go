// Package logstore keeps an indexed history of kept entries in DuckDB.
// The analysis pipeline itself retains nothing; this store is the
// consumer-side scroll-back and query surface fed from the pipeline's
// per-entry output stream. Raw lines are not persisted, only parsed
// fields and the normalized signature.
package logstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

const schema = `
CREATE SEQUENCE IF NOT EXISTS entries_id_seq;
CREATE TABLE IF NOT EXISTS entries (
	id BIGINT PRIMARY KEY DEFAULT nextval('entries_id_seq'),
	ts TIMESTAMP NOT NULL,
	priority INTEGER NOT NULL,
	severity VARCHAR NOT NULL,
	host VARCHAR,
	service VARCHAR,
	pid INTEGER,
	message VARCHAR NOT NULL,
	signature VARCHAR NOT NULL,
	format VARCHAR
);
CREATE INDEX IF NOT EXISTS idx_entries_ts ON entries(ts);
CREATE INDEX IF NOT EXISTS idx_entries_signature ON entries(signature);
`

// Store manages the DuckDB connection and provides query methods.
type Store struct {
	db           *sql.DB
	mu           sync.RWMutex
	dbPath       string
	QueryTimeout time.Duration
}

// NewStore opens or creates a DuckDB database and applies the schema.
// An empty dbPath uses an in-memory database. queryTimeout defaults
// to 30s.
func NewStore(dbPath string, queryTimeout ...time.Duration) (*Store, error) {
	dsn := ""
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, err
		}
		dsn = dbPath
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: apply schema: %w", err)
	}

	qt := 30 * time.Second
	if len(queryTimeout) > 0 && queryTimeout[0] > 0 {
		qt = queryTimeout[0]
	}

	return &Store{
		db:           db,
		dbPath:       dbPath,
		QueryTimeout: qt,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct query access.
func (s *Store) DB() *sql.DB {
	return s.db
}
