package journal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/vertextoedge/resource-fetcher/internal/port"
)

// Store implements port.Journal using SQLite
type Store struct {
	db *sql.DB
}

// Ensure Store implements port.Journal
var _ port.Journal = (*Store)(nil)

// Open opens a connection to the SQLite journal database
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{db: db}

	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate creates or updates the database schema
func (s *Store) migrate() error {
	schema := `CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		destination TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		bytes INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	)`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	index := `CREATE INDEX IF NOT EXISTS idx_fetches_finished_at
		ON fetches(finished_at DESC)`
	_, err := s.db.Exec(index)
	return err
}

// Record inserts one journal row and fills in its ID
func (s *Store) Record(rec *port.FetchRecord) error {
	query := `
		INSERT INTO fetches (
			url, destination, description, status, attempts, bytes, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		rec.URL, rec.Destination, rec.Description, rec.Status,
		rec.Attempts, rec.Bytes, rec.Error, rec.StartedAt, rec.FinishedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	rec.ID = id
	return nil
}

// Recent returns the most recent n records, newest first
func (s *Store) Recent(n int) ([]*port.FetchRecord, error) {
	query := `
		SELECT id, url, destination, description, status, attempts, bytes,
			   error, started_at, finished_at
		FROM fetches
		ORDER BY finished_at DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*port.FetchRecord
	for rows.Next() {
		rec := &port.FetchRecord{}
		var description, errText sql.NullString

		err := rows.Scan(
			&rec.ID, &rec.URL, &rec.Destination, &description, &rec.Status,
			&rec.Attempts, &rec.Bytes, &errText,
			&rec.StartedAt, &rec.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		if description.Valid {
			rec.Description = description.String
		}
		if errText.Valid {
			rec.Error = errText.String
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}
