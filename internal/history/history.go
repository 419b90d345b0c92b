// Package history keeps a local log of submissions and how they ended.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tileexport/internal/exporter"
)

// Entry is one recorded submission.
type Entry struct {
	ID              int64
	SubmittedAt     time.Time
	Endpoint        string
	ModelPath       string
	TilesetFilename string
	Identifier      string
	State           string
	JobID           string
	ErrorKind       string
	Message         string
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path, creating parent directories.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  submitted_at INTEGER NOT NULL,
  endpoint TEXT NOT NULL,
  model_path TEXT NOT NULL,
  tileset_filename TEXT NOT NULL,
  identifier TEXT NOT NULL,
  state TEXT NOT NULL,
  job_id TEXT,
  error_kind TEXT,
  message TEXT
);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Record inserts e and returns its id. A zero SubmittedAt is set to now.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (submitted_at, endpoint, model_path, tileset_filename, identifier, state, job_id, error_kind, message)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SubmittedAt.UnixMilli(),
		e.Endpoint,
		e.ModelPath,
		e.TilesetFilename,
		e.Identifier,
		e.State,
		nullString(e.JobID),
		nullString(e.ErrorKind),
		nullString(e.Message),
	)
	if err != nil {
		return 0, fmt.Errorf("insert submission: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent entries first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 25
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submitted_at, endpoint, model_path, tileset_filename, identifier, state, job_id, error_kind, message
       FROM submissions ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			submittedMs          int64
			jobID, kind, message sql.NullString
		)
		if err := rows.Scan(&e.ID, &submittedMs, &e.Endpoint, &e.ModelPath, &e.TilesetFilename, &e.Identifier, &e.State, &jobID, &kind, &message); err != nil {
			return nil, err
		}
		e.SubmittedAt = time.UnixMilli(submittedMs)
		e.JobID = jobID.String
		e.ErrorKind = kind.String
		e.Message = message.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Attach records every result of sub until the returned func is called.
func (s *Store) Attach(sub *exporter.Submitter, logger *slog.Logger) func() {
	if logger == nil {
		logger = slog.Default()
	}
	return sub.Subscribe(func(r exporter.Result) {
		e := Entry{
			Endpoint:        r.Endpoint,
			ModelPath:       r.Request.ModelPath,
			TilesetFilename: r.Request.TilesetFilename,
			Identifier:      r.Request.Identifier,
			State:           string(r.State),
			JobID:           r.JobID,
			ErrorKind:       string(r.Kind),
		}
		if r.Err != nil {
			e.Message = r.Err.Error()
		}
		if _, err := s.Record(context.Background(), e); err != nil {
			logger.Warn("failed to record submission", "error", err)
		}
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
