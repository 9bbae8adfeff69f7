package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const createInteractions = `
CREATE TABLE IF NOT EXISTS interactions (
	id         TEXT PRIMARY KEY,
	config_id  TEXT NOT NULL,
	user_query TEXT NOT NULL,
	response   TEXT NOT NULL,
	config     TEXT,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_config_id ON interactions(config_id);
`

// SQLite records interactions in a local database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}
	if _, err := db.Exec(createInteractions); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, in *Interaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (id, config_id, user_query, response, config, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		in.ID, in.ConfigID, in.UserQuery, in.Response, string(in.Config), in.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert interaction %s: %w", in.ID, err)
	}
	return nil
}

// Get loads one interaction by id.
func (s *SQLite) Get(ctx context.Context, id string) (*Interaction, error) {
	var (
		in        Interaction
		config    sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, config_id, user_query, response, config, created_at FROM interactions WHERE id = ?`, id,
	).Scan(&in.ID, &in.ConfigID, &in.UserQuery, &in.Response, &config, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("load interaction %s: %w", id, err)
	}
	if config.Valid {
		in.Config = []byte(config.String)
	}
	if in.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at of %s: %w", id, err)
	}
	return &in, nil
}

// Count returns the number of stored interactions.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n)
	return n, err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
