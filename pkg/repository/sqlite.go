package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	namespace  TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// SQLite stores namespaces as rows of a single table
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database file at path
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, goerr.New("sqlite path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite database", goerr.V("path", path))
	}
	// A single connection keeps writes serialized without busy retries.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, goerr.Wrap(err, "failed to create kv table", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, namespace string) ([]byte, error) {
	if err := validateNamespace(namespace); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM kv WHERE namespace = ?`, namespace).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goerr.Wrap(ErrNotFound, "namespace row does not exist", goerr.V("namespace", namespace))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query namespace", goerr.V("namespace", namespace))
	}
	return data, nil
}

func (s *SQLite) Put(ctx context.Context, namespace string, data []byte) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (namespace, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		namespace, data, time.Now().UTC())
	if err != nil {
		return goerr.Wrap(err, "failed to upsert namespace", goerr.V("namespace", namespace))
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, namespace string) error {
	if err := validateNamespace(namespace); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE namespace = ?`, namespace); err != nil {
		return goerr.Wrap(err, "failed to delete namespace", goerr.V("namespace", namespace))
	}
	return nil
}

// Close releases the database handle
func (s *SQLite) Close() error {
	return s.db.Close()
}
