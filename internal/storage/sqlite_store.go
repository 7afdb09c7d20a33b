package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

func NewSQLiteStore(ctx context.Context, path, namespace string) (*SQLiteStore, error) {
	if path == "" {
		path = "notes.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers, which sqlite wants anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, namespace: namespace}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (namespace, key)
	);`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to migrate sqlite store: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`,
		s.namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.namespace, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, s.namespace, key,
	); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ?`, s.namespace,
	); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
