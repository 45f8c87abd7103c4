//go:build sqlite

// Package sqlite provides a SQLite-backed registration store, compiled in
// with the 'sqlite' build tag.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // CGO-less SQLite driver

	"authgate/internal/registration"
	"authgate/internal/storage"
)

// Store implements storage.RegistrationStore backed by SQLite.
type Store struct {
	db *sql.DB
}

var _ storage.RegistrationStore = (*Store)(nil)

// New opens the database at dsn and applies the schema.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS client_registrations (
		id         TEXT PRIMARY KEY,
		properties TEXT NOT NULL,
		enabled    INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) CreateRegistration(ctx context.Context, rec *storage.RegistrationRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrValidation
	}
	props, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO client_registrations (id, properties, enabled, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(props), boolToInt(rec.Enabled),
		rec.CreatedAt.UTC().Format(time.RFC3339), rec.UpdatedAt.UTC().Format(time.RFC3339))
	return storage.WrapIfConflict(err)
}

func (s *Store) GetRegistration(ctx context.Context, id string) (*storage.RegistrationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, properties, enabled, created_at, updated_at FROM client_registrations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

func (s *Store) ListRegistrations(ctx context.Context) ([]*storage.RegistrationRecord, error) {
	return s.listWhere(ctx, ``)
}

func (s *Store) ListEnabledRegistrations(ctx context.Context) ([]*storage.RegistrationRecord, error) {
	return s.listWhere(ctx, `WHERE enabled = 1`)
}

func (s *Store) listWhere(ctx context.Context, where string) ([]*storage.RegistrationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, properties, enabled, created_at, updated_at FROM client_registrations `+where+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.RegistrationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) UpdateRegistration(ctx context.Context, rec *storage.RegistrationRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrValidation
	}
	props, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE client_registrations SET properties = ?, enabled = ?, updated_at = ? WHERE id = ?`,
		string(props), boolToInt(rec.Enabled), rec.UpdatedAt.UTC().Format(time.RFC3339), rec.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM client_registrations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.RegistrationRecord, error) {
	var rec storage.RegistrationRecord
	var props string
	var enabled int
	var createdAt, updatedAt string
	if err := row.Scan(&rec.ID, &props, &enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Properties = registration.ClientProperties{}
	if err := json.Unmarshal([]byte(props), &rec.Properties); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	rec.Enabled = enabled != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
