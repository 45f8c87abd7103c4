//go:build postgres

// Package postgres provides a PostgreSQL-backed registration store, compiled
// in with the 'postgres' build tag.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"authgate/internal/registration"
	"authgate/internal/storage"
)

// Store implements storage.RegistrationStore backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.RegistrationStore = (*Store)(nil)

// New connects to connStr and applies the schema.
func New(connStr string) (*Store, error) {
	ctx := context.Background()
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS client_registrations (
		id         TEXT PRIMARY KEY,
		properties JSONB NOT NULL,
		enabled    BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying connection pool for tests.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

func (s *Store) CreateRegistration(ctx context.Context, rec *storage.RegistrationRecord) error {
	if rec == nil || rec.ID == "" {
		return storage.ErrValidation
	}
	props, err := json.Marshal(rec.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO client_registrations (id, properties, enabled, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, props, rec.Enabled, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
	return storage.WrapIfConflict(err)
}

func (s *Store) GetRegistration(ctx context.Context, id string) (*storage.RegistrationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, properties, enabled, created_at, updated_at FROM client_registrations WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return rec, err
}

func (s *Store) ListRegistrations(ctx context.Context) ([]*storage.RegistrationRecord, error) {
	return s.listWhere(ctx, ``)
}

func (s *Store) ListEnabledRegistrations(ctx context.Context) ([]*storage.RegistrationRecord, error) {
	return s.listWhere(ctx, `WHERE enabled`)
}

func (s *Store) listWhere(ctx context.Context, where string) ([]*storage.RegistrationRecord, error) {
	rows, err := s.pool.Query(ctx,
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
	tag, err := s.pool.Exec(ctx,
		`UPDATE client_registrations SET properties = $1, enabled = $2, updated_at = $3 WHERE id = $4`,
		props, rec.Enabled, rec.UpdatedAt.UTC(), rec.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteRegistration(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM client_registrations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*storage.RegistrationRecord, error) {
	var rec storage.RegistrationRecord
	var props []byte
	var createdAt, updatedAt time.Time
	if err := row.Scan(&rec.ID, &props, &rec.Enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	rec.Properties = registration.ClientProperties{}
	if err := json.Unmarshal(props, &rec.Properties); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	rec.CreatedAt = createdAt.UTC()
	rec.UpdatedAt = updatedAt.UTC()
	return &rec, nil
}
