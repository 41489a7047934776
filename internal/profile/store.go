package profile

// store.go keeps profiles in Postgres as one JSONB document per profile,
// listed newest-first by updated_at. The storage model is deliberately a
// plain document store; the database never inspects the document shape.

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store persists profiles in Postgres.
type Store struct {
	db DBTX
}

// NewStore creates a profile store on the given connection.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the profiles table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS profiles (
			id         UUID PRIMARY KEY,
			name       TEXT NOT NULL,
			doc        JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure profiles schema: %w", err)
	}
	return nil
}

// Save inserts or updates a profile and returns its id. A profile without
// an id gets a fresh one; saving an existing id overwrites the document and
// bumps updated_at.
func (s *Store) Save(ctx context.Context, p Profile) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return "", fmt.Errorf("invalid profile id %q: %w", p.ID, err)
	}

	doc, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO profiles (id, name, doc, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, doc = EXCLUDED.doc, updated_at = now()`,
		p.ID, p.Name, doc)
	if err != nil {
		return "", fmt.Errorf("save profile %q: %w", p.Name, err)
	}
	return p.ID, nil
}

// List returns all profiles, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, doc, updated_at
		FROM profiles
		ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var (
			id        pgtype.UUID
			doc       []byte
			updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &doc, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}

		var p Profile
		if err := json.Unmarshal(doc, &p); err != nil {
			return nil, fmt.Errorf("decode profile document: %w", err)
		}
		p.ID = uuid.UUID(id.Bytes).String()
		if updatedAt.Valid {
			p.UpdatedAt = updatedAt.Time
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// Get returns a single profile by id.
func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	var (
		doc       []byte
		updatedAt pgtype.Timestamptz
	)
	err := s.db.QueryRow(ctx, `SELECT doc, updated_at FROM profiles WHERE id = $1`, id).
		Scan(&doc, &updatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %s: %w", id, err)
	}

	var p Profile
	if err := json.Unmarshal(doc, &p); err != nil {
		return Profile{}, fmt.Errorf("decode profile document: %w", err)
	}
	p.ID = id
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return p, nil
}

// Delete removes a profile by id. Deleting an unknown id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile %s: %w", id, err)
	}
	return nil
}
