// exposes a Store interface over the documents table
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// ErrPermissionDenied is returned when the database role may not touch the table.
var ErrPermissionDenied = errors.New("database permission denied")

// Row is one stored document.
type Row struct {
	Collection string    `db:"collection"`
	ID         string    `db:"id"`
	Body       []byte    `db:"body"`
	Seq        int64     `db:"seq"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type Store interface {
	GetDocument(ctx context.Context, collection, id string) (Row, error)
	ListDocuments(ctx context.Context, collection string) ([]Row, error)
	// UpsertDocument keeps seq for an existing id, so enumeration order is stable.
	UpsertDocument(ctx context.Context, collection, id string, body []byte) error
	// PatchDocument merges body into the stored object. Returns sql.ErrNoRows if absent.
	PatchDocument(ctx context.Context, collection, id string, body []byte) error
	DeleteDocument(ctx context.Context, collection, id string) error
}

type pgStore struct {
	db *sqlx.DB
}

// compile-time check that pgStore implements Store
var _ Store = (*pgStore)(nil)

func NewStore(conn *sqlx.DB) Store {
	if conn == nil {
		conn = DB
	}
	return &pgStore{db: conn}
}

func (s *pgStore) GetDocument(ctx context.Context, collection, id string) (Row, error) {
	var row Row
	err := s.db.GetContext(ctx, &row, `
		SELECT collection, id, body, seq, updated_at
		FROM documents
		WHERE collection = $1 AND id = $2
		`, collection, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("failed to get document")
	}
	return row, mapError(err)
}

func (s *pgStore) ListDocuments(ctx context.Context, collection string) ([]Row, error) {
	rows := []Row{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT collection, id, body, seq, updated_at
		FROM documents
		WHERE collection = $1
		ORDER BY seq
		`, collection)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Msg("failed to list documents")
		return nil, mapError(err)
	}
	return rows, nil
}

func (s *pgStore) UpsertDocument(ctx context.Context, collection, id string, body []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, now(), now())
		ON CONFLICT (collection, id) DO UPDATE
		SET body = EXCLUDED.body,
		updated_at = now()
		`, collection, id, string(body))
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("failed to upsert document")
	}
	return mapError(err)
}

func (s *pgStore) PatchDocument(ctx context.Context, collection, id string, body []byte) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET body = body || $3::jsonb,
		updated_at = now()
		WHERE collection = $1 AND id = $2
		`, collection, id, string(body))
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("failed to patch document")
		return mapError(err)
	}
	return requireAffected(res)
}

func (s *pgStore) DeleteDocument(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		log.Error().Err(err).Str("collection", collection).Str("id", id).Msg("failed to delete document")
		return mapError(err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// insufficient_privilege
const pqInsufficientPrivilege = "42501"

func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqInsufficientPrivilege {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, pqErr.Message)
	}
	return err
}
