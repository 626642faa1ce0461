package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// EditionStore persists editions: named drafts of pending changes against a
// source room, committed all at once by the commit engine.
type EditionStore struct {
	db *sql.DB
}

// NewEditionStore wires an EditionStore against the shared pool.
func NewEditionStore(db *sql.DB) *EditionStore {
	return &EditionStore{db: db}
}

// Create inserts a new edition owned by createdBy against sourceRoomID.
func (s *EditionStore) Create(ctx context.Context, sourceRoomID, createdBy string) (*model.Edition, error) {
	const q = `
		INSERT INTO edition (id, source_room_id, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, source_room_id, created_by, created_at`

	var e model.Edition
	err := s.db.QueryRowContext(ctx, q, uuid.NewString(), sourceRoomID, createdBy).
		Scan(&e.ID, &e.SourceRoomID, &e.CreatedBy, &e.CreatedAt)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &e, nil
}

// Get fetches an edition by id.
func (s *EditionStore) Get(ctx context.Context, id string) (*model.Edition, error) {
	const q = `SELECT id, source_room_id, created_by, created_at FROM edition WHERE id = $1`

	var e model.Edition
	err := s.db.QueryRowContext(ctx, q, id).Scan(&e.ID, &e.SourceRoomID, &e.CreatedBy, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.KindEditionNotFound, err)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &e, nil
}

// List returns editions for a source room newest first, optionally
// paginated to those created strictly before the last seen created_at.
func (s *EditionStore) List(ctx context.Context, sourceRoomID string, lastCreatedAt *time.Time, limit int) ([]*model.Edition, error) {
	if limit <= 0 {
		limit = 25
	}

	query := `SELECT id, source_room_id, created_by, created_at FROM edition WHERE source_room_id = $1`
	args := []interface{}{sourceRoomID}
	if lastCreatedAt != nil {
		query += ` AND created_at < $2 ORDER BY created_at DESC LIMIT $3`
		args = append(args, *lastCreatedAt, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	defer rows.Close()

	var out []*model.Edition
	for rows.Next() {
		var e model.Edition
		if err := rows.Scan(&e.ID, &e.SourceRoomID, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Delete removes an edition; its changes cascade-delete at the schema level.
func (s *EditionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM edition WHERE id = $1`, id)
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	if n == 0 {
		return apperror.New(apperror.KindEditionNotFound, nil)
	}
	return nil
}
