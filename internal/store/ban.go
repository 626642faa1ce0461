package store

import (
	"context"
	"database/sql"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// BanStore tracks per-room account bans.
type BanStore struct {
	db *sql.DB
}

// NewBanStore wires a BanStore against the shared pool.
func NewBanStore(db *sql.DB) *BanStore {
	return &BanStore{db: db}
}

// Ban upserts a ban row. On conflict the original created_at is kept rather
// than refreshed, so a re-ban doesn't reset how long an account has been
// banned for.
func (s *BanStore) Ban(ctx context.Context, roomID, accountID string) (*model.RoomBan, error) {
	const q = `
		INSERT INTO room_ban (account_id, room_id)
		VALUES ($1, $2)
		ON CONFLICT (account_id, room_id) DO UPDATE SET created_at = room_ban.created_at
		RETURNING account_id, room_id, created_at`

	var b model.RoomBan
	err := s.db.QueryRowContext(ctx, q, accountID, roomID).Scan(&b.AccountID, &b.RoomID, &b.CreatedAt)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &b, nil
}

// Find returns the ban row for an account in a room, or nil if unbanned.
func (s *BanStore) Find(ctx context.Context, roomID, accountID string) (*model.RoomBan, error) {
	const q = `SELECT account_id, room_id, created_at FROM room_ban WHERE account_id = $1 AND room_id = $2`

	var b model.RoomBan
	err := s.db.QueryRowContext(ctx, q, accountID, roomID).Scan(&b.AccountID, &b.RoomID, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &b, nil
}

// Unban removes a ban row, reporting whether one existed.
func (s *BanStore) Unban(ctx context.Context, roomID, accountID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM room_ban WHERE account_id = $1 AND room_id = $2`, accountID, roomID)
	if err != nil {
		return false, apperror.New(apperror.KindDBQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return n > 0, nil
}
