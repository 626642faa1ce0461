package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// RoomStore persists rooms and applies the closed-time clamp rule from §9.
type RoomStore struct {
	db *sql.DB
}

// NewRoomStore wires a RoomStore against a read/write pool, mirroring the
// db-plus-constructor shape the rest of this repository's stores use.
func NewRoomStore(db *sql.DB) *RoomStore {
	return &RoomStore{db: db}
}

// Create inserts a new room. classroomID, audience and tags come straight
// from the caller; openedAt/closedAt define the half-open room interval.
func (s *RoomStore) Create(ctx context.Context, r *model.Room) (*model.Room, error) {
	if r.ClosedAt != nil && !r.OpenedAt.Before(*r.ClosedAt) {
		return nil, apperror.New(apperror.KindInvalidRoomTime, fmt.Errorf("opened_at must be before closed_at"))
	}

	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	tagsJSON, err := marshalJSON(r.Tags)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	lockedJSON, err := marshalBoolMap(r.LockedTypes)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	whiteboardJSON, err := marshalBoolMap(r.WhiteboardAccess)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	const q = `
		INSERT INTO room (id, audience, classroom_id, opened_at, closed_at, tags,
			preserve_history, source_room_id, locked_types, whiteboard_access, validate_whiteboard_access)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, q,
		r.ID, r.Audience, r.ClassroomID, r.OpenedAt, nullTime(r.ClosedAt), tagsJSON,
		r.PreserveHistory, r.SourceRoomID, lockedJSON, whiteboardJSON, r.ValidateWhiteboardAccess,
	)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	return r, nil
}

const selectRoomColumns = `
	id, audience, classroom_id, opened_at, closed_at, tags,
	preserve_history, source_room_id, locked_types, whiteboard_access, validate_whiteboard_access`

// Get fetches a room by id, returning apperror.KindRoomNotFound if absent.
func (s *RoomStore) Get(ctx context.Context, id string) (*model.Room, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectRoomColumns+` FROM room WHERE id = $1`, id)
	return scanRoom(row)
}

func scanRoom(row *sql.Row) (*model.Room, error) {
	var r model.Room
	var closedAt sql.NullTime
	var tagsJSON, lockedJSON, whiteboardJSON []byte
	var sourceRoomID sql.NullString

	err := row.Scan(&r.ID, &r.Audience, &r.ClassroomID, &r.OpenedAt, &closedAt, &tagsJSON,
		&r.PreserveHistory, &sourceRoomID, &lockedJSON, &whiteboardJSON, &r.ValidateWhiteboardAccess)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.KindRoomNotFound, err)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	r.ClosedAt = fromNullTime(closedAt)
	r.SourceRoomID = fromNullString(sourceRoomID)

	if r.Tags, err = unmarshalJSON(tagsJSON); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	if r.LockedTypes, err = unmarshalBoolMap(lockedJSON); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	if r.WhiteboardAccess, err = unmarshalBoolMap(whiteboardJSON); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	return &r, nil
}

// RoomUpdate is the set of optionally-present fields room.update may change.
// OpenedAt/ClosedAt are only honored subject to the room-time state machine
// in applyRoomTimeUpdate; ClosedAt nil means "leave unbounded" when present.
type RoomUpdate struct {
	OpenedAt         *time.Time
	ClosedAt         **time.Time // nil = don't touch; *nil = set unbounded
	Tags             map[string]interface{}
	LockedTypes      map[string]bool
	WhiteboardAccess map[string]bool
}

// Update applies the room-time state machine derived from the original
// room-time bounds type: a room that hasn't started yet (opened_at in the
// future) can be moved anywhere; once started, opened_at is frozen and
// closed_at can only move into the future or go unbounded, with a requested
// close time at or before now clamped forward to now rather than applied or
// rejected; a room already closed in the past cannot be touched at all.
func (s *RoomStore) Update(ctx context.Context, id string, upd RoomUpdate, now time.Time) (*model.Room, error) {
	room, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	newOpenedAt := room.OpenedAt
	if upd.OpenedAt != nil {
		newOpenedAt = *upd.OpenedAt
	}
	newClosedAt := room.ClosedAt
	if upd.ClosedAt != nil {
		newClosedAt = *upd.ClosedAt
	}

	if newClosedAt != nil && !newOpenedAt.Before(*newClosedAt) {
		return nil, apperror.New(apperror.KindInvalidRoomTime, fmt.Errorf("opened_at must be before closed_at"))
	}

	room.OpenedAt, room.ClosedAt, err = applyRoomTimeUpdate(room.OpenedAt, room.ClosedAt, newOpenedAt, newClosedAt, now)
	if err != nil {
		return nil, err
	}

	if upd.Tags != nil {
		room.Tags = upd.Tags
	}
	if upd.LockedTypes != nil {
		room.LockedTypes = upd.LockedTypes
	}
	if upd.WhiteboardAccess != nil {
		room.WhiteboardAccess = upd.WhiteboardAccess
	}

	tagsJSON, err := marshalJSON(room.Tags)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	lockedJSON, err := marshalBoolMap(room.LockedTypes)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	whiteboardJSON, err := marshalBoolMap(room.WhiteboardAccess)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	const q = `
		UPDATE room
		SET opened_at = $2, closed_at = $3, tags = $4, locked_types = $5, whiteboard_access = $6
		WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, q, id, room.OpenedAt, nullTime(room.ClosedAt), tagsJSON, lockedJSON, whiteboardJSON); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}

	return room, nil
}

// applyRoomTimeUpdate resolves the §9 Open Question per the original
// room-time bounds type's own update state machine.
func applyRoomTimeUpdate(oldOpenedAt time.Time, oldClosedAt *time.Time, newOpenedAt time.Time, newClosedAt *time.Time, now time.Time) (time.Time, *time.Time, error) {
	if oldOpenedAt.After(now) {
		// Room hasn't started yet: any new bounds are accepted outright.
		return newOpenedAt, newClosedAt, nil
	}

	if oldClosedAt != nil && oldClosedAt.Before(now) {
		return time.Time{}, nil, apperror.New(apperror.KindInvalidRoomTime, fmt.Errorf("room is already closed"))
	}

	// Room has started and isn't closed yet: opened_at is frozen.
	switch {
	case newClosedAt == nil:
		return oldOpenedAt, nil, nil
	case newClosedAt.After(now):
		return oldOpenedAt, newClosedAt, nil
	default:
		clamped := now
		return oldOpenedAt, &clamped, nil
	}
}
