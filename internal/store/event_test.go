package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

func TestEventStore_Append_PayloadTooLarge(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewEventStore(db, 8, 100) // 8-byte payload cap

	_, err = s.Append(context.Background(), NewEvent{
		RoomID: "room-1", Kind: "message", Set: "message",
		Data: map[string]interface{}{"text": "this payload is definitely longer than eight bytes"},
		OccurredAt: 0, CreatedBy: "agent-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindPayloadTooLarge))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_Append_DefaultsSetToKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO event").
		WithArgs(sqlmock.AnyArg(), "room-1", "message", "message", nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(10), "agent-1", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewEventStore(db, 0, 100)
	ev, err := s.Append(context.Background(), NewEvent{
		RoomID: "room-1", Kind: "message", OccurredAt: 10, CreatedBy: "agent-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "message", ev.Set)
	assert.Equal(t, int64(10), ev.OriginalOccurredAt)
	assert.Equal(t, "agent-1", ev.OriginalCreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestEventStore_Append_UnsupportedDrawShapeFallsBackToDataOnly covers §6.4:
// a draw event whose shape the binary codec doesn't know falls back to
// storing data alone (NULL binary_data) instead of failing the append.
func TestEventStore_Append_UnsupportedDrawShapeFallsBackToDataOnly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO event").
		WithArgs(sqlmock.AnyArg(), "room-1", "draw", "draw", nil, nil, sqlmock.AnyArg(), nil,
			int64(0), "agent-1", sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewEventStore(db, 0, 100)
	ev, err := s.Append(context.Background(), NewEvent{
		RoomID: "room-1", Kind: "draw", Set: "draw",
		Data:       map[string]interface{}{"shape": "freehand"},
		OccurredAt: 0, CreatedBy: "agent-1",
	})
	require.NoError(t, err)
	assert.Nil(t, ev.BinaryData)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_List_ForwardOrdering(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "room_id", "kind", "set", "label", "attribute", "data", "binary_data", "occurred_at",
		"created_by", "created_at", "deleted_at", "original_occurred_at", "original_created_by", "removed",
	}).AddRow("ev-1", "room-1", "message", "message", nil, nil, []byte(`{"text":"hi"}`), nil, int64(1),
		"agent-1", now, nil, int64(1), "agent-1", false)

	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	s := NewEventStore(db, 0, 100)
	events, err := s.List(context.Background(), ListQuery{RoomID: "room-1", Direction: model.DirectionForward})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ev-1", events[0].ID)
	assert.Equal(t, "hi", events[0].Data["text"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT").WillReturnError(sql.ErrNoRows)

	s := NewEventStore(db, 0, 100)
	_, err = s.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInvalidEvent))
}

func TestEventStore_CloneWithGaps_PassesOffsetAndGapArrays(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO event").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "room-dest", int64(500), "room-src").
		WillReturnResult(sqlmock.NewResult(0, 4))

	s := NewEventStore(db, 0, 100)
	err = s.CloneWithGaps(context.Background(), "room-dest", "room-src",
		[]TimeRange{NewTimeRange(1_200_000_000, 1_800_000_000)}, 500)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_CloneWithGaps_NoGapsIsAFullClone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO event").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "room-dest", int64(0), "room-src").
		WillReturnResult(sqlmock.NewResult(0, 10))

	s := NewEventStore(db, 0, 100)
	err = s.CloneWithGaps(context.Background(), "room-dest", "room-src", nil, 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_MassDelete_ScopesToSetWhenGiven(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	set := "B"
	mock.ExpectExec(`UPDATE event SET deleted_at = NOW\(\) WHERE deleted_at IS NULL AND room_id = \$1 AND "set" = \$2`).
		WithArgs("room-1", "B").
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := NewEventStore(db, 0, 100)
	err = s.MassDelete(context.Background(), "room-1", &set, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_MassDelete_NoFiltersDeletesWholeRoom(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE event SET deleted_at = NOW\(\) WHERE deleted_at IS NULL AND room_id = \$1$`).
		WithArgs("room-1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	s := NewEventStore(db, 0, 100)
	err = s.MassDelete(context.Background(), "room-1", nil, nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventStore_DeleteByKind_HardDeletesMatchingKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM event").
		WithArgs("room-1", model.KindStream).
		WillReturnResult(sqlmock.NewResult(0, 2))

	s := NewEventStore(db, 0, 100)
	err = s.DeleteByKind(context.Background(), "room-1", model.KindStream)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestEventStore_Vacuum_PassesHistoryBoundsAsSeconds mirrors the distilled
// specification's S6 scenario: a lane with deep history is swept down to
// maxHistorySize newest versions.
func TestEventStore_Vacuum_PassesHistoryBoundsAsSeconds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM event").
		WithArgs(10, float64(604800), float64(86400)).
		WillReturnResult(sqlmock.NewResult(0, 90))

	s := NewEventStore(db, 0, 100)
	err = s.Vacuum(context.Background(), 10, 7*24*time.Hour, 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
