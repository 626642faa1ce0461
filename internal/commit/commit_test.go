package commit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/store"
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewEngine(
			store.NewRoomStore(db),
			store.NewEventStore(db, 0, 100),
			store.NewEditionStore(db),
			store.NewChangeStore(db),
		), mock, func() {
			db.Close()
		}
}

// TestEngine_Run_BulkRemovalDropsOnlyTargetSet mirrors the distilled
// specification's S3 scenario: an edition whose only change is a
// BulkRemoval against one set must leave every other set's events intact
// in the derived room.
func TestEngine_Run_BulkRemovalDropsOnlyTargetSet(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	now := time.Now()

	mock.ExpectQuery("FROM edition WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "source_room_id", "created_by", "created_at"}).
			AddRow("edition-1", "room-src", "agent-1", now))

	mock.ExpectQuery("room WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
			"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
		}).AddRow("room-src", "staff", "classroom-1", now, nil, []byte(`{}`),
			false, nil, []byte(`{}`), []byte(`{}`), false))

	mock.ExpectExec("INSERT INTO room").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 4))

	mock.ExpectQuery(`SELECT id, edition_id.*ORDER BY created_at, id`).WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "edition_id", "kind", "event_id", "event_kind", "set", "label", "data",
			"occurred_at", "created_by", "created_at",
		}).AddRow("change-1", "edition-1", string(model.ChangeBulkRemoval), nil, nil, "B", nil, []byte(`{}`),
			nil, nil, now))

	mock.ExpectExec("UPDATE event").WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := engine.Run(context.Background(), "edition-1", 0)
	require.NoError(t, err)
	require.Equal(t, "edition-1", result.EditionID)
	require.Equal(t, "room-src", result.SourceRoomID)
	require.NotEmpty(t, result.ModifiedRoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestEngine_Run_AdditionReplaysAfterFullClone covers a commit whose single
// change is a plain Addition: the source room is cloned whole, then the new
// event is appended to the derived room in the replay pass.
func TestEngine_Run_AdditionReplaysAfterFullClone(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	now := time.Now()
	occurredAt := int64(5000)

	mock.ExpectQuery("FROM edition WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "source_room_id", "created_by", "created_at"}).
			AddRow("edition-1", "room-src", "agent-1", now))

	mock.ExpectQuery("room WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
			"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
		}).AddRow("room-src", "staff", "classroom-1", now, nil, []byte(`{}`),
			false, nil, []byte(`{}`), []byte(`{}`), false))

	mock.ExpectExec("INSERT INTO room").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectQuery(`SELECT id, edition_id.*ORDER BY created_at, id`).WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "edition_id", "kind", "event_id", "event_kind", "set", "label", "data",
			"occurred_at", "created_by", "created_at",
		}).AddRow("change-1", "edition-1", string(model.ChangeAddition), nil, "message", "A", "l1", []byte(`{"text":"hi"}`),
			occurredAt, "agent-1", now))

	// replay's Addition appends a fresh event to the derived room.
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := engine.Run(context.Background(), "edition-1", 0)
	require.NoError(t, err)
	require.NotEmpty(t, result.ModifiedRoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestEngine_Run_OffsetReachesCloneWithGaps guards §4.4 invariant 3: a
// commit's offset must reach the full-clone step, not be dropped to 0.
func TestEngine_Run_OffsetReachesCloneWithGaps(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	now := time.Now()

	mock.ExpectQuery("FROM edition WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "source_room_id", "created_by", "created_at"}).
			AddRow("edition-1", "room-src", "agent-1", now))

	mock.ExpectQuery("room WHERE id").WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
			"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
		}).AddRow("room-src", "staff", "classroom-1", now, nil, []byte(`{}`),
			false, nil, []byte(`{}`), []byte(`{}`), false))

	mock.ExpectExec("INSERT INTO room").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO event").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), int64(7_000), "room-src").
		WillReturnResult(sqlmock.NewResult(0, 4))

	mock.ExpectQuery(`SELECT id, edition_id.*ORDER BY created_at, id`).WillReturnRows(
		sqlmock.NewRows([]string{
			"id", "edition_id", "kind", "event_id", "event_kind", "set", "label", "data",
			"occurred_at", "created_by", "created_at",
		}))

	result, err := engine.Run(context.Background(), "edition-1", 7_000)
	require.NoError(t, err)
	require.NotEmpty(t, result.ModifiedRoomID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_RunDetached_DeliversOnChannel(t *testing.T) {
	engine, mock, closeDB := newTestEngine(t)
	defer closeDB()

	mock.ExpectQuery("FROM edition WHERE id").WillReturnError(context.DeadlineExceeded)

	ch := engine.RunDetached("edition-missing", 0)
	notification := <-ch
	require.Error(t, notification.Err)
	require.Nil(t, notification.Result)
}
