package core

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/authz"
	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/notify"
	"github.com/classbridge/event/internal/projection"
	"github.com/classbridge/event/internal/s3dump"
	"github.com/classbridge/event/internal/store"
)

type fakeClock struct{ now time.Time }

func (f fakeClock) Now() time.Time { return f.now }

func newTestContext(t *testing.T, now time.Time) (*Context, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	c := New(
		store.NewRoomStore(db),
		store.NewEventStore(db, 0, 100),
		store.NewEditionStore(db),
		store.NewChangeStore(db),
		store.NewAgentStore(db),
		store.NewBanStore(db),
		projection.NewStore(db),
		notify.NewMemory(),
		s3dump.NewMemory(),
		authz.NewAllowAll(),
		logrus.New(),
	)
	c.Clock = fakeClock{now: now}

	return c, mock, func() { db.Close() }
}

func TestContext_CreateEvent_RejectsClosedRoom(t *testing.T) {
	now := time.Now()
	closed := now.Add(-time.Hour)
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()

	mock.ExpectQuery("room WHERE id").WillReturnRows(sqlmock.NewRows([]string{
		"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
		"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
	}).AddRow("room-1", "staff", "classroom-1", now.Add(-2*time.Hour), closed, []byte(`{}`),
		false, nil, []byte(`{}`), []byte(`{}`), false))

	_, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "message", Set: "message", OccurredAt: 0, CreatedBy: "agent-1",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindRoomClosed))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_CreateEvent_PublishesOnSuccess(t *testing.T) {
	now := time.Now()
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()

	mock.ExpectQuery("room WHERE id").WillReturnRows(sqlmock.NewRows([]string{
		"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
		"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
	}).AddRow("room-1", "staff", "classroom-1", now.Add(-time.Hour), nil, []byte(`{}`),
		false, nil, []byte(`{}`), []byte(`{}`), false))
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 1))

	ev, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "message", Set: "message", OccurredAt: 1, CreatedBy: "agent-1",
		Data: map[string]interface{}{"text": "hi"},
	})
	require.NoError(t, err)
	require.NotNil(t, ev)

	mem := c.Notifier.(*notify.Memory)
	require.Len(t, mem.Published, 1)
	assert.Equal(t, notify.RoomTopic("room-1"), mem.Published[0].Topic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_CreateEvent_LockedTypeDeniesThenAllowsUpdater(t *testing.T) {
	now := time.Now()
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()
	c.Authorizer = &authz.Static{Allow: map[string]bool{}}

	roomRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
			"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
		}).AddRow("room-1", "staff", "classroom-1", now.Add(-time.Hour), nil, []byte(`{}`),
			false, nil, []byte(`{"message":true}`), []byte(`{}`), false)
	}

	mock.ExpectQuery("room WHERE id").WillReturnRows(roomRows())
	_, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "message", Set: "message", OccurredAt: 1, CreatedBy: "agent-U",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindAccessDenied))

	c.Authorizer = &authz.Static{Allow: map[string]bool{"agent-U\x00rooms/room-1.update\x00room-1": true}}
	mock.ExpectQuery("room WHERE id").WillReturnRows(roomRows())
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 1))
	ev, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "message", Set: "message", OccurredAt: 1, CreatedBy: "agent-U",
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_CreateEvent_WhiteboardAccessDeniesAbsentSubject(t *testing.T) {
	now := time.Now()
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()
	c.Authorizer = &authz.Static{Allow: map[string]bool{}}

	mock.ExpectQuery("room WHERE id").WillReturnRows(sqlmock.NewRows([]string{
		"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
		"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
	}).AddRow("room-1", "staff", "classroom-1", now.Add(-time.Hour), nil, []byte(`{}`),
		false, nil, []byte(`{}`), []byte(`{"agent-allowed":true}`), true))

	_, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: model.KindDraw, Set: "draw", OccurredAt: 1, CreatedBy: "agent-outsider",
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindAccessDenied))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_CreateEvent_ClaimPublishesToAudienceTopicToo(t *testing.T) {
	now := time.Now()
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()

	mock.ExpectQuery("room WHERE id").WillReturnRows(sqlmock.NewRows([]string{
		"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
		"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
	}).AddRow("room-1", "staff", "classroom-1", now.Add(-time.Hour), nil, []byte(`{}`),
		false, nil, []byte(`{}`), []byte(`{}`), false))
	mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "message", Set: "message", OccurredAt: 1, CreatedBy: "agent-1",
		IsClaim: true,
	})
	require.NoError(t, err)

	mem := c.Notifier.(*notify.Memory)
	require.Len(t, mem.Published, 2)
	assert.Equal(t, notify.RoomTopic("room-1"), mem.Published[0].Topic)
	assert.Equal(t, notify.AudienceTopic("staff"), mem.Published[1].Topic)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_CreateEvent_TransientSkipsStoreWrite(t *testing.T) {
	now := time.Now()
	c, mock, closeDB := newTestContext(t, now)
	defer closeDB()

	mock.ExpectQuery("room WHERE id").WillReturnRows(sqlmock.NewRows([]string{
		"id", "audience", "classroom_id", "opened_at", "closed_at", "tags",
		"preserve_history", "source_room_id", "locked_types", "whiteboard_access", "validate_whiteboard_access",
	}).AddRow("room-1", "staff", "classroom-1", now.Add(-time.Hour), nil, []byte(`{}`),
		false, nil, []byte(`{}`), []byte(`{}`), false))

	ev, err := c.CreateEvent(context.Background(), CreateEventRequest{
		RoomID: "room-1", Kind: "cursor", Set: "cursor", OccurredAt: 1, CreatedBy: "agent-1",
		Transient: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "", ev.ID) // never persisted, so never assigned a store id
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_EnterRoom_FreshVersusExisting(t *testing.T) {
	c, mock, closeDB := newTestContext(t, time.Now())
	defer closeDB()

	mock.ExpectQuery("UPDATE agent").WillReturnRows(sqlmock.NewRows([]string{"agent_id", "room_id", "status", "created_at"}))
	mock.ExpectQuery("INSERT INTO agent").
		WithArgs("agent-1", "room-1", model.AgentStatusInProgress).
		WillReturnRows(sqlmock.NewRows([]string{"agent_id", "room_id", "status", "created_at"}).
			AddRow("agent-1", "room-1", string(model.AgentStatusInProgress), time.Now()))

	agent, fresh, err := c.EnterRoom(context.Background(), "room-1", "agent-1")
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, "agent-1", agent.AgentID)

	mem := c.Notifier.(*notify.Memory)
	require.Len(t, mem.Published, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_EnterRoom_ExistingAgentDoesNotNotify(t *testing.T) {
	c, mock, closeDB := newTestContext(t, time.Now())
	defer closeDB()

	mock.ExpectQuery("UPDATE agent").WillReturnRows(sqlmock.NewRows([]string{"agent_id", "room_id", "status", "created_at"}).
		AddRow("agent-1", "room-1", string(model.AgentStatusInProgress), time.Now()))

	_, fresh, err := c.EnterRoom(context.Background(), "room-1", "agent-1")
	require.NoError(t, err)
	assert.False(t, fresh)

	mem := c.Notifier.(*notify.Memory)
	assert.Empty(t, mem.Published)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestContext_runDump_UploadsEveryLiveEvent(t *testing.T) {
	c, mock, closeDB := newTestContext(t, time.Now())
	defer closeDB()

	now := time.Now()
	mock.ExpectQuery("FROM event").WillReturnRows(sqlmock.NewRows([]string{
		"id", "room_id", "kind", "set", "label", "attribute", "data", "binary_data", "occurred_at",
		"created_by", "created_at", "deleted_at", "original_occurred_at", "original_created_by", "removed",
	}).AddRow("ev-1", "room-1", "message", "message", nil, nil, []byte(`{"text":"hi"}`), nil, int64(1),
		"agent-1", now, nil, int64(1), "agent-1", false))

	result, err := c.runDump(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.EventCount)
	assert.Equal(t, "room-1", result.RoomID)

	dumper := c.Dumper.(*s3dump.Memory)
	assert.Len(t, dumper.Objects, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
