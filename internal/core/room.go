package core

import (
	"context"
	"time"

	"github.com/classbridge/event/internal/adjust"
	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/notify"
	"github.com/classbridge/event/internal/store"
)

// CreateRoomRequest is room.create's input.
type CreateRoomRequest struct {
	Audience                 string
	ClassroomID              string
	OpenedAt                 time.Time
	ClosedAt                 *time.Time
	Tags                     map[string]interface{}
	PreserveHistory          bool
	LockedTypes              map[string]bool
	WhiteboardAccess         map[string]bool
	ValidateWhiteboardAccess bool
}

// CreateRoom implements room.create.
func (c *Context) CreateRoom(ctx context.Context, req CreateRoomRequest) (*model.Room, error) {
	return c.Rooms.Create(ctx, &model.Room{
		Audience:                 req.Audience,
		ClassroomID:              req.ClassroomID,
		OpenedAt:                 req.OpenedAt,
		ClosedAt:                 req.ClosedAt,
		Tags:                     req.Tags,
		PreserveHistory:          req.PreserveHistory,
		LockedTypes:              req.LockedTypes,
		WhiteboardAccess:         req.WhiteboardAccess,
		ValidateWhiteboardAccess: req.ValidateWhiteboardAccess,
	})
}

// ReadRoom implements room.read.
func (c *Context) ReadRoom(ctx context.Context, roomID string) (*model.Room, error) {
	return c.Rooms.Get(ctx, roomID)
}

// UpdateRoom implements room.update, applying the §9 room-time state machine.
func (c *Context) UpdateRoom(ctx context.Context, roomID string, upd store.RoomUpdate) (*model.Room, error) {
	return c.Rooms.Update(ctx, roomID, upd, c.Clock.Now())
}

// EnterRoom implements room.enter: it upserts presence and reports whether
// this was a fresh entry so the caller can decide whether to publish a
// synthetic agent_enter event (§4.7).
func (c *Context) EnterRoom(ctx context.Context, roomID, agentID string) (agent *model.Agent, fresh bool, err error) {
	existing, err := c.Agents.SetStatus(ctx, roomID, agentID, model.AgentStatusInProgress)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	agent, err = c.Agents.Enter(ctx, roomID, agentID)
	if err != nil {
		return nil, false, err
	}

	if c.Notifier != nil {
		_ = c.Notifier.Publish(ctx, notify.RoomTopic(roomID), []byte(`{"type":"agent_enter","agent_id":"`+agentID+`"}`))
	}
	return agent, true, nil
}

// LeaveRoom implements room.leave: it deletes the presence row and, if one
// existed, publishes a synthetic agent_left event.
func (c *Context) LeaveRoom(ctx context.Context, roomID, agentID string) error {
	existed, err := c.Agents.Leave(ctx, roomID, agentID)
	if err != nil {
		return err
	}
	if existed && c.Notifier != nil {
		_ = c.Notifier.Publish(ctx, notify.RoomTopic(roomID), []byte(`{"type":"agent_left","agent_id":"`+agentID+`"}`))
	}
	return nil
}

// BanAccount implements room.ban's presence-side effect: it upserts the ban
// and publishes a synthetic account_ban event.
func (c *Context) BanAccount(ctx context.Context, roomID, accountID string) (*model.RoomBan, error) {
	ban, err := c.Bans.Ban(ctx, roomID, accountID)
	if err != nil {
		return nil, err
	}
	if c.Notifier != nil {
		_ = c.Notifier.Publish(ctx, notify.RoomTopic(roomID), []byte(`{"type":"account_ban","account_id":"`+accountID+`"}`))
	}
	return ban, nil
}

// UnbanAccount implements room.unban.
func (c *Context) UnbanAccount(ctx context.Context, roomID, accountID string) (bool, error) {
	return c.Bans.Unban(ctx, roomID, accountID)
}

// AdjustRoom implements room.adjust (§6), a detached task: it returns
// immediately with a channel the caller's transport layer reads from.
// offsetNanos is the §4.3 Inputs' global offset: i64 in ns.
func (c *Context) AdjustRoom(roomID string, startedAt time.Time, segments []adjust.Segment, offsetNanos int64) <-chan adjust.Notification {
	return c.Adjust.RunDetached(roomID, startedAt, segments, offsetNanos)
}

// requireOpen returns apperror.KindRoomClosed if the room rejects new events
// as of now; callers needing this check do so explicitly rather than having
// every mutating operation pay for an extra room fetch.
func requireOpen(room *model.Room, now time.Time) error {
	if room.IsClosed(now) {
		return apperror.New(apperror.KindRoomClosed, nil)
	}
	return nil
}
