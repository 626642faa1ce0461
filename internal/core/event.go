package core

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/notify"
	"github.com/classbridge/event/internal/store"
)

// CreateEventRequest is event.create's input.
type CreateEventRequest struct {
	RoomID     string
	Kind       string
	Set        string
	Label      *string
	Attribute  *string
	Data       map[string]interface{}
	OccurredAt int64
	CreatedBy  string
	// Subject is the acting agent for access-control purposes; it defaults
	// to CreatedBy when empty since the two are almost always the same
	// agent (§6.1's request envelope carries a single agent_id).
	Subject string
	// IsClaim additionally broadcasts the event on the room's audience
	// topic, not just its room topic (§6.2, glossary "Claim").
	IsClaim bool
	// Transient, when true, skips the store write entirely: the event is
	// built and broadcast but never durably appended (§9's transient event
	// design note; this is the inverse of the wire request's
	// is_persistent flag, whose zero value means "persist as normal").
	Transient bool
	Removed   bool
}

// CreateEvent implements event.create: it rejects appends to a closed room
// (§4.1), enforces locked-kind and whiteboard-access checks (§8 properties
// 7-8), and publishes the new event to the room's topic (and, for claims,
// the audience topic) on success.
func (c *Context) CreateEvent(ctx context.Context, req CreateEventRequest) (*model.Event, error) {
	room, err := c.Rooms.Get(ctx, req.RoomID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(room, c.Clock.Now()); err != nil {
		return nil, err
	}

	subject := req.Subject
	if subject == "" {
		subject = req.CreatedBy
	}
	if err := c.checkEventAccess(ctx, room, req.Kind, subject); err != nil {
		return nil, err
	}

	var ev *model.Event
	if req.Transient {
		ev = transientEvent(req)
	} else {
		ev, err = c.Events.Append(ctx, store.NewEvent{
			RoomID:     req.RoomID,
			Kind:       req.Kind,
			Set:        req.Set,
			Label:      req.Label,
			Attribute:  req.Attribute,
			Data:       req.Data,
			OccurredAt: req.OccurredAt,
			CreatedBy:  req.CreatedBy,
			Removed:    req.Removed,
		})
		if err != nil {
			return nil, err
		}
	}

	if c.Notifier != nil {
		if payload, marshalErr := marshalEventNotification(ev); marshalErr == nil {
			_ = c.Notifier.Publish(ctx, notify.RoomTopic(req.RoomID), payload)
			if req.IsClaim {
				_ = c.Notifier.Publish(ctx, notify.AudienceTopic(room.Audience), payload)
			}
		}
	}
	return ev, nil
}

// transientEvent builds an in-memory event with the same shape a persisted
// append would have produced, for is_persistent=false requests: broadcast
// without a store write (§9).
func transientEvent(req CreateEventRequest) *model.Event {
	set := req.Set
	if set == "" {
		set = req.Kind
	}
	return &model.Event{
		RoomID: req.RoomID, Kind: req.Kind, Set: set, Label: req.Label, Attribute: req.Attribute,
		Data: req.Data, OccurredAt: req.OccurredAt, CreatedBy: req.CreatedBy,
		OriginalOccurredAt: req.OccurredAt, OriginalCreatedBy: req.CreatedBy, Removed: req.Removed,
	}
}

// checkEventAccess enforces §8 properties 7 and 8: appending a locked event
// kind always requires room-update rights; appending a draw event in a
// whiteboard-access-validating room requires them only when the subject is
// not granted in the room's whiteboard_access map.
func (c *Context) checkEventAccess(ctx context.Context, room *model.Room, kind, subject string) error {
	if c.Authorizer == nil {
		return nil
	}
	updateAction := fmt.Sprintf("rooms/%s.update", room.ID)

	if room.LockedTypes[kind] {
		if err := c.Authorizer.Authorize(ctx, subject, updateAction, room.ID); err != nil {
			return err
		}
	}
	if room.ValidateWhiteboardAccess && kind == model.KindDraw && !room.WhiteboardAccess[subject] {
		if err := c.Authorizer.Authorize(ctx, subject, updateAction, room.ID); err != nil {
			return err
		}
	}
	return nil
}

// ListEvents implements event.list.
func (c *Context) ListEvents(ctx context.Context, q store.ListQuery) ([]*model.Event, error) {
	return c.Events.List(ctx, q)
}

// DeleteEventsByKind implements the kind-scoped hard-delete operation used
// to prune an entire event kind out of a room (§4.1).
func (c *Context) DeleteEventsByKind(ctx context.Context, roomID, kind string) error {
	return c.Events.DeleteByKind(ctx, roomID, kind)
}

// eventNotification is the wire shape published for a new event; it carries
// only what a same-room subscriber needs to apply the event, not the full
// store record.
type eventNotification struct {
	Type       string                 `json:"type"`
	EventID    string                 `json:"event_id"`
	Kind       string                 `json:"kind"`
	Set        string                 `json:"set"`
	Label      *string                `json:"label,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt int64                  `json:"occurred_at"`
	CreatedBy  string                 `json:"created_by"`
}

func marshalEventNotification(ev *model.Event) ([]byte, error) {
	return json.Marshal(eventNotification{
		Type: "event", EventID: ev.ID, Kind: ev.Kind, Set: ev.Set, Label: ev.Label,
		Data: ev.Data, OccurredAt: ev.OccurredAt, CreatedBy: ev.CreatedBy,
	})
}
