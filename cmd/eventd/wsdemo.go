package main

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/classbridge/event/internal/core"
	"github.com/classbridge/event/internal/store"
)

// wsDemo is an illustrative transport adapter: one real consumer of
// core.CreateEvent/core.ListEvents, kept deliberately thin since the
// request/response framing, auth and MQTT broadcast these endpoints
// eventually sit behind are all out of scope for the core itself.
type wsDemo struct {
	core *core.Context
	log  logrus.FieldLogger
}

func newWSDemo(c *core.Context, log logrus.FieldLogger) *wsDemo {
	return &wsDemo{core: c, log: log}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the single envelope every inbound message uses; which of the
// CreateEvent/ListEvents-shaped fields apply depends on Type.
type wsRequest struct {
	Type       string                 `json:"type"`
	RoomID     string                 `json:"room_id"`
	Kind       string                 `json:"kind"`
	Set        string                 `json:"set"`
	Label      *string                `json:"label,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	OccurredAt int64                  `json:"occurred_at"`
	CreatedBy  string                 `json:"created_by"`
}

type wsResponse struct {
	Type  string      `json:"type"`
	OK    bool        `json:"ok"`
	Error string      `json:"error,omitempty"`
	Data  interface{} `json:"data,omitempty"`
}

func (d *wsDemo) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		d.log.WithError(err).Error("wsdemo: upgrade failed")
		return
	}
	defer conn.Close()

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		resp := d.dispatch(r.Context(), req)
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func (d *wsDemo) dispatch(ctx context.Context, req wsRequest) wsResponse {
	switch req.Type {
	case "event.create":
		ev, err := d.core.CreateEvent(ctx, core.CreateEventRequest{
			RoomID: req.RoomID, Kind: req.Kind, Set: req.Set, Label: req.Label,
			Data: req.Data, OccurredAt: req.OccurredAt, CreatedBy: req.CreatedBy,
		})
		if err != nil {
			return wsResponse{Type: req.Type, OK: false, Error: err.Error()}
		}
		return wsResponse{Type: req.Type, OK: true, Data: ev}

	case "event.list":
		events, err := d.core.ListEvents(ctx, store.ListQuery{RoomID: req.RoomID, Limit: 100})
		if err != nil {
			return wsResponse{Type: req.Type, OK: false, Error: err.Error()}
		}
		return wsResponse{Type: req.Type, OK: true, Data: events}

	default:
		return wsResponse{Type: req.Type, OK: false, Error: "unknown message type"}
	}
}
