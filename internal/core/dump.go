package core

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/s3dump"
	"github.com/classbridge/event/internal/store"
)

// DumpResult is what a completed room.dump_events reports back to the caller.
type DumpResult struct {
	RoomID     string
	ObjectURI  string
	EventCount int
}

// DumpNotification is what a detached dump reports on completion.
type DumpNotification struct {
	Result *DumpResult
	Err    error
}

// DumpRoomEvents implements room.dump_events (§6): it exports every live
// event in a room as newline-delimited JSON and uploads it through Dumper,
// running detached the same way AdjustRoom and CommitEdition do.
func (c *Context) DumpRoomEvents(roomID string) <-chan DumpNotification {
	ch := make(chan DumpNotification, 1)

	go func() {
		defer close(ch)
		result, err := c.runDump(context.Background(), roomID)
		ch <- DumpNotification{Result: result, Err: err}
	}()

	return ch
}

func (c *Context) runDump(ctx context.Context, roomID string) (*DumpResult, error) {
	events, err := c.Events.List(ctx, store.ListQuery{
		RoomID:         roomID,
		Direction:      model.DirectionForward,
		IncludeRemoved: true,
		Limit:          1 << 20,
	})
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return nil, apperror.New(apperror.KindS3UploadFailed, err)
		}
	}

	key := s3dump.EventsKey(roomID, uuid.NewString())
	uri, err := c.Dumper.Put(ctx, key, buf.Bytes())
	if err != nil {
		return nil, apperror.New(apperror.KindS3UploadFailed, err)
	}

	return &DumpResult{RoomID: roomID, ObjectURI: uri, EventCount: len(events)}, nil
}
