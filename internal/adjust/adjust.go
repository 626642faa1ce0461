// Package adjust implements room adjustment (§4.3): deriving cut gaps from a
// source room's stream bookkeeping events, excising them from the timeline,
// and cloning the result into a new derived room on a detached goroutine.
package adjust

import (
	"context"
	"fmt"
	"time"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/store"
	"github.com/classbridge/event/internal/timeinterval"
)

// nanosecondsInMillisecond bridges recording segment units (ms) to the
// event timeline's unit (ns), mirroring the source system's own constant.
const nanosecondsInMillisecond = 1_000_000

// Segment is a [StartMs, StopMs) range of the source recording that should
// survive into the derived room.
type Segment struct {
	StartMs int64
	StopMs  int64
}

// Result is what a completed adjustment reports back to the caller.
type Result struct {
	OriginalRoomID   string
	ModifiedRoomID   string
	ModifiedSegments []Segment
}

// Engine runs room adjustments against a set of stores.
type Engine struct {
	Rooms  *store.RoomStore
	Events *store.EventStore
}

// NewEngine wires an adjustment Engine.
func NewEngine(rooms *store.RoomStore, events *store.EventStore) *Engine {
	return &Engine{Rooms: rooms, Events: events}
}

// Run performs one adjustment synchronously: it derives cut gaps from the
// source room's "stream" events, computes the excision and the modified
// segment set, creates the derived room, and clones the excised, offset,
// monotonized timeline into it. Callers that want the detached-task
// semantics of §5 wrap this in a goroutine (see RunDetached).
func (e *Engine) Run(ctx context.Context, sourceRoomID string, startedAt time.Time, segmentsMs []Segment, offsetNanos int64) (*Result, error) {
	source, err := e.Rooms.Get(ctx, sourceRoomID)
	if err != nil {
		return nil, err
	}

	boundNanos, err := roomBoundNanos(source, startedAt)
	if err != nil {
		return nil, apperror.New(apperror.KindRoomAdjustFailed, err)
	}

	cutEvents, err := e.loadCutEvents(ctx, sourceRoomID)
	if err != nil {
		return nil, apperror.New(apperror.KindRoomAdjustFailed, err)
	}
	cutGaps, err := timeinterval.CutEventsToGaps(cutEvents)
	if err != nil {
		return nil, apperror.New(apperror.KindRoomAdjustFailed, err)
	}

	segments := make([]timeinterval.Range, len(segmentsMs))
	for i, seg := range segmentsMs {
		segments[i] = timeinterval.Range{
			Start: seg.StartMs * nanosecondsInMillisecond,
			Stop:  seg.StopMs * nanosecondsInMillisecond,
		}
	}

	// The gaps actually excised from the clone are the recording's own
	// silent stretches unioned with the explicit cut gaps: both kinds of
	// "this didn't happen" interval get compressed out of the timeline.
	excisionGaps := timeinterval.Union(timeinterval.Invert(segments, boundNanos), cutGaps)

	// What's reported back as the surviving segment set is the original
	// segments minus whatever the cut gaps removed from them.
	modifiedSegments := timeinterval.Intersect(segments, timeinterval.Invert(cutGaps, boundNanos))

	closedAt := source.ClosedAt
	derived := &model.Room{
		Audience:                 source.Audience,
		ClassroomID:              source.ClassroomID,
		OpenedAt:                 source.OpenedAt,
		ClosedAt:                 closedAt,
		Tags:                     source.Tags,
		PreserveHistory:          source.PreserveHistory,
		SourceRoomID:             &sourceRoomID,
		LockedTypes:              source.LockedTypes,
		WhiteboardAccess:         source.WhiteboardAccess,
		ValidateWhiteboardAccess: source.ValidateWhiteboardAccess,
	}
	derived, err = e.Rooms.Create(ctx, derived)
	if err != nil {
		return nil, err
	}

	gaps := make([]store.TimeRange, len(excisionGaps))
	for i, g := range excisionGaps {
		gaps[i] = store.NewTimeRange(g.Start, g.Stop)
	}

	if err := e.Events.CloneWithGaps(ctx, derived.ID, sourceRoomID, gaps, offsetNanos); err != nil {
		return nil, apperror.New(apperror.KindRoomAdjustFailed, err)
	}

	out := make([]Segment, len(modifiedSegments))
	for i, s := range modifiedSegments {
		out[i] = Segment{StartMs: s.Start / nanosecondsInMillisecond, StopMs: s.Stop / nanosecondsInMillisecond}
	}

	return &Result{OriginalRoomID: sourceRoomID, ModifiedRoomID: derived.ID, ModifiedSegments: out}, nil
}

// RunDetached starts Run on a background goroutine rooted in
// context.Background(), per §5: a client disconnecting must not cancel an
// in-flight adjustment. The returned channel receives exactly one Result or
// error and is then closed.
func (e *Engine) RunDetached(sourceRoomID string, startedAt time.Time, segmentsMs []Segment, offsetNanos int64) <-chan Notification {
	ch := make(chan Notification, 1)

	go func() {
		defer close(ch)
		result, err := e.Run(context.Background(), sourceRoomID, startedAt, segmentsMs, offsetNanos)
		ch <- Notification{Result: result, Err: err}
	}()

	return ch
}

// Notification is what a detached adjustment reports on completion.
type Notification struct {
	Result *Result
	Err    error
}

func (e *Engine) loadCutEvents(ctx context.Context, roomID string) ([]timeinterval.CutEvent, error) {
	events, err := e.Events.List(ctx, store.ListQuery{
		RoomID:    roomID,
		Kinds:     []string{model.KindStream},
		Direction: model.DirectionForward,
		Limit:     1 << 20,
	})
	if err != nil {
		return nil, err
	}

	out := make([]timeinterval.CutEvent, 0, len(events))
	for _, ev := range events {
		cmd, _ := ev.Data["cut"].(string)
		out = append(out, timeinterval.CutEvent{ID: ev.ID, OccurredAt: ev.OccurredAt, Command: cmd})
	}
	return out, nil
}

func roomBoundNanos(room *model.Room, startedAt time.Time) (int64, error) {
	if room.ClosedAt == nil {
		return 0, fmt.Errorf("room has no closing time to bound adjustment against")
	}
	return room.ClosedAt.Sub(startedAt).Nanoseconds(), nil
}
