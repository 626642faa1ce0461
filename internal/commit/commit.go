// Package commit implements edition commit (§4.4): replaying an edition's
// pending changes against a full clone of its source room, producing a new
// derived room, on a detached goroutine.
package commit

import (
	"context"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/store"
)

// Result is what a completed commit reports back to the caller.
type Result struct {
	EditionID      string
	SourceRoomID   string
	ModifiedRoomID string
}

// Notification is what a detached commit reports on completion.
type Notification struct {
	Result *Result
	Err    error
}

// Engine runs edition commits against a set of stores.
type Engine struct {
	Rooms    *store.RoomStore
	Events   *store.EventStore
	Editions *store.EditionStore
	Changes  *store.ChangeStore
}

// NewEngine wires a commit Engine.
func NewEngine(rooms *store.RoomStore, events *store.EventStore, editions *store.EditionStore, changes *store.ChangeStore) *Engine {
	return &Engine{Rooms: rooms, Events: events, Editions: editions, Changes: changes}
}

// Run performs one commit synchronously: it clones the edition's source room
// in full (no excised gaps, shifted by offsetNanos), replays the edition's
// changes against the clone in (created_at, id) order, and returns the
// derived room's id.
//
// Modification and Removal changes reference an event in the source room by
// id, but cloning mints fresh ids for every cloned row, so a referenced event
// cannot be located or mutated in place in the derived room. Both kinds are
// instead realized as a new version appended to the same (set, label) lane
// the referenced event belongs to — Removal with Removed set true — which
// the state projection's latest-version-per-lane ordering surfaces as that
// lane's current value, exactly as it would an ordinary edit made live.
func (e *Engine) Run(ctx context.Context, editionID string, offsetNanos int64) (*Result, error) {
	edition, err := e.Editions.Get(ctx, editionID)
	if err != nil {
		return nil, err
	}

	source, err := e.Rooms.Get(ctx, edition.SourceRoomID)
	if err != nil {
		return nil, err
	}

	derived := &model.Room{
		Audience:                 source.Audience,
		ClassroomID:              source.ClassroomID,
		OpenedAt:                 source.OpenedAt,
		ClosedAt:                 source.ClosedAt,
		Tags:                     source.Tags,
		PreserveHistory:          source.PreserveHistory,
		SourceRoomID:             &edition.SourceRoomID,
		LockedTypes:              source.LockedTypes,
		WhiteboardAccess:         source.WhiteboardAccess,
		ValidateWhiteboardAccess: source.ValidateWhiteboardAccess,
	}
	derived, err = e.Rooms.Create(ctx, derived)
	if err != nil {
		return nil, err
	}

	if err := e.Events.CloneWithGaps(ctx, derived.ID, edition.SourceRoomID, nil, offsetNanos); err != nil {
		return nil, apperror.New(apperror.KindEditionCommitFail, err)
	}

	changes, err := e.Changes.ListByEdition(ctx, editionID)
	if err != nil {
		return nil, err
	}

	bulkRemovedSets := make(map[string]bool)
	for _, c := range changes {
		if c.Kind == model.ChangeBulkRemoval && c.Set != nil {
			bulkRemovedSets[*c.Set] = true
		}
	}
	for set := range bulkRemovedSets {
		set := set
		if err := e.Events.MassDelete(ctx, derived.ID, &set, nil); err != nil {
			return nil, apperror.New(apperror.KindEditionCommitFail, err)
		}
	}

	for _, c := range changes {
		if err := e.replay(ctx, derived.ID, c, bulkRemovedSets); err != nil {
			return nil, apperror.New(apperror.KindEditionCommitFail, err)
		}
	}

	return &Result{EditionID: editionID, SourceRoomID: edition.SourceRoomID, ModifiedRoomID: derived.ID}, nil
}

func (e *Engine) replay(ctx context.Context, derivedRoomID string, c *model.Change, bulkRemovedSets map[string]bool) error {
	switch c.Kind {
	case model.ChangeBulkRemoval:
		// already applied as a mass delete before individual replay began.
		return nil

	case model.ChangeAddition:
		if c.Set == nil || c.EventKind == nil || c.OccurredAt == nil || c.CreatedBy == nil {
			return nil
		}
		if bulkRemovedSets[*c.Set] {
			return nil
		}
		_, err := e.Events.Append(ctx, store.NewEvent{
			RoomID:     derivedRoomID,
			Kind:       *c.EventKind,
			Set:        *c.Set,
			Label:      c.Label,
			Data:       c.Data,
			OccurredAt: *c.OccurredAt,
			CreatedBy:  *c.CreatedBy,
		})
		return err

	case model.ChangeModification, model.ChangeRemoval:
		if c.EventID == nil {
			return nil
		}
		original, err := e.Events.GetByID(ctx, *c.EventID)
		if err != nil {
			if apperror.Is(err, apperror.KindInvalidEvent) {
				return nil
			}
			return err
		}
		if bulkRemovedSets[original.Set] {
			return nil
		}

		occurredAt := original.OccurredAt
		if c.OccurredAt != nil {
			occurredAt = *c.OccurredAt
		}
		createdBy := original.CreatedBy
		if c.CreatedBy != nil {
			createdBy = *c.CreatedBy
		}
		data := original.Data
		if c.Kind == model.ChangeModification && c.Data != nil {
			data = c.Data
		}

		_, err = e.Events.Append(ctx, store.NewEvent{
			RoomID:     derivedRoomID,
			Kind:       original.Kind,
			Set:        original.Set,
			Label:      original.Label,
			Attribute:  original.Attribute,
			Data:       data,
			OccurredAt: occurredAt,
			CreatedBy:  createdBy,
			Removed:    c.Kind == model.ChangeRemoval,
		})
		return err
	}
	return nil
}

// RunDetached starts Run on a background goroutine rooted in
// context.Background(), per §5: a client disconnecting must not cancel an
// in-flight commit. The returned channel receives exactly one Result or
// error and is then closed.
func (e *Engine) RunDetached(editionID string, offsetNanos int64) <-chan Notification {
	ch := make(chan Notification, 1)

	go func() {
		defer close(ch)
		result, err := e.Run(context.Background(), editionID, offsetNanos)
		ch <- Notification{Result: result, Err: err}
	}()

	return ch
}
