// Package model holds the data-model types from the specification's §3:
// Room, Event, Edition, Change, Agent and RoomBan.
package model

import "time"

// Room is a bounded (or open-ended) timeline that events are appended to.
type Room struct {
	ID                       string
	Audience                 string
	ClassroomID              string
	OpenedAt                 time.Time
	ClosedAt                 *time.Time // nil = unbounded
	Tags                     map[string]interface{}
	PreserveHistory          bool
	SourceRoomID             *string
	LockedTypes              map[string]bool
	WhiteboardAccess         map[string]bool
	ValidateWhiteboardAccess bool
}

// IsClosed reports whether the room rejects new events as of now.
func (r *Room) IsClosed(now time.Time) bool {
	return r.ClosedAt != nil && !r.ClosedAt.After(now)
}

// IsDerived reports whether this room was produced by adjustment or commit.
func (r *Room) IsDerived() bool {
	return r.SourceRoomID != nil
}

// ChangeKind enumerates the kinds of edits an edition's changes can carry.
type ChangeKind string

const (
	ChangeAddition     ChangeKind = "addition"
	ChangeModification ChangeKind = "modification"
	ChangeRemoval      ChangeKind = "removal"
	ChangeBulkRemoval  ChangeKind = "bulk_removal"
)

// Direction controls the ordering and comparison direction of Event.List.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// AgentStatus is the presence state of an agent in a room.
type AgentStatus string

const (
	AgentStatusInProgress AgentStatus = "in_progress"
	AgentStatusReady      AgentStatus = "ready"
)

// Event is one entry in a room's append-only log.
type Event struct {
	ID                 string
	RoomID             string
	Kind               string
	Set                string
	Label              *string
	Attribute          *string
	Data               map[string]interface{}
	BinaryData         []byte
	OccurredAt         int64
	CreatedBy          string
	CreatedAt          time.Time
	DeletedAt          *time.Time
	OriginalOccurredAt int64
	OriginalCreatedBy  string
	Removed            bool
}

// IsDeleted reports whether the event is a soft-deleted tombstone.
func (e *Event) IsDeleted() bool { return e.DeletedAt != nil }

// KindDraw is the event kind that always carries a binary encoding.
const KindDraw = "draw"

// KindStream is the event kind used for cut-start/cut-stop bookkeeping;
// it is exempt from per-lane monotonization during cloning.
const KindStream = "stream"

// Lane identifies the mutable series of versions of one logical object.
type Lane struct {
	RoomID string
	Set    string
	Label  string
}

// Edition owns a set of pending changes against a source room.
type Edition struct {
	ID           string
	SourceRoomID string
	CreatedBy    string
	CreatedAt    time.Time
}

// Change is one pending edit belonging to an Edition.
type Change struct {
	ID         string
	EditionID  string
	Kind       ChangeKind
	EventID    *string // required for Modification/Removal
	EventKind  *string
	Set        *string
	Label      *string
	Data       map[string]interface{}
	OccurredAt *int64
	CreatedBy  *string
	CreatedAt  time.Time
}

// Agent is a per-room presence record.
type Agent struct {
	AgentID   string
	RoomID    string
	Status    AgentStatus
	CreatedAt time.Time
}

// RoomBan is a per-room account ban record.
type RoomBan struct {
	AccountID string
	RoomID    string
	CreatedAt time.Time
}
