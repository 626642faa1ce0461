package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/codec/draw"
	"github.com/classbridge/event/internal/model"
)

// EventStore persists the append-only event log and the clone/mass-delete
// operations the adjustment and commit engines build on top of it.
type EventStore struct {
	db              *sql.DB
	maxPayloadBytes int
	maxListLimit    int
}

// NewEventStore wires an EventStore, bounding payload size and list page
// size the way the event core's configuration does.
func NewEventStore(db *sql.DB, maxPayloadBytes, maxListLimit int) *EventStore {
	return &EventStore{db: db, maxPayloadBytes: maxPayloadBytes, maxListLimit: maxListLimit}
}

const eventColumns = `
	id, room_id, kind, "set", label, attribute, data, binary_data, occurred_at,
	created_by, created_at, deleted_at, original_occurred_at, original_created_by, removed`

// NewEvent is the set of caller-supplied fields for Append; Set defaults to
// Kind when empty, matching the original insert query's builder default.
type NewEvent struct {
	RoomID     string
	Kind       string
	Set        string
	Label      *string
	Attribute  *string
	Data       map[string]interface{}
	OccurredAt int64
	CreatedBy  string
	Removed    bool
}

// Append inserts a new event. Draw events are additionally encoded to the
// compact binary representation and stored alongside the JSON payload so
// readers can pick whichever is cheaper to decode.
func (s *EventStore) Append(ctx context.Context, n NewEvent) (*model.Event, error) {
	payload, err := marshalJSON(n.Data)
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidPayload, err)
	}
	if s.maxPayloadBytes > 0 && len(payload) > s.maxPayloadBytes {
		return nil, apperror.New(apperror.KindPayloadTooLarge, fmt.Errorf("payload is %d bytes", len(payload)))
	}

	set := n.Set
	if set == "" {
		set = n.Kind
	}

	var binaryData []byte
	if n.Kind == model.KindDraw {
		binaryData, err = encodeDrawPayload(n.Data)
		if errors.Is(err, draw.ErrUnsupportedShape) {
			// §6.4: unsupported shapes fall back to storing data alone.
			binaryData, err = nil, nil
		}
		if err != nil {
			return nil, apperror.New(apperror.KindInvalidEvent, err)
		}
	}

	// Only an untyped nil reaches the driver as NULL; a nil []byte does not.
	var binaryArg interface{}
	if binaryData != nil {
		binaryArg = binaryData
	}

	id := uuid.NewString()
	now := time.Now()

	const q = `
		INSERT INTO event (id, room_id, kind, "set", label, attribute, data, binary_data,
			occurred_at, created_by, created_at, original_occurred_at, original_created_by, removed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $9, $10, $12)`

	_, err = s.db.ExecContext(ctx, q, id, n.RoomID, n.Kind, set, n.Label, n.Attribute, payload, binaryArg,
		n.OccurredAt, n.CreatedBy, now, n.Removed)
	if err != nil {
		return nil, apperror.New(apperror.KindTransientEvent, err)
	}

	ev := &model.Event{
		ID: id, RoomID: n.RoomID, Kind: n.Kind, Set: set, Label: n.Label, Attribute: n.Attribute,
		Data: n.Data, BinaryData: binaryData, OccurredAt: n.OccurredAt, CreatedBy: n.CreatedBy,
		CreatedAt: now, OriginalOccurredAt: n.OccurredAt, OriginalCreatedBy: n.CreatedBy, Removed: n.Removed,
	}
	return ev, nil
}

// GetByID fetches a single live event by id, used by the commit engine to
// resolve a change's target event before replaying it into a derived room.
func (s *EventStore) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM event WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.KindInvalidEvent, err)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return ev, nil
}

func encodeDrawPayload(data map[string]interface{}) ([]byte, error) {
	shape, err := draw.ShapeFromMap(data)
	if err != nil {
		return nil, err
	}
	return draw.Encode(shape)
}

// ListQuery mirrors the original query builder's filter set: room is
// required, everything else narrows the result further. Limit is clamped to
// the store's configured maxListLimit.
type ListQuery struct {
	RoomID         string
	Kinds          []string
	Set            *string
	Label          *string
	Attribute      *string
	LastOccurredAt *int64
	Direction      model.Direction
	Limit          int
	IncludeRemoved bool
}

// List returns events matching q, ordered by (occurred_at, created_at)
// ascending for DirectionForward or descending for DirectionBackward.
func (s *EventStore) List(ctx context.Context, q ListQuery) ([]*model.Event, error) {
	limit := q.Limit
	if limit <= 0 || limit > s.maxListLimit {
		limit = s.maxListLimit
	}

	var where []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "deleted_at IS NULL")
	where = append(where, "room_id = "+arg(q.RoomID))

	switch len(q.Kinds) {
	case 0:
	case 1:
		where = append(where, "kind = "+arg(q.Kinds[0]))
	default:
		where = append(where, "kind = ANY("+arg(pq.Array(q.Kinds))+")")
	}
	if q.Set != nil {
		where = append(where, `"set" = `+arg(*q.Set))
	}
	if q.Label != nil {
		where = append(where, "label = "+arg(*q.Label))
	}
	if q.Attribute != nil {
		where = append(where, "attribute = "+arg(*q.Attribute))
	}
	if !q.IncludeRemoved {
		where = append(where, "removed = FALSE")
	}

	orderDir := "ASC"
	cmp := ">"
	if q.Direction == model.DirectionBackward {
		orderDir = "DESC"
		cmp = "<"
	}
	if q.LastOccurredAt != nil {
		where = append(where, fmt.Sprintf("occurred_at %s %s", cmp, arg(*q.LastOccurredAt)))
	}

	query := fmt.Sprintf(`
		SELECT %s FROM event
		WHERE %s
		ORDER BY occurred_at %s, created_at %s
		LIMIT %s`,
		eventColumns, strings.Join(where, " AND "), orderDir, orderDir, arg(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	var label, attribute, originalCreatedBy sql.NullString
	var deletedAt sql.NullTime
	var dataJSON []byte

	err := row.Scan(&e.ID, &e.RoomID, &e.Kind, &e.Set, &label, &attribute, &dataJSON, &e.BinaryData,
		&e.OccurredAt, &e.CreatedBy, &e.CreatedAt, &deletedAt, &e.OriginalOccurredAt, &originalCreatedBy, &e.Removed)
	if err != nil {
		return nil, err
	}

	e.Label = fromNullString(label)
	e.Attribute = fromNullString(attribute)
	e.DeletedAt = fromNullTime(deletedAt)
	if originalCreatedBy.Valid {
		e.OriginalCreatedBy = originalCreatedBy.String
	} else {
		e.OriginalCreatedBy = e.CreatedBy
	}

	if len(dataJSON) > 0 {
		if e.Data, err = unmarshalJSON(dataJSON); err != nil {
			return nil, err
		}
	} else if len(e.BinaryData) > 0 && e.Kind == model.KindDraw {
		shape, err := draw.Decode(e.BinaryData)
		if err != nil {
			return nil, err
		}
		e.Data = draw.ShapeToMap(shape)
	}

	return &e, nil
}

// DeleteByKind hard-deletes every live event of a kind in a room. It backs
// core.DeleteEventsByKind.
func (s *EventStore) DeleteByKind(ctx context.Context, roomID, kind string) error {
	const q = `DELETE FROM event WHERE deleted_at IS NULL AND room_id = $1 AND kind = $2`
	if _, err := s.db.ExecContext(ctx, q, roomID, kind); err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	return nil
}

// MassDelete soft-deletes (sets deleted_at) every live event in a room,
// optionally narrowed by set and/or the edition whose changes are being
// applied. It is how the commit engine realizes a BulkRemoval change.
func (s *EventStore) MassDelete(ctx context.Context, roomID string, set *string, editionID *string) error {
	var q string
	args := []interface{}{roomID}

	switch {
	case set == nil && editionID == nil:
		q = `UPDATE event SET deleted_at = NOW() WHERE deleted_at IS NULL AND room_id = $1`
	case set != nil && editionID == nil:
		q = `UPDATE event SET deleted_at = NOW() WHERE deleted_at IS NULL AND room_id = $1 AND "set" = $2`
		args = append(args, *set)
	case set == nil && editionID != nil:
		q = `UPDATE event SET deleted_at = NOW() WHERE deleted_at IS NULL AND room_id = $1
			AND EXISTS (SELECT 1 FROM change c WHERE c.edition_id = $2)`
		args = append(args, *editionID)
	default:
		q = `UPDATE event SET deleted_at = NOW() WHERE deleted_at IS NULL AND room_id = $1 AND "set" = $2
			AND EXISTS (SELECT 1 FROM change c WHERE c.edition_id = $3)`
		args = append(args, *set, *editionID)
	}

	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	return nil
}

// OriginalEvent returns the earliest live event for a (set, label) lane, or
// nil if the lane has no events.
func (s *EventStore) OriginalEvent(ctx context.Context, roomID, set, label string) (*model.Event, error) {
	const q = `
		SELECT ` + eventColumns + `
		FROM event
		WHERE deleted_at IS NULL AND room_id = $1 AND "set" = $2 AND label = $3
		ORDER BY occurred_at
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, roomID, set, label)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return ev, nil
}

// CloneWithGaps copies every live event from sourceRoomID into destRoomID,
// excising the half-open [start, stop) ranges in gaps from the occurred_at
// timeline and then shifting every event by offsetNanos. Events of one
// (set, label) lane that land on the same occurred_at are monotonized by
// adding their created_at rank minus one (in ns), so they never collide after
// compression, except kind="stream" bookkeeping events which are left
// untouched to avoid skewing future cut calculations. original_occurred_at
// and original_created_by are copied from the source event unchanged.
func (s *EventStore) CloneWithGaps(ctx context.Context, destRoomID, sourceRoomID string, gaps []TimeRange, offsetNanos int64) error {
	starts := make([]int64, len(gaps))
	stops := make([]int64, len(gaps))
	for i, g := range gaps {
		starts[i] = g.Start
		stops[i] = g.Stop
	}

	const q = `
		WITH
			gap_starts AS (
				SELECT start, ROW_NUMBER() OVER () AS row_number
				FROM UNNEST($1::BIGINT[]) AS start
			),
			gap_stops AS (
				SELECT stop, ROW_NUMBER() OVER () AS row_number
				FROM UNNEST($2::BIGINT[]) AS stop
			),
			gaps AS (
				SELECT start, stop
				FROM gap_starts, gap_stops
				WHERE gap_stops.row_number = gap_starts.row_number
			)
		INSERT INTO event (id, room_id, kind, "set", label, data, binary_data, attribute, removed, occurred_at, created_by, created_at,
			original_occurred_at, original_created_by)
		SELECT
			gen_random_uuid(),
			room_id,
			kind,
			"set",
			label,
			data,
			binary_data,
			attribute,
			removed,
			(
				CASE kind
				WHEN 'stream' THEN occurred_at
				ELSE occurred_at + ROW_NUMBER() OVER (PARTITION BY "set", label, occurred_at, kind = 'stream' ORDER BY created_at) - 1
				END
			),
			created_by,
			created_at,
			original_occurred_at,
			original_created_by
		FROM (
			SELECT
				$3::UUID AS room_id,
				kind,
				"set",
				label,
				data,
				binary_data,
				attribute,
				removed,
				(
					CASE occurred_at <= COALESCE((SELECT stop FROM gaps WHERE start = 0), -1)
					WHEN TRUE THEN 0
					ELSE occurred_at - (
						SELECT COALESCE(SUM(LEAST(stop, occurred_at) - start), 0)
						FROM gaps
						WHERE start < occurred_at
						AND   start >= 0
					)
					END
				) + $4::BIGINT AS occurred_at,
				created_by,
				created_at,
				original_occurred_at,
				original_created_by
			FROM event
			WHERE room_id = $5
			AND   deleted_at IS NULL
		) AS sub`

	_, err := s.db.ExecContext(ctx, q, pq.Array(starts), pq.Array(stops), destRoomID, offsetNanos, sourceRoomID)
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	return nil
}

// TimeRange is a half-open [Start, Stop) nanosecond range, kept distinct
// from timeinterval.Range so this package doesn't need to import the
// adjustment engine's internals; adjust/commit convert to this shape at the
// store boundary.
type TimeRange struct {
	Start int64
	Stop  int64
}

// NewTimeRange builds a TimeRange for CloneWithGaps callers outside this package.
func NewTimeRange(start, stop int64) TimeRange {
	return TimeRange{Start: start, Stop: stop}
}

// Vacuum deletes events beyond the retention bounds: history deeper than
// maxHistorySize per lane, history older than maxHistoryLifetime, and
// deleted-attribute tombstones older than maxDeletedLifetime. Rooms with
// preserve_history are exempt entirely.
func (s *EventStore) Vacuum(ctx context.Context, maxHistorySize int, maxHistoryLifetime, maxDeletedLifetime time.Duration) error {
	const q = `
		DELETE FROM event
		WHERE id IN (
			WITH sub AS (
				SELECT
					e.*,
					ROW_NUMBER() OVER (
						PARTITION BY e.room_id, e."set", e.label
						ORDER BY e.occurred_at DESC
					) AS reverse_ordinal
				FROM event AS e
				INNER JOIN room AS r ON r.id = e.room_id
				WHERE r.preserve_history = FALSE
			)
			SELECT id FROM sub WHERE reverse_ordinal > $1

			UNION ALL

			SELECT id FROM sub
			WHERE reverse_ordinal > 1
			AND   created_at < NOW() - ($2 * INTERVAL '1 second')

			UNION ALL

			SELECT e.id
			FROM sub
			INNER JOIN event AS e
			ON  e.room_id = sub.room_id
			AND e."set" = sub."set"
			AND e.label = sub.label
			WHERE e.deleted_at IS NULL
			AND   sub.attribute = 'deleted'
			AND   sub.reverse_ordinal = 1
			AND   sub.created_at < NOW() - ($3 * INTERVAL '1 second')
		)`

	_, err := s.db.ExecContext(ctx, q, maxHistorySize, maxHistoryLifetime.Seconds(), maxDeletedLifetime.Seconds())
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	return nil
}
