// Package projection implements the "state" read model (§4.2): the latest
// live version of every (set, label) lane in a room as of a point in time,
// with optional attribute filtering and a matching total count.
package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// Store answers state queries directly against the event table, the way the
// original set_state query does: DISTINCT ON (original_occurred_at, label)
// picks the latest version of each lane (highest occurred_at), ordered so
// the lane with the newest original_occurred_at sorts first.
type Store struct {
	db *sql.DB
}

// NewStore wires a projection Store against the same pool the event store uses.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Query narrows a state read. OccurredAt bounds results to the room's state
// as of that point in its own timeline; nil means "now" (unbounded).
type Query struct {
	RoomID             string
	Set                string
	OriginalOccurredAt int64
	OccurredAt         *int64
	Attribute          *string
	Limit              int
}

// setStateSQL picks the latest live version of each (original_occurred_at,
// label) lane in the inner DISTINCT ON, then applies the attribute filter
// and the page LIMIT in the outer query — in that order, like set_state.rs
// does — so the LIMIT counts only lanes whose latest version matches the
// attribute filter.
const setStateSQL = `
	SELECT * FROM (
		SELECT DISTINCT ON (original_occurred_at, label)
			id, room_id, kind, "set", label, attribute, data, binary_data, occurred_at,
			created_by, created_at, deleted_at, original_occurred_at, original_created_by, removed
		FROM event
		WHERE deleted_at IS NULL
		AND   room_id = $1
		AND   "set" = $2
		AND   original_occurred_at < $3
		AND   occurred_at < $4
		ORDER BY original_occurred_at DESC, label ASC, occurred_at DESC
	) AS latest
	WHERE ($5::TEXT IS NULL OR attribute = $5::TEXT)
	ORDER BY original_occurred_at DESC, label ASC, occurred_at DESC
	LIMIT $6`

// State returns the latest live version of each lane in q.Set, lanes with
// the newest original_occurred_at first. When q.Attribute is set, it filters on the
// latest version only (an older version matching the attribute doesn't
// count if a newer version superseded it without that attribute).
func (st *Store) State(ctx context.Context, q Query) ([]*model.Event, error) {
	occurredAt := int64(math.MaxInt64)
	if q.OccurredAt != nil {
		occurredAt = *q.OccurredAt
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := st.db.QueryContext(ctx, setStateSQL, q.RoomID, q.Set, q.OriginalOccurredAt, occurredAt, q.Attribute, limit)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		var e model.Event
		var label, attribute, originalCreatedBy sql.NullString
		var deletedAt sql.NullTime
		var dataJSON []byte

		if err := rows.Scan(&e.ID, &e.RoomID, &e.Kind, &e.Set, &label, &attribute, &dataJSON, &e.BinaryData,
			&e.OccurredAt, &e.CreatedBy, &e.CreatedAt, &deletedAt, &e.OriginalOccurredAt, &originalCreatedBy, &e.Removed); err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}

		if label.Valid {
			l := label.String
			e.Label = &l
		}
		if attribute.Valid {
			a := attribute.String
			e.Attribute = &a
		}
		if deletedAt.Valid {
			d := deletedAt.Time
			e.DeletedAt = &d
		}
		if originalCreatedBy.Valid {
			e.OriginalCreatedBy = originalCreatedBy.String
		} else {
			e.OriginalCreatedBy = e.CreatedBy
		}
		if len(dataJSON) > 0 {
			if e.Data, err = unmarshalJSON(dataJSON); err != nil {
				return nil, apperror.New(apperror.KindDBQueryFailed, err)
			}
		}

		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return out, nil
}

// totalCountSQL mirrors setStateSQL's latest-per-lane subquery so the
// attribute filter is applied to the same rows State's page is drawn from
// — set_state.rs's own total_count carries the identical
// "$N::TEXT IS NULL OR attribute = $N::TEXT" predicate.
const totalCountSQL = `
	SELECT COUNT(*) FROM (
		SELECT DISTINCT ON (original_occurred_at, label) attribute
		FROM event
		WHERE deleted_at IS NULL
		AND   room_id = $1
		AND   "set" = $2
		AND   original_occurred_at < $3
		AND   occurred_at < $4
		ORDER BY original_occurred_at DESC, label ASC, occurred_at DESC
	) AS latest
	WHERE ($5::TEXT IS NULL OR attribute = $5::TEXT)`

// TotalCount is the number of distinct lanes visible to a State query with
// the same room/set/occurred_at/attribute bounds, so it always equals the
// number of rows State returns when Limit is unbounded (§8 invariant 5).
func (st *Store) TotalCount(ctx context.Context, roomID, set string, originalOccurredAt int64, occurredAt *int64, attribute *string) (int64, error) {
	bound := int64(math.MaxInt64)
	if occurredAt != nil {
		bound = *occurredAt
	}

	var total int64
	err := st.db.QueryRowContext(ctx, totalCountSQL, roomID, set, originalOccurredAt, bound, attribute).Scan(&total)
	if err != nil {
		return 0, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return total, nil
}

func unmarshalJSON(data []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
