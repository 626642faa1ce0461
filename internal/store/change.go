package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// ChangeStore persists the pending edits belonging to an edition.
type ChangeStore struct {
	db *sql.DB
}

// NewChangeStore wires a ChangeStore against the shared pool.
func NewChangeStore(db *sql.DB) *ChangeStore {
	return &ChangeStore{db: db}
}

const changeColumns = `id, edition_id, kind, event_id, event_kind, "set", label, data, occurred_at, created_by, created_at`

// Create inserts a change. Which of EventID/EventKind/Set/Label/Data/
// OccurredAt/CreatedBy are populated depends on c.Kind; neither this store
// nor core.CreateChange validates them against it.
func (s *ChangeStore) Create(ctx context.Context, c model.Change) (*model.Change, error) {
	c.ID = uuid.NewString()

	dataJSON, err := marshalJSON(c.Data)
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidPayload, err)
	}

	const q = `
		INSERT INTO change (id, edition_id, kind, event_id, event_kind, "set", label, data, occurred_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, q, c.ID, c.EditionID, c.Kind, nullString(c.EventID), nullString(c.EventKind),
		nullString(c.Set), nullString(c.Label), dataJSON, nullInt64(c.OccurredAt), nullString(c.CreatedBy)).
		Scan(&c.CreatedAt)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &c, nil
}

// Get fetches a change by id.
func (s *ChangeStore) Get(ctx context.Context, id string) (*model.Change, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+changeColumns+` FROM change WHERE id = $1`, id)
	return scanChange(row)
}

func scanChange(row *sql.Row) (*model.Change, error) {
	var c model.Change
	var eventID, eventKind, set, label, createdBy sql.NullString
	var occurredAt sql.NullInt64
	var dataJSON []byte

	err := row.Scan(&c.ID, &c.EditionID, &c.Kind, &eventID, &eventKind, &set, &label,
		&dataJSON, &occurredAt, &createdBy, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.KindChangeNotFound, err)
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	fillChangePointers(&c, eventID, eventKind, set, label, createdBy, occurredAt)

	if len(dataJSON) > 0 {
		if c.Data, err = unmarshalJSON(dataJSON); err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}
	}
	return &c, nil
}

func fillChangePointers(c *model.Change, eventID, eventKind, set, label, createdBy sql.NullString, occurredAt sql.NullInt64) {
	c.EventID = fromNullString(eventID)
	c.EventKind = fromNullString(eventKind)
	c.Set = fromNullString(set)
	c.Label = fromNullString(label)
	c.CreatedBy = fromNullString(createdBy)
	c.OccurredAt = fromNullInt64(occurredAt)
}

// ListByEdition returns every change belonging to an edition in commit
// replay order: (created_at, id) ascending, per §4.4 step 3.
func (s *ChangeStore) ListByEdition(ctx context.Context, editionID string) ([]*model.Change, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+changeColumns+` FROM change WHERE edition_id = $1 ORDER BY created_at, id`, editionID)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	defer rows.Close()

	var out []*model.Change
	for rows.Next() {
		var c model.Change
		var eventID, eventKind, set, label, createdBy sql.NullString
		var occurredAt sql.NullInt64
		var dataJSON []byte

		if err := rows.Scan(&c.ID, &c.EditionID, &c.Kind, &eventID, &eventKind, &set, &label,
			&dataJSON, &occurredAt, &createdBy, &c.CreatedAt); err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}
		fillChangePointers(&c, eventID, eventKind, set, label, createdBy, occurredAt)

		if len(dataJSON) > 0 {
			if c.Data, err = unmarshalJSON(dataJSON); err != nil {
				return nil, apperror.New(apperror.KindDBQueryFailed, err)
			}
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Delete removes a change.
func (s *ChangeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM change WHERE id = $1`, id)
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperror.New(apperror.KindDBQueryFailed, err)
	}
	if n == 0 {
		return apperror.New(apperror.KindChangeNotFound, nil)
	}
	return nil
}
