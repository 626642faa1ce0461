package store

import (
	"context"
	"database/sql"

	"github.com/classbridge/event/internal/apperror"
	"github.com/classbridge/event/internal/model"
)

// AgentStore tracks per-room presence records.
type AgentStore struct {
	db *sql.DB
}

// NewAgentStore wires an AgentStore against the shared pool.
func NewAgentStore(db *sql.DB) *AgentStore {
	return &AgentStore{db: db}
}

// Enter upserts a presence row, always resetting status back to in_progress
// on conflict: re-entering a room means the agent needs to catch up again.
func (s *AgentStore) Enter(ctx context.Context, roomID, agentID string) (*model.Agent, error) {
	const q = `
		INSERT INTO agent (agent_id, room_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (agent_id, room_id) DO UPDATE SET status = $3
		RETURNING agent_id, room_id, status, created_at`

	var a model.Agent
	err := s.db.QueryRowContext(ctx, q, agentID, roomID, model.AgentStatusInProgress).
		Scan(&a.AgentID, &a.RoomID, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &a, nil
}

// SetStatus moves an existing agent to status, returning nil if the agent
// has no presence row in the room (it left, or never entered).
func (s *AgentStore) SetStatus(ctx context.Context, roomID, agentID string, status model.AgentStatus) (*model.Agent, error) {
	const q = `
		UPDATE agent SET status = $3
		WHERE agent_id = $1 AND room_id = $2
		RETURNING agent_id, room_id, status, created_at`

	var a model.Agent
	err := s.db.QueryRowContext(ctx, q, agentID, roomID, status).
		Scan(&a.AgentID, &a.RoomID, &a.Status, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return &a, nil
}

// Leave removes an agent's presence row, reporting whether one existed.
func (s *AgentStore) Leave(ctx context.Context, roomID, agentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM agent WHERE agent_id = $1 AND room_id = $2`, agentID, roomID)
	if err != nil {
		return false, apperror.New(apperror.KindDBQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperror.New(apperror.KindDBQueryFailed, err)
	}
	return n > 0, nil
}

// AgentListQuery narrows List; zero-value fields are unfiltered.
type AgentListQuery struct {
	RoomID *string
	Status *model.AgentStatus
	Limit  int
	Offset int
}

// List returns presence rows newest-first.
func (s *AgentStore) List(ctx context.Context, q AgentListQuery) ([]*model.Agent, error) {
	where := []string{"TRUE"}
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if q.RoomID != nil {
		where = append(where, "room_id = "+arg(*q.RoomID))
	}
	if q.Status != nil {
		where = append(where, "status = "+arg(*q.Status))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}

	query := "SELECT agent_id, room_id, status, created_at FROM agent WHERE " + join(where, " AND ") +
		" ORDER BY created_at DESC LIMIT " + arg(limit) + " OFFSET " + arg(q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperror.New(apperror.KindDBQueryFailed, err)
	}
	defer rows.Close()

	var out []*model.Agent
	for rows.Next() {
		var a model.Agent
		if err := rows.Scan(&a.AgentID, &a.RoomID, &a.Status, &a.CreatedAt); err != nil {
			return nil, apperror.New(apperror.KindDBQueryFailed, err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
