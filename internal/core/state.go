package core

import (
	"context"

	"github.com/classbridge/event/internal/model"
	"github.com/classbridge/event/internal/projection"
)

// StateResult pairs the page of latest-per-lane events with the total lane
// count, matching the original query builder's (rows, total) pagination
// contract.
type StateResult struct {
	Events []*model.Event
	Total  int64
}

// ReadState implements state.read (§4.2).
func (c *Context) ReadState(ctx context.Context, q projection.Query) (*StateResult, error) {
	events, err := c.Projection.State(ctx, q)
	if err != nil {
		return nil, err
	}
	total, err := c.Projection.TotalCount(ctx, q.RoomID, q.Set, q.OriginalOccurredAt, q.OccurredAt, q.Attribute)
	if err != nil {
		return nil, err
	}
	return &StateResult{Events: events, Total: total}, nil
}
