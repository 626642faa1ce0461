package core

import (
	"context"
	"time"

	"github.com/classbridge/event/internal/commit"
	"github.com/classbridge/event/internal/model"
)

// CreateEdition implements edition.create.
func (c *Context) CreateEdition(ctx context.Context, sourceRoomID, createdBy string) (*model.Edition, error) {
	return c.Editions.Create(ctx, sourceRoomID, createdBy)
}

// ListEditions implements edition.list.
func (c *Context) ListEditions(ctx context.Context, sourceRoomID string, lastCreatedAt *time.Time, limit int) ([]*model.Edition, error) {
	return c.Editions.List(ctx, sourceRoomID, lastCreatedAt, limit)
}

// DeleteEdition implements edition.delete.
func (c *Context) DeleteEdition(ctx context.Context, editionID string) error {
	return c.Editions.Delete(ctx, editionID)
}

// CommitEdition implements edition.commit (§6), a detached task. offsetNanos
// is the §4.4 Inputs' offset: i64 ns shift applied to every cloned event.
func (c *Context) CommitEdition(editionID string, offsetNanos int64) <-chan commit.Notification {
	return c.Commit.RunDetached(editionID, offsetNanos)
}

// CreateChange implements change.create.
func (c *Context) CreateChange(ctx context.Context, ch model.Change) (*model.Change, error) {
	return c.Changes.Create(ctx, ch)
}

// ListChanges implements change.list.
func (c *Context) ListChanges(ctx context.Context, editionID string) ([]*model.Change, error) {
	return c.Changes.ListByEdition(ctx, editionID)
}

// DeleteChange implements change.delete.
func (c *Context) DeleteChange(ctx context.Context, changeID string) error {
	return c.Changes.Delete(ctx, changeID)
}
