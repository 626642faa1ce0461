// Package vacuum runs the retention sweep of §4.5 on a fixed interval,
// following the teacher's ticker-driven background task shape (its
// canvas auto-save loop) rather than a one-shot cleanup call.
package vacuum

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/classbridge/event/internal/store"
)

// Sweeper periodically runs EventStore.Vacuum against every room.
type Sweeper struct {
	Events *store.EventStore
	Log    logrus.FieldLogger

	Interval           time.Duration
	MaxHistorySize     int
	MaxHistoryLifetime time.Duration
	MaxDeletedLifetime time.Duration
}

// NewSweeper wires a Sweeper with the given retention parameters.
func NewSweeper(events *store.EventStore, log logrus.FieldLogger, interval time.Duration,
	maxHistorySize int, maxHistoryLifetime, maxDeletedLifetime time.Duration) *Sweeper {
	return &Sweeper{
		Events:             events,
		Log:                log,
		Interval:           interval,
		MaxHistorySize:     maxHistorySize,
		MaxHistoryLifetime: maxHistoryLifetime,
		MaxDeletedLifetime: maxDeletedLifetime,
	}
}

// Start runs the sweep on every tick of a ticker until ctx is cancelled. It
// starts its own goroutine and returns immediately, the way the teacher
// started its auto-save loop.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	if err := s.Events.Vacuum(ctx, s.MaxHistorySize, s.MaxHistoryLifetime, s.MaxDeletedLifetime); err != nil {
		s.Log.WithError(err).Error("vacuum: sweep failed")
		return
	}
	s.Log.Debug("vacuum: sweep complete")
}
