// Package core implements the operation table of §6.2: every entry point a
// transport adapter calls, built from the store/engine/adapter layer below
// it. Every operation is a function taking a *Context plus request
// arguments — there is no ambient or global state (§9's design note).
package core

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/classbridge/event/internal/adjust"
	"github.com/classbridge/event/internal/authz"
	"github.com/classbridge/event/internal/commit"
	"github.com/classbridge/event/internal/notify"
	"github.com/classbridge/event/internal/projection"
	"github.com/classbridge/event/internal/s3dump"
	"github.com/classbridge/event/internal/store"
)

// Clock abstracts time.Now so operations that depend on "now" (room-time
// clamping, the room-closed check) can be driven deterministically by
// tests; RealClock is the only production implementation.
type Clock interface {
	Now() time.Time
}

// RealClock is the Clock used outside of tests.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now() }

// Context bundles every capability an operation needs, per §4.9. A
// transport adapter builds one Context per process (or per request, if it
// wants per-request auth state) and passes it to every core function.
type Context struct {
	Rooms      *store.RoomStore
	Events     *store.EventStore
	Editions   *store.EditionStore
	Changes    *store.ChangeStore
	Agents     *store.AgentStore
	Bans       *store.BanStore
	Projection *projection.Store

	Adjust *adjust.Engine
	Commit *commit.Engine

	Notifier   notify.Publisher
	Dumper     s3dump.Dumper
	Authorizer authz.Authorizer
	Clock      Clock
	Log        logrus.FieldLogger
}

// New wires a Context from its component stores and adapters.
func New(rooms *store.RoomStore, events *store.EventStore, editions *store.EditionStore,
	changes *store.ChangeStore, agents *store.AgentStore, bans *store.BanStore, proj *projection.Store,
	notifier notify.Publisher, dumper s3dump.Dumper, authorizer authz.Authorizer, log logrus.FieldLogger) *Context {
	return &Context{
		Rooms: rooms, Events: events, Editions: editions, Changes: changes,
		Agents: agents, Bans: bans, Projection: proj,
		Adjust: adjust.NewEngine(rooms, events),
		Commit: commit.NewEngine(rooms, events, editions, changes),
		Notifier: notifier, Dumper: dumper, Authorizer: authorizer, Clock: RealClock{}, Log: log,
	}
}
