// Package logging wraps logrus with helpers that attach a room id or an
// operation name to a logger.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a text-formatted logger writing to stderr, suitable for a
// process-wide default.
func New() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

// ForRoom scopes a logger to a room.
func ForRoom(log logrus.FieldLogger, roomID string) *logrus.Entry {
	return toEntry(log).WithField("room_id", roomID)
}

// ForOperation scopes a logger to a named operation (adjust, commit, vacuum).
func ForOperation(log logrus.FieldLogger, op string) *logrus.Entry {
	return toEntry(log).WithField("op", op)
}

func toEntry(log logrus.FieldLogger) *logrus.Entry {
	if e, ok := log.(*logrus.Entry); ok {
		return e
	}
	return logrus.NewEntry(log.(*logrus.Logger))
}
