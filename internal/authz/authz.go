// Package authz defines the minimal policy-decision-point contract the core
// consumes (§2 expansion); a full PDP is a transport-layer concern and out
// of scope here.
package authz

import (
	"context"

	"github.com/classbridge/event/internal/apperror"
)

// Authorizer decides whether subject may perform action on object (a
// room id, for every action this core exposes).
type Authorizer interface {
	Authorize(ctx context.Context, subject, action, object string) error
}

// Static is a fixed allow/deny table, useful for tests and for running the
// core standalone without a real PDP.
type Static struct {
	// Allow, if non-nil, permits every (subject, action, object) already in
	// the set; everything else is denied. A nil Allow permits everything.
	Allow map[string]bool
}

// NewAllowAll returns a Static authorizer that permits every request.
func NewAllowAll() *Static {
	return &Static{}
}

// Authorize implements Authorizer.
func (s *Static) Authorize(ctx context.Context, subject, action, object string) error {
	if s.Allow == nil {
		return nil
	}
	if s.Allow[key(subject, action, object)] {
		return nil
	}
	return apperror.New(apperror.KindAccessDenied, nil)
}

func key(subject, action, object string) string {
	return subject + "\x00" + action + "\x00" + object
}
