package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/event/internal/apperror"
)

// TestStatic_Authorize mirrors the distilled specification's S4 locked-type
// scenario at the authorization layer: a subject permitted for one action is
// denied for everything not explicitly listed.
func TestStatic_Authorize(t *testing.T) {
	s := &Static{Allow: map[string]bool{
		key("agent-U", "events/message/authors/U.create", "room-1"): true,
	}}

	err := s.Authorize(context.Background(), "agent-U", "events/message/authors/U.create", "room-1")
	require.NoError(t, err)

	err = s.Authorize(context.Background(), "agent-U", "rooms/{id}.update", "room-1")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindAccessDenied))
}

func TestNewAllowAll_PermitsEverything(t *testing.T) {
	s := NewAllowAll()
	err := s.Authorize(context.Background(), "anyone", "anything", "any-object")
	require.NoError(t, err)
}
