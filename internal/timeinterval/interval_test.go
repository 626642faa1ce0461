package timeinterval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntersect(t *testing.T) {
	cases := []struct {
		name string
		a, b []Range
		want []Range
	}{
		{"contained", []Range{{0, 1}}, []Range{{0, 3}}, []Range{{0, 1}}},
		{"disjoint", []Range{{0, 1}}, []Range{{2, 3}}, nil},
		{"multi", []Range{{0, 3}, {6, 8}}, []Range{{1, 7}}, []Range{{1, 3}, {6, 7}}},
		{"empty-b", []Range{{0, 3}, {6, 8}}, nil, nil},
		{"partial-tail", []Range{{0, 3}, {6, 8}}, []Range{{7, 10}}, []Range{{7, 8}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Intersect(tc.a, tc.b))
		})
	}
}

func TestInvert(t *testing.T) {
	got := Invert([]Range{{0, 3}, {6, 8}}, 10)
	assert.Equal(t, []Range{{3, 6}, {8, 10}}, got)

	got = Invert(nil, 5)
	assert.Equal(t, []Range{{0, 5}}, got)

	got = Invert([]Range{{0, 10}}, 10)
	assert.Nil(t, got)
}

func TestUnion(t *testing.T) {
	got := Union([]Range{{0, 2}}, []Range{{1, 3}, {5, 6}})
	assert.Equal(t, []Range{{0, 3}, {5, 6}}, got)

	got = Union(nil, nil)
	assert.Empty(t, got)
}

func TestCutEventsToGaps(t *testing.T) {
	events := []CutEvent{
		{ID: "1", OccurredAt: 1_200_000_000, Command: "start"},
		{ID: "2", OccurredAt: 1_800_000_000, Command: "stop"},
	}

	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Range{{1_200_000_000, 1_800_000_000}}, gaps)
}

func TestCutEventsToGaps_RestartOnConsecutiveStart(t *testing.T) {
	events := []CutEvent{
		{ID: "1", OccurredAt: 100, Command: "start"},
		{ID: "2", OccurredAt: 200, Command: "start"}, // restarts at 200
		{ID: "3", OccurredAt: 300, Command: "stop"},
	}

	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Equal(t, []Range{{200, 300}}, gaps)
}

func TestCutEventsToGaps_LoneStopIsNoop(t *testing.T) {
	events := []CutEvent{
		{ID: "1", OccurredAt: 100, Command: "stop"},
	}

	gaps, err := CutEventsToGaps(events)
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestCutEventsToGaps_InvalidCommandErrors(t *testing.T) {
	events := []CutEvent{
		{ID: "1", OccurredAt: 100, Command: "bogus"},
	}

	_, err := CutEventsToGaps(events)
	assert.Error(t, err)
}
