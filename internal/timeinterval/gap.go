package timeinterval

import "fmt"

// CutEvent is the minimal shape gap derivation needs from a kind="stream"
// event: its position in the lane and whether it is a start or stop cut.
type CutEvent struct {
	ID         string
	OccurredAt int64
	Command    string // "start" or "stop"
}

type cutState int

const (
	cutStopped cutState = iota
	cutStarted
)

// CutEventsToGaps drives the two-state FSM described in §4.3: a run of
// ordered stream cut events becomes the list of [start, stop) gaps to excise
// from the timeline. A lone "stop" while already stopped is a no-op: a "stop"
// with no preceding "start" is silently ignored rather than treated as an
// error, matching the source system's "if command is stop but we've already
// stopped - do nothing instead of failing" behavior. A "start" while already
// started restarts the gap at the later event. A command other than "start"
// or "stop" is a hard error for the whole adjustment.
func CutEventsToGaps(events []CutEvent) ([]Range, error) {
	gaps := make([]Range, 0, len(events))
	state := cutStopped
	var startedAt int64

	for _, ev := range events {
		switch ev.Command {
		case "start":
			state = cutStarted
			startedAt = ev.OccurredAt
		case "stop":
			switch state {
			case cutStarted:
				gaps = append(gaps, Range{Start: startedAt, Stop: ev.OccurredAt})
				state = cutStopped
			case cutStopped:
				// no-op: stopping an already-stopped stream
			}
		default:
			return nil, fmt.Errorf("invalid cut event id=%s command=%q", ev.ID, ev.Command)
		}
	}

	return gaps, nil
}
