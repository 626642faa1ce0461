// Package s3dump implements the outbound half of the object-store contract:
// room.dump_events (§6) uploads a JSON-lines export of a room's event log.
package s3dump

import "context"

// Dumper is the contract room.dump_events calls to persist an export.
type Dumper interface {
	// Put uploads data under key and returns the object's address (a URI
	// the caller can hand back to the client).
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// EventsKey builds the object key for a room's dump from the room id and a
// per-dump id, so repeated dumps of the same room don't collide.
func EventsKey(roomID, dumpID string) string {
	return "room-dumps/" + roomID + "/" + dumpID + ".jsonl"
}
