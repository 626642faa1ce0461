// Package notify implements the outbound half of the broker contract (§6
// Surrounding functionality): a topic-addressed publisher the core calls to
// announce event appends, agent presence changes and detached-task results,
// standing in for the MQTT broadcast this core does not implement.
package notify

import "context"

// Publisher is the contract core operations publish notifications through.
// Topics follow the room-scoped "room:<room_id>" shape the teacher's hub
// used for its own broadcast fan-out.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// RoomTopic builds the topic a room's events and presence changes publish to.
func RoomTopic(roomID string) string {
	return "room:" + roomID
}

// AudienceTopic builds the topic an audience-wide notification (room
// lifecycle, claims, detached-task completion) publishes to, per §6.2's
// "audiences/{aud}/events" path.
func AudienceTopic(audience string) string {
	return "audiences/" + audience + "/events"
}
