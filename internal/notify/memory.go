package notify

import (
	"context"
	"sync"
)

// Memory is an in-process Publisher for tests: it records every publish and
// never touches the network.
type Memory struct {
	mu        sync.Mutex
	Published []Message
}

// Message is one recorded publish.
type Message struct {
	Topic   string
	Payload []byte
}

// NewMemory builds an empty in-memory publisher.
func NewMemory() *Memory {
	return &Memory{}
}

// Publish implements Publisher.
func (m *Memory) Publish(ctx context.Context, topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, Message{Topic: topic, Payload: payload})
	return nil
}
