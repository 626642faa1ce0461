package s3dump

import (
	"context"
	"sync"
)

// Memory is an in-process Dumper for tests.
type Memory struct {
	mu      sync.Mutex
	Objects map[string][]byte
}

// NewMemory builds an empty in-memory dumper.
func NewMemory() *Memory {
	return &Memory{Objects: make(map[string][]byte)}
}

// Put implements Dumper.
func (d *Memory) Put(ctx context.Context, key string, data []byte) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Objects[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}
