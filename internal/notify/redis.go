package notify

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes room notifications over Redis Pub/Sub, the same
// client and addressing scheme the teacher's websocket hub used to fan a
// single room's broadcasts out across every server process subscribed to it.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher wires a RedisPublisher against an already-connected client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Connect builds a Redis client from REDIS_ADDR, falling back to
// REDIS_HOST/REDIS_PORT and finally localhost, mirroring the teacher's
// connection resolution order.
func Connect() (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		host := os.Getenv("REDIS_HOST")
		port := os.Getenv("REDIS_PORT")
		if host != "" && port != "" {
			addr = fmt.Sprintf("%s:%s", host, port)
		} else {
			addr = "localhost:6379"
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	return client, nil
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return p.client.Publish(ctx, topic, payload).Err()
}
