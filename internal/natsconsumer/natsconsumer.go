// Package natsconsumer implements the NATS consumer contract of §5: a
// subscribe loop with exponential backoff on transient failure and
// NAK/TERM message acknowledgement, following the durable
// consumer/onMessage shape dendrite's JetStream consumers use. Real message
// routing belongs to the transport layer; this package wires a no-op
// handler by default so the dependency is exercised end-to-end.
package natsconsumer

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Handler processes one message. A nil error acks the message. A returned
// error that is Permanent terminates the message (it will never be
// redelivered); any other error NAKs it for redelivery with backoff.
type Handler func(ctx context.Context, msg *nats.Msg) error

// Permanent wraps an error to signal the message can never succeed and
// should be terminated rather than redelivered.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

// Consumer subscribes to a subject with a durable name and runs Handler for
// each delivered message, backing off exponentially between NAKs.
type Consumer struct {
	JetStream      nats.JetStreamContext
	Subject        string
	Durable        string
	Handler        Handler
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Log            logrus.FieldLogger
}

// NewConsumer wires a Consumer with a no-op handler; callers override
// Handler before calling Start to route messages somewhere useful.
func NewConsumer(js nats.JetStreamContext, subject, durable string) *Consumer {
	return &Consumer{
		JetStream:      js,
		Subject:        subject,
		Durable:        durable,
		Handler:        func(ctx context.Context, msg *nats.Msg) error { return nil },
		BackoffInitial: 200 * time.Millisecond,
		BackoffMax:     30 * time.Second,
		Log:            logrus.StandardLogger(),
	}
}

// Start subscribes with manual ack and runs until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.JetStream.Subscribe(c.Subject, c.onMessage,
		nats.Durable(c.Durable), nats.ManualAck(), nats.DeliverAll())
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (c *Consumer) onMessage(msg *nats.Msg) {
	err := c.Handler(context.Background(), msg)
	if err == nil {
		_ = msg.Ack()
		return
	}

	var perm *Permanent
	if asPermanent(err, &perm) {
		c.Log.WithError(perm.Err).WithField("subject", c.Subject).Error("natsconsumer: terminating message")
		_ = msg.Term()
		return
	}

	delay := c.backoffFor(msg)
	c.Log.WithError(err).WithFields(logrus.Fields{"subject": c.Subject, "delay": delay}).
		Warn("natsconsumer: NAK with backoff")
	_ = msg.NakWithDelay(delay)
}

func (c *Consumer) backoffFor(msg *nats.Msg) time.Duration {
	meta, err := msg.Metadata()
	if err != nil {
		return c.BackoffInitial
	}
	delay := c.BackoffInitial << meta.NumDelivered
	if delay <= 0 || delay > c.BackoffMax {
		return c.BackoffMax
	}
	return delay
}

func asPermanent(err error, target **Permanent) bool {
	p, ok := err.(*Permanent)
	if ok {
		*target = p
	}
	return ok
}
