// Package outbound decouples engines from gateway latency: messages are
// published to an in-process watermill topic and delivered by one worker in
// publish order. A publish returns once the worker has queued the message.
package outbound

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dispatch_bot_backend/internal/conversation"
	"dispatch_bot_backend/platform/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	topic           = "outbound.whatsapp"
	deliveryTimeout = 30 * time.Second
)

type envelope struct {
	To      string               `json:"to"`
	Message conversation.Message `json:"message"`
}

// Queue implements conversation.Messenger over a gochannel pub/sub.
type Queue struct {
	pubsub   *gochannel.GoChannel
	pending  chan envelope
	delivery conversation.Messenger
	log      *logger.Logger
	done     sync.WaitGroup
}

// New creates a queue delivering through delivery.
func New(delivery conversation.Messenger, log *logger.Logger) *Queue {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{BlockPublishUntilSubscriberAck: true},
		watermill.NewStdLogger(false, false),
	)
	return &Queue{pubsub: pubsub, pending: make(chan envelope, 1024), delivery: delivery, log: log}
}

// Start subscribes the delivery worker. Messages published before Start are
// dropped by the pub/sub, so Start runs before any engine can send.
func (q *Queue) Start(ctx context.Context) error {
	messages, err := q.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("subscribe outbound: %w", err)
	}
	q.done.Add(2)
	go func() {
		defer q.done.Done()
		defer close(q.pending)
		for msg := range messages {
			q.accept(msg)
		}
	}()
	go func() {
		defer q.done.Done()
		for env := range q.pending {
			q.deliver(env)
		}
	}()
	return nil
}

// Send enqueues msg for to. Delivery failures are logged by the worker.
func (q *Queue) Send(_ context.Context, to string, msg conversation.Message) error {
	payload, err := json.Marshal(envelope{To: to, Message: msg})
	if err != nil {
		return fmt.Errorf("encode outbound message: %w", err)
	}
	return q.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload))
}

func (q *Queue) accept(msg *message.Message) {
	defer msg.Ack()

	var env envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		q.log.Error("outbound message dropped", "uuid", msg.UUID, "error", err)
		return
	}
	q.pending <- env
}

func (q *Queue) deliver(env envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()
	if err := q.delivery.Send(ctx, env.To, env.Message); err != nil {
		q.log.Warn("outbound delivery failed", "to", env.To, "error", err)
	}
}

// Close stops accepting messages and waits for the worker to drain.
func (q *Queue) Close() error {
	err := q.pubsub.Close()
	q.done.Wait()
	return err
}
