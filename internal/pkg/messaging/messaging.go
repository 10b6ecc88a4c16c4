package messaging

import (
	"context"
	"errors"
	"io"
)

// HeaderMessageID is the transport header carrying Message.ID.
const HeaderMessageID = "Message-Id"

// headerMessageKey carries Message.Key on brokers without a native key.
const headerMessageKey = "Message-Key"

var (
	// ErrTopicRequired is returned when the topic is empty.
	ErrTopicRequired = errors.New("messaging: topic is required")
	// ErrSubscriptionRequired is returned when the subscription name is empty.
	ErrSubscriptionRequired = errors.New("messaging: subscription name is required")
	// ErrHandlerRequired is returned when Subscribe is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
)

// Messaging is a broker client that can publish and consume messages.
type Messaging interface {
	io.Closer

	// Publish sends msg to topic and returns once the broker accepted it.
	Publish(ctx context.Context, topic string, msg Message) error
	// Subscribe consumes topic until ctx is done. It blocks.
	Subscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error
}

// Message is the broker-neutral unit of delivery.
type Message struct {
	ID      string
	Key     string
	Headers map[string]string
	Body    []byte
}

// Header returns the value of header k, or "".
func (m Message) Header(k string) string {
	return m.Headers[k]
}

// Subscription names a durable consumer.
//
// Name maps to the Kafka group, NSQ channel, NATS queue group or Pub/Sub
// subscription ID.
type Subscription struct {
	Name        string
	Concurrency int
}

func (s Subscription) workers() int {
	if s.Concurrency <= 0 {
		return 1
	}
	return s.Concurrency
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg Message) error

func validateSubscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if topic == "" {
		return ErrTopicRequired
	}
	if sub.Name == "" {
		return ErrSubscriptionRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}
	return nil
}
