package messaging

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
)

// ErrPubSubProjectIDRequired is returned when a ProjectID is required but missing.
var ErrPubSubProjectIDRequired = errors.New("messaging: pubsub project id is required")

// PubSubConfig configures the Google Pub/Sub implementation.
type PubSubConfig struct {
	ProjectID     string
	ClientOptions []option.ClientOption
}

// PubSub is a messaging implementation backed by Google Pub/Sub.
type PubSub struct {
	client *pubsub.Client

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// NewPubSub constructs a Pub/Sub client.
func NewPubSub(ctx context.Context, cfg PubSubConfig) (*PubSub, error) {
	if cfg.ProjectID == "" {
		return nil, ErrPubSubProjectIDRequired
	}

	c, err := pubsub.NewClient(ctx, cfg.ProjectID, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("messaging: pubsub new client: %w", err)
	}

	return &PubSub{client: c, publishers: map[string]*pubsub.Publisher{}}, nil
}

// Close flushes publishers and closes the client.
func (p *PubSub) Close() error {
	p.mu.Lock()
	for _, pub := range p.publishers {
		pub.Stop()
	}
	p.publishers = map[string]*pubsub.Publisher{}
	p.mu.Unlock()

	return p.client.Close()
}

// Publish sends msg with its headers and key as attributes.
func (p *PubSub) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}

	attrs := outgoingHeaders(msg)
	if msg.Key != "" {
		attrs[headerMessageKey] = msg.Key
	}

	res := p.publisher(topic).Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: attrs})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("messaging: pubsub publish: %w", err)
	}
	return nil
}

func (p *PubSub) publisher(topic string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pub, ok := p.publishers[topic]; ok {
		return pub
	}
	pub := p.client.Publisher(topic)
	p.publishers[topic] = pub
	return pub
}

// Subscribe receives from subscription sub.Name. The topic is only used for
// validation and logging since Pub/Sub binds topics to subscriptions server side.
func (p *PubSub) Subscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error {
	if err := validateSubscribe(ctx, topic, sub, handler); err != nil {
		return err
	}

	s := p.client.Subscriber(sub.Name)
	s.ReceiveSettings.NumGoroutines = sub.workers()

	return s.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		attrs := maps.Clone(m.Attributes)
		key := attrs[headerMessageKey]
		delete(attrs, headerMessageKey)
		msg := incoming(attrs, key, m.Data, m.ID)
		if err := dispatch(ctx, DriverGooglePubSub, handler, msg); err != nil {
			logFailure(ctx, DriverGooglePubSub, topic, msg, err)
			m.Nack()
			return
		}
		m.Ack()
	})
}
