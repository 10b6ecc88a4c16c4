package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
)

// ErrNATSURLRequired is returned when the NATS URL is empty.
var ErrNATSURLRequired = errors.New("messaging: nats url is required")

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS is a messaging implementation backed by core NATS.
type NATS struct {
	conn *nats.Conn
}

// NewNATS connects to the NATS server.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains subscriptions and closes the connection.
func (n *NATS) Close() error {
	if n.conn.IsClosed() {
		return nil
	}
	err := n.conn.Drain()
	n.conn.Close()
	return err
}

// Publish sends msg on subject topic and flushes.
func (n *NATS) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}

	nm := nats.NewMsg(topic)
	nm.Data = msg.Body
	for k, v := range outgoingHeaders(msg) {
		nm.Header.Set(k, v)
	}
	if msg.Key != "" {
		nm.Header.Set(headerMessageKey, msg.Key)
	}

	if err := n.conn.PublishMsg(nm); err != nil {
		return fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("messaging: nats flush: %w", err)
	}
	return nil
}

// Subscribe joins queue group sub.Name on subject topic.
func (n *NATS) Subscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error {
	if err := validateSubscribe(ctx, topic, sub, handler); err != nil {
		return err
	}

	msgs := make(chan *nats.Msg, sub.workers())
	ns, err := n.conn.ChanQueueSubscribe(topic, sub.Name, msgs)
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range sub.workers() {
		wg.Go(func() {
			for {
				select {
				case <-ctx.Done():
					return
				case nm := <-msgs:
					msg := natsIncoming(nm)
					if err := dispatch(ctx, DriverNATS, handler, msg); err != nil {
						logFailure(ctx, DriverNATS, topic, msg, err)
					}
				}
			}
		})
	}

	<-ctx.Done()
	uerr := ns.Unsubscribe()
	wg.Wait()

	return errors.Join(ctx.Err(), uerr)
}

func natsIncoming(nm *nats.Msg) Message {
	headers := make(map[string]string, len(nm.Header))
	for k := range nm.Header {
		headers[k] = nm.Header.Get(k)
	}
	key := headers[headerMessageKey]
	delete(headers, headerMessageKey)
	return incoming(headers, key, nm.Data, "")
}
