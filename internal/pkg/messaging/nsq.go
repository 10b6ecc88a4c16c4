package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	nsq "github.com/nsqio/go-nsq"
)

var (
	// ErrNSQProducerAddrRequired is returned when publishing without a producer address.
	ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned when subscribing without nsqd or lookupd addresses.
	ErrNSQConsumerAddrsRequired = errors.New("messaging: nsq consumer nsqd/lookupd addresses are required")
)

// NSQConfig configures the NSQ implementation.
type NSQConfig struct {
	ProducerAddr string

	// ConsumerLookupdAddrs wins over ConsumerNSQDAddrs when both are set.
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string

	ProducerConfig *nsq.Config
	ConsumerConfig *nsq.Config
}

// nsqFrame is the body written to NSQ, which has no native headers.
type nsqFrame struct {
	ID      string            `json:"id,omitempty"`
	Key     string            `json:"key,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body"`
}

// NSQ is a messaging implementation backed by go-nsq.
type NSQ struct {
	cfg      NSQConfig
	producer *nsq.Producer
}

// NewNSQ constructs an NSQ client. The producer is created only when
// ProducerAddr is set.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	if cfg.ConsumerConfig == nil {
		cfg.ConsumerConfig = nsq.NewConfig()
	}

	n := &NSQ{cfg: cfg}
	if cfg.ProducerAddr != "" {
		pcfg := cfg.ProducerConfig
		if pcfg == nil {
			pcfg = nsq.NewConfig()
		}
		p, err := nsq.NewProducer(cfg.ProducerAddr, pcfg)
		if err != nil {
			return nil, fmt.Errorf("messaging: nsq new producer: %w", err)
		}
		p.SetLoggerLevel(nsq.LogLevelError)
		n.producer = p
	}

	return n, nil
}

// Close stops the producer.
func (n *NSQ) Close() error {
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

// Publish frames msg as JSON and publishes it to topic.
func (n *NSQ) Publish(_ context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}
	if n.producer == nil {
		return ErrNSQProducerAddrRequired
	}

	body, err := encodeNSQFrame(msg)
	if err != nil {
		return err
	}
	if err := n.producer.Publish(topic, body); err != nil {
		return fmt.Errorf("messaging: nsq publish: %w", err)
	}
	return nil
}

// Subscribe consumes topic on channel sub.Name. A handler error requeues the message.
func (n *NSQ) Subscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error {
	if err := validateSubscribe(ctx, topic, sub, handler); err != nil {
		return err
	}
	if len(n.cfg.ConsumerNSQDAddrs) == 0 && len(n.cfg.ConsumerLookupdAddrs) == 0 {
		return ErrNSQConsumerAddrsRequired
	}

	ccfg := *n.cfg.ConsumerConfig
	if ccfg.MaxInFlight < sub.workers() {
		ccfg.MaxInFlight = sub.workers()
	}

	consumer, err := nsq.NewConsumer(topic, sub.Name, &ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		msg, err := decodeNSQFrame(m.Body, string(m.ID[:]))
		if err != nil {
			// Malformed frames are never going to succeed.
			logFailure(ctx, DriverNSQ, topic, msg, err)
			return nil
		}
		return dispatch(ctx, DriverNSQ, handler, msg)
	}), sub.workers())

	if len(n.cfg.ConsumerLookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.ConsumerLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.ConsumerNSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

func encodeNSQFrame(msg Message) ([]byte, error) {
	b, err := json.Marshal(nsqFrame{ID: msg.ID, Key: msg.Key, Headers: msg.Headers, Body: msg.Body})
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq encode: %w", err)
	}
	return b, nil
}

func decodeNSQFrame(b []byte, fallbackID string) (Message, error) {
	var f nsqFrame
	if err := json.Unmarshal(b, &f); err != nil {
		return Message{ID: fallbackID}, fmt.Errorf("messaging: nsq decode: %w", err)
	}
	if f.ID == "" {
		f.ID = fallbackID
	}
	if f.Headers == nil {
		f.Headers = map[string]string{}
	}
	return Message{ID: f.ID, Key: f.Key, Headers: f.Headers, Body: f.Body}, nil
}
