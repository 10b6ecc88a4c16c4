package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
var ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	Brokers []string
	// Dialer is optional; set it for TLS or SASL.
	Dialer *kafka.Dialer
	// BatchTimeout bounds writer latency. Defaults to 10ms.
	BatchTimeout time.Duration
}

// Kafka is a messaging implementation backed by kafka-go.
type Kafka struct {
	cfg KafkaConfig

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafka constructs a Kafka messaging client.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}
	cfg.Brokers = append([]string(nil), cfg.Brokers...)

	return &Kafka{cfg: cfg, writers: map[string]*kafka.Writer{}}, nil
}

// Close closes every writer.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	var err error
	for _, w := range k.writers {
		err = errors.Join(err, w.Close())
	}
	k.writers = nil
	return err
}

// Publish writes msg to topic, partitioned by msg.Key.
func (k *Kafka) Publish(ctx context.Context, topic string, msg Message) error {
	if topic == "" {
		return ErrTopicRequired
	}
	w, err := k.writer(topic)
	if err != nil {
		return err
	}

	km := kafka.Message{Key: []byte(msg.Key), Value: msg.Body, Time: time.Now()}
	for hk, hv := range outgoingHeaders(msg) {
		km.Headers = append(km.Headers, kafka.Header{Key: hk, Value: []byte(hv)})
	}

	if err := w.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("messaging: kafka publish: %w", err)
	}
	return nil
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           k.cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if k.cfg.Dialer != nil {
		w.Transport = &kafka.Transport{
			TLS:  k.cfg.Dialer.TLS,
			SASL: k.cfg.Dialer.SASLMechanism,
		}
	}
	k.writers[topic] = w
	return w, nil
}

// Subscribe reads topic as consumer group sub.Name. Offsets are committed
// after the handler returns, whether or not it failed.
func (k *Kafka) Subscribe(ctx context.Context, topic string, sub Subscription, handler Handler) error {
	if err := validateSubscribe(ctx, topic, sub, handler); err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.cfg.Brokers,
		GroupID:  sub.Name,
		Topic:    topic,
		MaxBytes: 10e6,
		Dialer:   k.cfg.Dialer,
	})

	msgs := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range sub.workers() {
		wg.Go(func() {
			for km := range msgs {
				msg := kafkaIncoming(km)
				if err := dispatch(ctx, DriverKafka, handler, msg); err != nil {
					logFailure(ctx, DriverKafka, topic, msg, err)
				}
				if err := reader.CommitMessages(ctx, km); err != nil && ctx.Err() == nil {
					logFailure(ctx, DriverKafka, topic, msg, err)
				}
			}
		})
	}

	var fetchErr error
	for {
		km, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		msgs <- km
	}
	close(msgs)
	wg.Wait()

	closeErr := reader.Close()
	if ctx.Err() != nil {
		return errors.Join(ctx.Err(), closeErr)
	}
	return errors.Join(fmt.Errorf("messaging: kafka consume: %w", fetchErr), closeErr)
}

func kafkaIncoming(km kafka.Message) Message {
	headers := make(map[string]string, len(km.Headers))
	for _, h := range km.Headers {
		headers[h.Key] = string(h.Value)
	}
	fallback := km.Topic + "/" + strconv.Itoa(km.Partition) + "/" + strconv.FormatInt(km.Offset, 10)
	return incoming(headers, string(km.Key), km.Value, fallback)
}
