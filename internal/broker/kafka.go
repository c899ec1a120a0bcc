package appkafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaWriter publishes interaction events.
type KafkaWriter interface {
	WriteMessages(messages ...kafka.Message) error
	Close() error
}

// KafkaReader consumes interaction events.
type KafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig holds configuration parameters for Kafka.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	GroupID      string        // consumer group of the notification workers
	WriteTimeout time.Duration // per WriteMessages call
	ReadTimeout  time.Duration // max wait for a fetch
}

func (c KafkaConfig) withDefaults() KafkaConfig {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	return c
}

// RealKafkaWriter implements KafkaWriter on a balanced kafka.Writer, so events
// with the same key always land on the same partition.
type RealKafkaWriter struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaWriter creates a writer for cfg.Topic. Connections are opened lazily
// on the first write.
func NewKafkaWriter(cfg KafkaConfig) (*RealKafkaWriter, error) {
	cfg = cfg.withDefaults()
	if cfg.Topic == "" {
		return nil, errors.New("kafka: topic is required")
	}

	return &RealKafkaWriter{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           cfg.WriteTimeout,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
		timeout: cfg.WriteTimeout,
	}, nil
}

func (w *RealKafkaWriter) WriteMessages(messages ...kafka.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return w.writer.WriteMessages(ctx, messages...)
}

func (w *RealKafkaWriter) Close() error {
	return w.writer.Close()
}

// RealKafkaReader implements KafkaReader using a consumer group reader.
type RealKafkaReader struct {
	reader *kafka.Reader
}

// NewKafkaReader joins cfg.GroupID on cfg.Topic.
func NewKafkaReader(cfg KafkaConfig) KafkaReader {
	cfg = cfg.withDefaults()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.Topic,
		MinBytes:       1,    // interaction events are tiny
		MaxBytes:       10e6, // 10MB
		MaxWait:        cfg.ReadTimeout,
		CommitInterval: time.Second,
	})
	return &RealKafkaReader{reader: r}
}

func (r *RealKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return r.reader.ReadMessage(ctx)
}

func (r *RealKafkaReader) Close() error {
	return r.reader.Close()
}

// NopWriter drops every message. Used when interaction events are disabled.
type NopWriter struct{}

func (NopWriter) WriteMessages(messages ...kafka.Message) error { return nil }
func (NopWriter) Close() error                                   { return nil }
