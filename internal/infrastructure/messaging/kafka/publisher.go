package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"tradeledger/internal/domain/lowstock"
)

// messageWriter is the part of kafka.Writer the adapter uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes low-stock alerts to one topic and waits for all in-sync replicas.
type Publisher struct {
	writer messageWriter
	topic  string
}

var _ lowstock.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher for cfg.Topic.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{writer: newWriter(cfg, cfg.Topic), topic: cfg.Topic}
}

func newWriter(cfg Config, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Publish writes one message. The key keeps one product's alerts in order.
func (p *Publisher) Publish(ctx context.Context, key, value []byte) error {
	msg := kafka.Message{
		Key:   key,
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "type", Value: []byte(lowstock.AlertType)},
		},
		Time: time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
