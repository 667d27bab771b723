// Package kafka carries low-stock alerts over Kafka: a synchronous publisher for the
// ledger and a consumer group for the notifier.
package kafka

import "time"

// Config holds broker and consumer group settings.
type Config struct {
	Brokers  []string
	Topic    string
	DLQTopic string
	GroupID  string

	// Workers is the number of readers in the group. Each holds one message in flight.
	Workers int
	// MaxRedeliveries bounds local redelivery of a message that failed transiently.
	MaxRedeliveries int
	// RedeliveryBackoff is the first redelivery delay; it doubles per attempt.
	RedeliveryBackoff time.Duration
	MaxBackoff        time.Duration

	BatchTimeout time.Duration
	MaxWait      time.Duration
}

// DefaultConfig returns the settings used outside tests.
func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:           brokers,
		Topic:             topic,
		DLQTopic:          topic + ".dlq",
		GroupID:           "low-stock-notifier",
		Workers:           4,
		MaxRedeliveries:   5,
		RedeliveryBackoff: 2 * time.Second,
		MaxBackoff:        time.Minute,
		BatchTimeout:      10 * time.Millisecond,
		MaxWait:           time.Second,
	}
}

func (c Config) backoff(attempt int) time.Duration {
	d := c.RedeliveryBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if c.MaxBackoff > 0 && d >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return d
}
