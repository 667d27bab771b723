package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"tradeledger/internal/domain/lowstock"
	"tradeledger/pkg/logger"
)

// Handler processes one message body. A nil error acknowledges it.
type Handler interface {
	Handle(ctx context.Context, body []byte) error
}

// messageReader is the part of kafka.Reader the group uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerGroup runs Workers readers in one consumer group. Offsets are committed only
// after a message was handled or dead-lettered, so a crash redelivers it.
type ConsumerGroup struct {
	cfg       Config
	handler   Handler
	newReader func() messageReader
	dlq       messageWriter
}

// NewConsumerGroup creates a group that feeds handler.
func NewConsumerGroup(cfg Config, handler Handler) *ConsumerGroup {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	g := &ConsumerGroup{cfg: cfg, handler: handler}
	g.newReader = func() messageReader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers:     cfg.Brokers,
			GroupID:     cfg.GroupID,
			Topic:       cfg.Topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     cfg.MaxWait,
			StartOffset: kafka.FirstOffset,
		})
	}
	g.dlq = newWriter(cfg, cfg.DLQTopic)
	return g
}

// Run blocks until ctx is cancelled and every worker has stopped.
func (g *ConsumerGroup) Run(ctx context.Context) error {
	logger.Info(ctx, "starting consumer group",
		"topic", g.cfg.Topic,
		"group", g.cfg.GroupID,
		"workers", g.cfg.Workers,
	)

	var wg sync.WaitGroup
	for i := 0; i < g.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			g.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	if err := g.dlq.Close(); err != nil {
		logger.Warn(ctx, "failed to close dead letter writer", "error", err)
	}
	return ctx.Err()
}

func (g *ConsumerGroup) work(ctx context.Context, worker int) {
	reader := g.newReader()
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn(ctx, "failed to close reader", "worker", worker, "error", err)
		}
	}()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "failed to fetch message", "worker", worker, "error", err)
			if !sleep(ctx, time.Second) {
				return
			}
			continue
		}
		g.process(ctx, reader, msg)
	}
}

// process handles one message until it is acknowledged, dead-lettered or the
// worker is stopping.
func (g *ConsumerGroup) process(ctx context.Context, reader messageReader, msg kafka.Message) {
	ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With(
		"partition", msg.Partition,
		"offset", msg.Offset,
	))

	for attempt := 0; ; attempt++ {
		err := g.handler.Handle(ctx, msg.Value)
		switch {
		case err == nil:
			g.commit(ctx, reader, msg)
			return
		case lowstock.IsMalformed(err):
			logger.Warn(ctx, "rejecting malformed message", "error", err)
			if g.deadLetter(ctx, msg, err, attempt+1) {
				g.commit(ctx, reader, msg)
			}
			return
		case ctx.Err() != nil:
			return
		case attempt >= g.cfg.MaxRedeliveries:
			logger.Error(ctx, "message redeliveries exhausted", "attempts", attempt+1, "error", err)
			if g.deadLetter(ctx, msg, err, attempt+1) {
				g.commit(ctx, reader, msg)
			}
			return
		}

		delay := g.cfg.backoff(attempt)
		logger.Warn(ctx, "message handling failed, redelivering",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (g *ConsumerGroup) deadLetter(ctx context.Context, msg kafka.Message, cause error, attempts int) bool {
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers,
			kafka.Header{Key: "x-error", Value: []byte(cause.Error())},
			kafka.Header{Key: "x-source-topic", Value: []byte(msg.Topic)},
			kafka.Header{Key: "x-source-offset", Value: []byte(strconv.FormatInt(msg.Offset, 10))},
			kafka.Header{Key: "x-attempts", Value: []byte(strconv.Itoa(attempts))},
		),
	}
	if err := g.dlq.WriteMessages(ctx, dead); err != nil {
		logger.Error(ctx, "failed to dead-letter message", "topic", g.cfg.DLQTopic, "error", err)
		return false
	}
	return true
}

func (g *ConsumerGroup) commit(ctx context.Context, reader messageReader, msg kafka.Message) {
	if err := reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "failed to commit message", "error", fmt.Errorf("commit offset %d: %w", msg.Offset, err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
