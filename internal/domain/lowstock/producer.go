package lowstock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/pkg/logger"
	"tradeledger/pkg/resilience"
)

// Publisher writes one message to the durable low-stock topic.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Observer receives pipeline outcomes for metrics. Optional.
type Observer interface {
	ObservePublish(outcome string)
	ObserveConsume(outcome string)
	ObserveDelivery(outcome string)
}

// Outcomes reported to the Observer.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
	OutcomeMalformed = "malformed"
	OutcomeTransient = "transient"
	OutcomeSkipped   = "skipped"
)

// ProducerConfig bounds publishing.
type ProducerConfig struct {
	// Timeout applies to each publish attempt.
	Timeout time.Duration
	Retry   resilience.RetryConfig
	// QueueSize is how many crossings may wait for the publisher. Crossings
	// arriving at a full queue are dropped.
	QueueSize int
}

const defaultQueueSize = 1024

// DefaultProducerConfig is 3 attempts with 1s, 2s backoff, a 5s attempt timeout
// and room for 1024 queued crossings.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Timeout:   5 * time.Second,
		Retry:     resilience.DefaultRetryConfig(),
		QueueSize: defaultQueueSize,
	}
}

// Producer turns committed crossings into queue messages. It implements
// inventory.Notifier: crossings are queued and a single goroutine publishes
// them in arrival order. The ledger never waits for it and never rolls back
// because of it.
type Producer struct {
	catalog   catalog.Repository
	publisher Publisher
	cfg       ProducerConfig
	observer  Observer

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

type queued struct {
	ctx      context.Context
	crossing inventory.Crossing
}

var _ inventory.Notifier = (*Producer)(nil)

// NewProducer creates a low-stock producer and starts its publish loop.
// observer may be nil. Close must be called to drain the queue.
func NewProducer(catalogRepo catalog.Repository, publisher Publisher, cfg ProducerConfig, observer Observer) *Producer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	p := &Producer{
		catalog:   catalogRepo,
		publisher: publisher,
		cfg:       cfg,
		observer:  observer,
		queue:     make(chan queued, cfg.QueueSize),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

// NotifyLowStock queues the crossings without blocking. The caller's context
// contributes its values only; its cancellation does not stop the publish.
func (p *Producer) NotifyLowStock(ctx context.Context, crossings []inventory.Crossing) {
	if len(crossings) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, c := range crossings {
		if p.closed {
			p.drop(ctx, c, "producer closed")
			continue
		}
		select {
		case p.queue <- queued{ctx: ctx, crossing: c}:
		default:
			p.drop(ctx, c, "publish queue full")
		}
	}
}

// Close stops accepting crossings and blocks until every queued one has been
// published or given up on. Safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}

func (p *Producer) run() {
	defer close(p.done)
	for item := range p.queue {
		_ = p.Publish(item.ctx, item.crossing)
	}
}

func (p *Producer) drop(ctx context.Context, c inventory.Crossing, reason string) {
	p.observe(OutcomeDropped)
	logger.Error(ctx, "low stock notification dropped",
		"reason", reason,
		"inventory_id", c.InventoryID,
		"product_id", c.ProductID,
		"store_id", c.StoreID,
	)
}

// Publish enriches one crossing and publishes it with bounded retries.
// Exhausted retries are logged as fatal for the notification and returned.
func (p *Producer) Publish(ctx context.Context, c inventory.Crossing) error {
	retry := p.cfg.Retry
	retry.Retryable = func(err error) bool { return !apperror.IsNotFound(err) }
	retry.OnRetry = func(attempt int, err error) {
		logger.Warn(ctx, "low stock publish failed, retrying",
			"inventory_id", c.InventoryID,
			"attempt", attempt,
			"error", err,
		)
	}

	var alert Alert
	err := resilience.Retry(ctx, retry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		var err error
		alert, err = p.enrich(attemptCtx, c)
		if err != nil {
			return err
		}
		body, err := Encode(alert)
		if err != nil {
			return fmt.Errorf("encode alert: %w", err)
		}
		return p.publisher.Publish(attemptCtx, alert.Key(), body)
	})
	if err != nil {
		outcome := OutcomeFailed
		if apperror.IsNotFound(err) {
			outcome = OutcomeDropped
		}
		p.observe(outcome)
		logger.Error(ctx, "low stock notification not published",
			"fatal", true,
			"inventory_id", c.InventoryID,
			"product_id", c.ProductID,
			"store_id", c.StoreID,
			"error", err,
		)
		return apperror.NewTransient("publish low stock notification", err)
	}

	p.observe(OutcomeOK)
	logger.Info(ctx, "low stock notification published",
		"inventory_id", c.InventoryID,
		"product_name", alert.ProductName,
		"store_name", alert.StoreName,
		"quantity", c.Quantity,
	)
	return nil
}

// enrich resolves names and the company outside any ledger transaction.
func (p *Producer) enrich(ctx context.Context, c inventory.Crossing) (Alert, error) {
	product, err := p.catalog.GetProduct(ctx, c.ProductID)
	if err != nil {
		return Alert{}, fmt.Errorf("load product %s: %w", c.ProductID, err)
	}
	store, err := p.catalog.GetStore(ctx, c.StoreID)
	if err != nil {
		return Alert{}, fmt.Errorf("load store %s: %w", c.StoreID, err)
	}
	return Alert{
		Type:            AlertType,
		InventoryID:     c.InventoryID.String(),
		ProductID:       c.ProductID.String(),
		ProductName:     product.Name,
		StoreName:       store.Name,
		CurrentQuantity: c.Quantity,
		Threshold:       c.Threshold,
		StoreID:         c.StoreID.String(),
		CompanyID:       store.CompanyID.String(),
		Timestamp:       c.At,
	}, nil
}

func (p *Producer) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObservePublish(outcome)
	}
}
