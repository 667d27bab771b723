package lowstock_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/core/apperror"
	"tradeledger/internal/core/id"
	"tradeledger/internal/core/types"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/lowstock"
	"tradeledger/internal/infrastructure/storage/memory"
	"tradeledger/pkg/resilience"
)

type fakePublisher struct {
	mu       sync.Mutex
	failures int
	calls    int
	keys     []string
	bodies   [][]byte
}

func (p *fakePublisher) Publish(_ context.Context, key, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("broker unavailable")
	}
	p.keys = append(p.keys, string(key))
	p.bodies = append(p.bodies, value)
	return nil
}

type countingObserver struct {
	mu      sync.Mutex
	publish map[string]int
	consume map[string]int
	deliver map[string]int
}

func newObserver() *countingObserver {
	return &countingObserver{publish: map[string]int{}, consume: map[string]int{}, deliver: map[string]int{}}
}

func (o *countingObserver) ObservePublish(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.publish[outcome]++
}

func (o *countingObserver) ObserveConsume(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consume[outcome]++
}

func (o *countingObserver) ObserveDelivery(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliver[outcome]++
}

func fastConfig() lowstock.ProducerConfig {
	return lowstock.ProducerConfig{
		Timeout: time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:   3,
			InitialDelay:  time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	}
}

func crossingFor(f *memory.Fixture) inventory.Crossing {
	p := f.NewProduct(f.ShopA.ID, "Widget", "30", "50")
	return inventory.Crossing{
		InventoryID: id.New(),
		ProductID:   p.ID,
		StoreID:     f.ShopA.ID,
		Quantity:    types.NewQuantity(9),
		Threshold:   types.NewQuantity(10),
		At:          time.Now().UTC(),
	}
}

func TestProducer_PublishesEnrichedAlert(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	obs := newObserver()
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), obs)
	c := crossingFor(f)

	require.NoError(t, producer.Publish(context.Background(), c))

	require.Len(t, pub.bodies, 1)
	alert, err := lowstock.Decode(pub.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, "Widget", alert.ProductName)
	assert.Equal(t, "Main Street", alert.StoreName)
	assert.Equal(t, f.CompanyID.String(), alert.CompanyID)
	assert.Equal(t, c.Quantity, alert.CurrentQuantity)
	assert.Equal(t, f.ShopA.ID.String()+"/"+c.ProductID.String(), pub.keys[0])
	assert.Equal(t, 1, obs.publish[lowstock.OutcomeOK])
}

func TestProducer_RetriesTransientFailures(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{failures: 2}
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), nil)

	require.NoError(t, producer.Publish(context.Background(), crossingFor(f)))

	assert.Equal(t, 3, pub.calls)
	assert.Len(t, pub.bodies, 1)
}

func TestProducer_GivesUpAfterMaxAttempts(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{failures: 10}
	obs := newObserver()
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), obs)

	err := producer.Publish(context.Background(), crossingFor(f))

	require.Error(t, err)
	assert.True(t, apperror.IsTransient(err))
	assert.Equal(t, 3, pub.calls)
	assert.Equal(t, 1, obs.publish[lowstock.OutcomeFailed])
}

func TestProducer_UnknownProductIsDroppedWithoutRetry(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	obs := newObserver()
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), obs)
	c := crossingFor(f)
	c.ProductID = id.New()

	err := producer.Publish(context.Background(), c)

	require.Error(t, err)
	assert.Zero(t, pub.calls)
	assert.Equal(t, 1, obs.publish[lowstock.OutcomeDropped])
}

func TestProducer_NotifyLowStockRunsInBackground(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), nil)

	producer.NotifyLowStock(context.Background(), []inventory.Crossing{crossingFor(f), crossingFor(f)})
	producer.Close()

	assert.Len(t, pub.bodies, 2)
}

func TestProducer_PublishesInNotifyOrder(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), nil)

	var want []string
	for i := 0; i < 20; i++ {
		c := crossingFor(f)
		want = append(want, c.StoreID.String()+"/"+c.ProductID.String())
		producer.NotifyLowStock(context.Background(), []inventory.Crossing{c})
	}
	producer.Close()

	assert.Equal(t, want, pub.keys)
}

func TestProducer_CancelledCallerStillPublishes(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())

	producer.NotifyLowStock(ctx, []inventory.Crossing{crossingFor(f)})
	cancel()
	producer.Close()

	assert.Len(t, pub.bodies, 1)
}

func TestProducer_DropsAfterClose(t *testing.T) {
	f := memory.NewFixture()
	pub := &fakePublisher{}
	obs := newObserver()
	producer := lowstock.NewProducer(f.Catalog(), pub, fastConfig(), obs)
	producer.Close()
	producer.Close()

	producer.NotifyLowStock(context.Background(), []inventory.Crossing{crossingFor(f)})

	assert.Zero(t, pub.calls)
	assert.Equal(t, 1, obs.publish[lowstock.OutcomeDropped])
}

type blockingPublisher struct {
	release chan struct{}
	fakePublisher
}

func (p *blockingPublisher) Publish(ctx context.Context, key, value []byte) error {
	<-p.release
	return p.fakePublisher.Publish(ctx, key, value)
}

func TestProducer_FullQueueDrops(t *testing.T) {
	f := memory.NewFixture()
	pub := &blockingPublisher{release: make(chan struct{})}
	obs := newObserver()
	cfg := fastConfig()
	cfg.QueueSize = 1
	producer := lowstock.NewProducer(f.Catalog(), pub, cfg, obs)

	// The first crossing may already be held by the publish loop, so three
	// notifications guarantee at least one finds the queue full.
	for i := 0; i < 3; i++ {
		producer.NotifyLowStock(context.Background(), []inventory.Crossing{crossingFor(f)})
	}
	close(pub.release)
	producer.Close()

	obs.mu.Lock()
	dropped := obs.publish[lowstock.OutcomeDropped]
	obs.mu.Unlock()
	assert.GreaterOrEqual(t, dropped, 1)
	assert.Equal(t, 3, dropped+len(pub.bodies))
}
