package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/domain/lowstock"
)

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type fakeWriter struct {
	mu      sync.Mutex
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type scriptedHandler struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (h *scriptedHandler) Handle(context.Context, []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.errs) == 0 {
		return nil
	}
	err := h.errs[0]
	h.errs = h.errs[1:]
	return err
}

func testGroup(h Handler, dlq *fakeWriter) *ConsumerGroup {
	return &ConsumerGroup{
		cfg: Config{
			Topic:             "low_stock_notifications",
			DLQTopic:          "low_stock_notifications.dlq",
			Workers:           1,
			MaxRedeliveries:   2,
			RedeliveryBackoff: time.Millisecond,
		},
		handler: h,
		dlq:     dlq,
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestProcess_AcknowledgesHandledMessage(t *testing.T) {
	h := &scriptedHandler{}
	dlq := &fakeWriter{}
	r := &fakeReader{}

	testGroup(h, dlq).process(context.Background(), r, kafka.Message{Offset: 7, Value: []byte("{}")})

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []int64{7}, r.commits())
	assert.Empty(t, dlq.written)
}

func TestProcess_MalformedGoesToDeadLetterWithoutRetry(t *testing.T) {
	h := &scriptedHandler{errs: []error{fmt.Errorf("%w: bad json", lowstock.ErrMalformed)}}
	dlq := &fakeWriter{}
	r := &fakeReader{}

	msg := kafka.Message{Topic: "low_stock_notifications", Offset: 3, Key: []byte("s/p"), Value: []byte("nope")}
	testGroup(h, dlq).process(context.Background(), r, msg)

	assert.Equal(t, 1, h.calls)
	assert.Equal(t, []int64{3}, r.commits())
	require.Len(t, dlq.written, 1)
	assert.Equal(t, []byte("nope"), dlq.written[0].Value)
	assert.Equal(t, "low_stock_notifications", header(dlq.written[0], "x-source-topic"))
	assert.Equal(t, "1", header(dlq.written[0], "x-attempts"))
}

func TestProcess_RedeliversTransientFailures(t *testing.T) {
	transient := errors.New("directory down")
	h := &scriptedHandler{errs: []error{transient, transient}}
	dlq := &fakeWriter{}
	r := &fakeReader{}

	testGroup(h, dlq).process(context.Background(), r, kafka.Message{Offset: 1})

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{1}, r.commits())
	assert.Empty(t, dlq.written)
}

func TestProcess_DeadLettersAfterRedeliveriesExhausted(t *testing.T) {
	transient := errors.New("directory down")
	h := &scriptedHandler{errs: []error{transient, transient, transient, transient}}
	dlq := &fakeWriter{}
	r := &fakeReader{}

	testGroup(h, dlq).process(context.Background(), r, kafka.Message{Offset: 9})

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{9}, r.commits())
	require.Len(t, dlq.written, 1)
	assert.Equal(t, "directory down", header(dlq.written[0], "x-error"))
	assert.Equal(t, "3", header(dlq.written[0], "x-attempts"))
}

func TestProcess_KeepsOffsetWhenDeadLetterFails(t *testing.T) {
	h := &scriptedHandler{errs: []error{lowstock.ErrMalformed}}
	dlq := &fakeWriter{err: errors.New("broker unavailable")}
	r := &fakeReader{}

	testGroup(h, dlq).process(context.Background(), r, kafka.Message{Offset: 5})

	assert.Empty(t, r.commits())
}

func TestProcess_StopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &scriptedHandler{errs: []error{errors.New("timeout")}}
	g := testGroup(h, &fakeWriter{})
	g.cfg.RedeliveryBackoff = time.Hour
	r := &fakeReader{}

	done := make(chan struct{})
	go func() {
		g.process(ctx, r, kafka.Message{Offset: 2})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process did not stop after cancellation")
	}
	assert.Empty(t, r.commits())
}

func TestRun_WorkersDrainTheirReaders(t *testing.T) {
	h := &scriptedHandler{}
	readers := []*fakeReader{
		{queue: []kafka.Message{{Offset: 1}, {Offset: 2}}},
		{queue: []kafka.Message{{Offset: 10}}},
	}
	var mu sync.Mutex
	next := 0

	g := testGroup(h, &fakeWriter{})
	g.cfg.Workers = 2
	g.newReader = func() messageReader {
		mu.Lock()
		defer mu.Unlock()
		r := readers[next]
		next++
		return r
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- g.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(readers[0].commits())+len(readers[1].commits()) == 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	assert.True(t, readers[0].closed)
	assert.True(t, readers[1].closed)
}

func TestConfigBackoff(t *testing.T) {
	cfg := Config{RedeliveryBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, cfg.backoff(0))
	assert.Equal(t, 2*time.Second, cfg.backoff(1))
	assert.Equal(t, 4*time.Second, cfg.backoff(2))
	assert.Equal(t, 5*time.Second, cfg.backoff(3))
}
