package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_WritesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "low_stock_notifications"}

	require.NoError(t, p.Publish(context.Background(), []byte("s-1/p-1"), []byte(`{"type":"low_stock_alert"}`)))

	require.Len(t, w.written, 1)
	msg := w.written[0]
	assert.Equal(t, []byte("s-1/p-1"), msg.Key)
	assert.JSONEq(t, `{"type":"low_stock_alert"}`, string(msg.Value))
	assert.Equal(t, "application/json", header(msg, "content-type"))
	assert.Empty(t, msg.Topic)
}

func TestPublisher_WrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Publisher{writer: w, topic: "low_stock_notifications"}

	err := p.Publish(context.Background(), nil, []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "low_stock_notifications")
	assert.ErrorIs(t, err, w.err)
}
