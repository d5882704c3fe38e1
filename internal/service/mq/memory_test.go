package mq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewMemoryBroker(8)
	received := make(chan *Message, 2)
	require.NoError(t, b.Subscribe(ctx, "marketplace_events_rented", func(msg *Message) error {
		received <- msg
		return nil
	}))

	require.NoError(t, b.Publish(ctx, "marketplace_events_rented", "rental:1", []byte(`{"a":1}`)))
	require.NoError(t, b.Publish(ctx, "marketplace_events_rented", "rental:2", []byte(`{"a":2}`)))

	for _, want := range []string{`{"a":1}`, `{"a":2}`} {
		select {
		case msg := <-received:
			assert.Equal(t, want, string(msg.Payload), "同一主题内保持顺序")
			assert.Equal(t, "marketplace_events_rented", msg.Topic)
		case <-time.After(time.Second):
			t.Fatal("未收到消息")
		}
	}

	require.NoError(t, b.Close())
	assert.Error(t, b.Publish(ctx, "marketplace_events_rented", "", nil), "关闭后不能再发送")
}
