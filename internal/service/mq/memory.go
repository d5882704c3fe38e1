package mq

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"marketplace-core/pkg/logger"
)

// MemoryBroker 进程内 Producer + Consumer，单实例部署和测试使用。
// 每个主题一个有缓冲 channel，订阅者在后台 goroutine 中串行处理。
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string]chan *Message
	seq    int64
	buffer int
	closed bool
}

func NewMemoryBroker(buffer int) *MemoryBroker {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MemoryBroker{topics: make(map[string]chan *Message), buffer: buffer}
}

func (b *MemoryBroker) channel(topic string) chan *Message {
	ch, ok := b.topics[topic]
	if !ok {
		ch = make(chan *Message, b.buffer)
		b.topics[topic] = ch
	}
	return ch
}

func (b *MemoryBroker) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return context.Canceled
	}
	b.seq++
	msg := &Message{
		ID:      strconv.FormatInt(b.seq, 10),
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
	}
	ch := b.channel(topic)
	b.mu.Unlock()

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *MemoryBroker) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	b.mu.Lock()
	ch := b.channel(topic)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-ch:
				if err := handler(msg); err != nil {
					logger.Error("[Memory MQ] 消息处理失败", zap.String("topic", topic), zap.String("id", msg.ID), zap.Error(err))
				}
			}
		}
	}()
	return nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
