package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// Publish 发布消息，返回收到消息的订阅者数量
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) (int64, error) {
	n, err := c.rdb.Publish(ctx, channel, message).Result()
	if err != nil {
		return 0, fmt.Errorf("publish failed: %w", err)
	}
	return n, nil
}

// Subscription 频道订阅
type Subscription struct {
	pubsub *goredis.PubSub
	ch     chan Message
	done   chan struct{}
}

// Subscribe 订阅频道，订阅确认后返回
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	s := &Subscription{
		pubsub: pubsub,
		ch:     make(chan Message, 16),
		done:   make(chan struct{}),
	}
	go s.forward()
	return s, nil
}

func (s *Subscription) forward() {
	defer close(s.ch)
	for msg := range s.pubsub.Channel() {
		select {
		case s.ch <- Message{Channel: msg.Channel, Payload: msg.Payload}:
		case <-s.done:
			return
		}
	}
}

// Channel 消息通道，Close 后关闭
func (s *Subscription) Channel() <-chan Message {
	return s.ch
}

// Close 取消订阅
func (s *Subscription) Close() error {
	close(s.done)
	return s.pubsub.Close()
}
