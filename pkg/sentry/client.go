package sentry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// Client 持有独立 Hub 的 Sentry 客户端
//
// 禁用状态（未配置 DSN）下所有上报方法都是空操作，调用方无需判空。
type Client struct {
	hub     *sentry.Hub
	config  *Config
	enabled bool
	closed  atomic.Bool

	eventsTotal    atomic.Uint64
	eventsCaptured atomic.Uint64
	eventsDropped  atomic.Uint64
}

// New 创建客户端
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{config: cfg}
	if !cfg.Enabled() {
		return c, nil
	}

	client, err := sentry.NewClient(cfg.toClientOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	c.hub = sentry.NewHub(client, sentry.NewScope())
	c.hub.ConfigureScope(func(scope *sentry.Scope) {
		for key, value := range cfg.Tags {
			scope.SetTag(key, value)
		}
	})
	c.enabled = true
	return c, nil
}

// Enabled 是否真正上报
func (c *Client) Enabled() bool {
	return c.enabled && !c.closed.Load()
}

// CaptureException 上报错误，tags/extras 只作用于本次事件
func (c *Client) CaptureException(err error, tags map[string]string, extras map[string]interface{}) *sentry.EventID {
	if !c.Enabled() || err == nil {
		return nil
	}

	var eventID *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		scope.SetExtras(extras)
		eventID = c.hub.CaptureException(err)
	})
	return c.record(eventID)
}

// CaptureMessage 上报消息
func (c *Client) CaptureMessage(message string, level Level, tags map[string]string, extras map[string]interface{}) *sentry.EventID {
	if !c.Enabled() {
		return nil
	}

	var eventID *sentry.EventID
	c.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level.toSentryLevel())
		scope.SetTags(tags)
		scope.SetExtras(extras)
		eventID = c.hub.CaptureMessage(message)
	})
	return c.record(eventID)
}

// RecoverWithContext 上报 recover 得到的值，不重新 panic
func (c *Client) RecoverWithContext(ctx context.Context, recovered interface{}) *sentry.EventID {
	if !c.Enabled() || recovered == nil {
		return nil
	}
	return c.record(c.hub.RecoverWithContext(ctx, recovered))
}

func (c *Client) record(eventID *sentry.EventID) *sentry.EventID {
	c.eventsTotal.Add(1)
	if eventID != nil && *eventID != "" {
		c.eventsCaptured.Add(1)
	} else {
		c.eventsDropped.Add(1)
	}
	return eventID
}

// Flush 等待事件发送完成
func (c *Client) Flush(timeout time.Duration) bool {
	if !c.enabled {
		return true
	}
	return c.hub.Flush(timeout)
}

// Close 刷新剩余事件并停止上报
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return ErrClientClosed
	}
	if c.enabled {
		c.hub.Flush(c.config.ShutdownTimeout)
	}
	return nil
}

// Stats 上报统计快照
func (c *Client) Stats() Stats {
	return Stats{
		EventsTotal:    c.eventsTotal.Load(),
		EventsCaptured: c.eventsCaptured.Load(),
		EventsDropped:  c.eventsDropped.Load(),
	}
}
