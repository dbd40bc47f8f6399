package notify

import (
	"context"
	"errors"
	"fmt"
)

// Notifier 通知渠道
type Notifier interface {
	Send(ctx context.Context, notice *Notice) error
	Name() string
}

// Multi 依次投递到多个渠道，单个渠道失败不影响其他渠道
type Multi struct {
	notifiers []Notifier
}

// NewMulti 组合多个渠道，nil 会被忽略
func NewMulti(notifiers ...Notifier) *Multi {
	m := &Multi{}
	for _, n := range notifiers {
		if n != nil {
			m.notifiers = append(m.notifiers, n)
		}
	}
	return m
}

// Len 渠道数
func (m *Multi) Len() int {
	return len(m.notifiers)
}

func (m *Multi) Name() string {
	return "multi"
}

// Send 返回所有失败渠道的合并错误
func (m *Multi) Send(ctx context.Context, notice *Notice) error {
	if len(m.notifiers) == 0 {
		return ErrNoNotifiers
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, notice); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
