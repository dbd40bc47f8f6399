package notify

import "errors"

var (
	// ErrNoNotifiers 没有可用的通知渠道
	ErrNoNotifiers = errors.New("no notifiers configured")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("invalid notifier config")
)
