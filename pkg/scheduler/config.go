package scheduler

import "time"

// Config 调度器配置
type Config struct {
	// Location 时区名称，空表示本地时区
	Location string `mapstructure:"location" json:"location"`

	// WithSeconds cron 表达式是否包含秒字段
	WithSeconds bool `mapstructure:"with_seconds" json:"with_seconds"`

	Retry RetryConfig `mapstructure:"retry" json:"retry"`
}

// RetryConfig 任务失败后的指数退避重试
type RetryConfig struct {
	// MaxRetries 为 0 时沿用默认值
	MaxRetries      uint64        `mapstructure:"max_retries" json:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval" json:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval" json:"max_interval"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: time.Second,
			MaxInterval:     30 * time.Second,
		},
	}
}
