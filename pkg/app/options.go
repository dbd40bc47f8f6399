package app

import (
	"time"

	"github.com/google/uuid"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// Options 应用选项
type Options struct {
	// ID 实例标识，启动日志中输出
	ID          string
	Name        string
	StopTimeout time.Duration
	Logger      logger.Logger

	// LogOptions 创建具名日志时附加的选项（如 sentry hook）
	LogOptions   []logger.Option
	NamedLoggers map[string]*logger.Config
}

// Option 选项函数
type Option func(*Options)

// DefaultOptions 默认选项
func DefaultOptions() Options {
	return Options{
		ID:          uuid.New().String(),
		Name:        AppName,
		StopTimeout: 30 * time.Second,
		Logger:      logger.Default(),
	}
}

// WithLogOptions 具名日志附加选项
func WithLogOptions(opts ...logger.Option) Option {
	return func(o *Options) { o.LogOptions = append(o.LogOptions, opts...) }
}

// WithNamedLoggers 设置具名日志配置
func WithNamedLoggers(loggers map[string]*logger.Config) Option {
	return func(o *Options) { o.NamedLoggers = loggers }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

// WithStopTimeout 优雅停止超时
func WithStopTimeout(t time.Duration) Option {
	return func(o *Options) { o.StopTimeout = t }
}
