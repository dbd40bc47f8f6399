package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// Config Sentry 配置，DSN 为空时客户端处于禁用状态
type Config struct {
	DSN         string `mapstructure:"dsn" json:"dsn"`
	Environment string `mapstructure:"environment" json:"environment"`
	Release     string `mapstructure:"release" json:"release"`
	ServerName  string `mapstructure:"server_name" json:"server_name"`

	// SampleRate 错误采样率 (0.0-1.0)
	SampleRate       float64 `mapstructure:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
	AttachStacktrace bool    `mapstructure:"attach_stacktrace" json:"attach_stacktrace"`
	MaxBreadcrumbs   int     `mapstructure:"max_breadcrumbs" json:"max_breadcrumbs" validate:"gte=0"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug" json:"debug"`

	Tags map[string]string `mapstructure:"tags" json:"tags"`

	// Transport 仅供测试替换上报通道
	Transport sentry.Transport `mapstructure:"-" json:"-"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Environment:      "production",
		SampleRate:       1.0,
		AttachStacktrace: true,
		MaxBreadcrumbs:   100,
		ShutdownTimeout:  2 * time.Second,
		Tags:             make(map[string]string),
	}
}

// Enabled 是否配置了 DSN
func (c *Config) Enabled() bool {
	return c != nil && c.DSN != ""
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.SampleRate < 0 || c.SampleRate > 1 || c.MaxBreadcrumbs < 0 {
		return ErrInvalidConfig
	}
	return nil
}

func (c *Config) toClientOptions() sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:              c.DSN,
		Environment:      c.Environment,
		Release:          c.Release,
		ServerName:       c.ServerName,
		SampleRate:       c.SampleRate,
		AttachStacktrace: c.AttachStacktrace,
		MaxBreadcrumbs:   c.MaxBreadcrumbs,
		Debug:            c.Debug,
		Transport:        c.Transport,
	}
}
