package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
)

// Config Web 服务配置
type Config struct {
	Addr            string        `mapstructure:"addr" json:"addr"`
	Mode            string        `mapstructure:"mode" json:"mode"` // debug, release, test
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`

	CORS      CORSConfig                 `mapstructure:"cors" json:"cors"`
	RateLimit middleware.RateLimitConfig `mapstructure:"rate_limit" json:"rate_limit"`
}

// CORSConfig 跨域配置，AllowOrigins 为空时允许所有来源
type CORSConfig struct {
	Enabled      bool     `mapstructure:"enabled" json:"enabled"`
	AllowOrigins []string `mapstructure:"allow_origins" json:"allow_origins"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		RateLimit:       *middleware.DefaultRateLimitConfig(),
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidConfig
	}
	switch c.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return ErrInvalidConfig
	}
	return nil
}
