package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
	"golang.org/x/time/rate"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" json:"enabled"`
	RequestsPerSecond int  `mapstructure:"requests_per_second" json:"requests_per_second"`
	Burst             int  `mapstructure:"burst" json:"burst"`

	// PerUser 按认证用户限流，未认证请求退化为按 IP
	PerUser   bool     `mapstructure:"per_user" json:"per_user"`
	SkipPaths []string `mapstructure:"skip_paths" json:"skip_paths"`

	// WaitTimeout 大于 0 时排队等待，否则直接拒绝
	WaitTimeout time.Duration `mapstructure:"wait_timeout" json:"wait_timeout"`

	MaxLimiters int           `mapstructure:"max_limiters" json:"max_limiters"`
	LimiterTTL  time.Duration `mapstructure:"limiter_ttl" json:"limiter_ttl"`

	// KeyFunc 自定义限流键
	KeyFunc func(*gin.Context) string `mapstructure:"-" json:"-"`
}

// DefaultRateLimitConfig 默认配置
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		PerUser:           true,
		SkipPaths:         []string{"/healthz", "/metrics"},
		MaxLimiters:       10000,
		LimiterTTL:        10 * time.Minute,
	}
}

// RateLimiter 按键划分的令牌桶限流器
type RateLimiter struct {
	cfg      *RateLimitConfig
	limiters *lru.LRU[string, *rate.Limiter]
	logger   logger.Logger
}

// NewRateLimiter 创建限流器
func NewRateLimiter(l logger.Logger, cfg *RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg: cfg,
		limiters: lru.New[string, *rate.Limiter](&lru.Config{
			MaxSize:         cfg.MaxLimiters,
			DefaultTTL:      cfg.LimiterTTL,
			CleanupInterval: cfg.LimiterTTL,
		}),
		logger: l,
	}
}

// Allow 非阻塞检查
func (rl *RateLimiter) Allow(key string) bool {
	return rl.limiter(key).Allow()
}

// Wait 阻塞直到放行或 ctx 结束
func (rl *RateLimiter) Wait(ctx context.Context, key string) error {
	return rl.limiter(key).Wait(ctx)
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	return rl.limiters.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.Burst)
	})
}

// Close 停止后台清理
func (rl *RateLimiter) Close() error {
	return rl.limiters.Close()
}

// RateLimit 限流中间件，需挂在 Auth 之后才能按用户限流
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	skipPaths := make(map[string]struct{}, len(limiter.cfg.SkipPaths))
	for _, path := range limiter.cfg.SkipPaths {
		skipPaths[path] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, skip := skipPaths[path]; skip {
			c.Next()
			return
		}

		key := rateLimitKey(c, limiter.cfg)

		if limiter.cfg.WaitTimeout > 0 {
			ctx, cancel := context.WithTimeout(c.Request.Context(), limiter.cfg.WaitTimeout)
			defer cancel()
			if err := limiter.Wait(ctx, key); err != nil {
				limiter.logger.Warn("rate limit wait timeout", "key", key, "path", path, "error", err)
				abortWithRateLimitError(c)
				return
			}
		} else if !limiter.Allow(key) {
			limiter.logger.Warn("rate limit exceeded", "key", key, "path", path)
			abortWithRateLimitError(c)
			return
		}

		c.Next()
	}
}

func rateLimitKey(c *gin.Context, cfg *RateLimitConfig) string {
	if cfg.KeyFunc != nil {
		return cfg.KeyFunc(c)
	}
	if cfg.PerUser {
		if claims, ok := GetClaims(c); ok {
			return "user:" + claims.UserID
		}
	}
	return "ip:" + c.ClientIP()
}

func abortWithRateLimitError(c *gin.Context) {
	c.Header("Retry-After", strconv.Itoa(1))
	c.AbortWithStatusJSON(weberrors.CodeToStatus(weberrors.CodeRateLimited), gin.H{
		"code":    weberrors.CodeRateLimited,
		"message": "too many requests",
		"data":    nil,
	})
}
