package provider

import (
	"context"
	"errors"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// Catalog 外部角色目录
//
//go:generate mockgen -source=provider.go -destination=mocks/catalog.go -package=mocks -mock_names=Catalog=MockCatalog
type Catalog interface {
	// FetchPool 拉取人气角色池，外部源不可用时返回内置兜底角色
	FetchPool(ctx context.Context, target int) ([]model.Character, error)

	// FetchTopRanked 按排名返回前 limit 个角色
	FetchTopRanked(ctx context.Context, limit int) ([]model.Character, error)

	// Search 按名称搜索
	Search(ctx context.Context, query string, limit int) ([]model.Character, error)

	// FetchGallery 汇总角色图片
	FetchGallery(ctx context.Context, character model.Character, limit int) ([]model.GalleryImage, error)
}

var (
	// ErrEmptyQuery 搜索词为空
	ErrEmptyQuery = errors.New("provider: empty query")

	// ErrRetryable 可重试的上游错误
	ErrRetryable = errors.New("provider: retryable upstream error")
)

// Config 外部目录配置
type Config struct {
	AniList AniListConfig `mapstructure:"anilist" json:"anilist"`
	Jikan   JikanConfig   `mapstructure:"jikan" json:"jikan"`

	// SearchCacheSize 搜索结果缓存条数，0 表示不缓存
	SearchCacheSize int           `mapstructure:"search_cache_size" json:"search_cache_size"`
	SearchCacheTTL  time.Duration `mapstructure:"search_cache_ttl" json:"search_cache_ttl"`
}

// AniListConfig AniList GraphQL 配置
type AniListConfig struct {
	Endpoint   string        `mapstructure:"endpoint" json:"endpoint" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base" json:"retry_base"`
	RetryMax   time.Duration `mapstructure:"retry_max" json:"retry_max"`
	PageDelay  time.Duration `mapstructure:"page_delay" json:"page_delay"`
	// RandomTopPages 随机抽取页码的窗口
	RandomTopPages int    `mapstructure:"random_top_pages" json:"random_top_pages"`
	UserAgent      string `mapstructure:"user_agent" json:"user_agent"`
}

// JikanConfig Jikan REST 配置
type JikanConfig struct {
	BaseURL    string        `mapstructure:"base_url" json:"base_url" validate:"required,url"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" json:"max_retries"`
	RetryBase  time.Duration `mapstructure:"retry_base" json:"retry_base"`
	RetryMax   time.Duration `mapstructure:"retry_max" json:"retry_max"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		AniList: AniListConfig{
			Endpoint:       "https://graphql.anilist.co",
			Timeout:        15 * time.Second,
			MaxRetries:     4,
			RetryBase:      800 * time.Millisecond,
			RetryMax:       10 * time.Second,
			PageDelay:      350 * time.Millisecond,
			RandomTopPages: 300,
			UserAgent:      "xdooria-gacha/1.0",
		},
		Jikan: JikanConfig{
			BaseURL:    "https://api.jikan.moe/v4",
			Timeout:    15 * time.Second,
			MaxRetries: 3,
			RetryBase:  time.Second,
			RetryMax:   10 * time.Second,
		},
		SearchCacheSize: 512,
		SearchCacheTTL:  10 * time.Minute,
	}
}
