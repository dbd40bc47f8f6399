package gachaconfig

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// Config 抽卡经济的可调参数，支持热更新
type Config struct {
	RollsPerDay                   int     `mapstructure:"rolls_per_day" json:"rolls_per_day" validate:"gte=0"`
	DailyRollBonus                int     `mapstructure:"daily_roll_bonus" json:"daily_roll_bonus" validate:"gte=0"`
	DailyCooldownMinutes          int     `mapstructure:"daily_cooldown_minutes" json:"daily_cooldown_minutes" validate:"gte=1"`
	BoardSize                     int     `mapstructure:"board_size" json:"board_size" validate:"gte=1,lte=500"`
	BoardRefreshMinutes           int     `mapstructure:"board_refresh_minutes" json:"board_refresh_minutes" validate:"gte=1"`
	BoardPrefetchMinutes          int     `mapstructure:"board_prefetch_minutes" json:"board_prefetch_minutes" validate:"gte=0"`
	MythicCatalogRefreshMinutes   int     `mapstructure:"mythic_catalog_refresh_minutes" json:"mythic_catalog_refresh_minutes" validate:"gte=10"`
	PoolSize                      int     `mapstructure:"pool_size" json:"pool_size" validate:"gte=1"`
	MythicSoftPityRolls           int     `mapstructure:"mythic_soft_pity_rolls" json:"mythic_soft_pity_rolls" validate:"gte=1"`
	MythicHardPityRolls           int     `mapstructure:"mythic_hard_pity_rolls" json:"mythic_hard_pity_rolls" validate:"gte=1"`
	MythicSoftPityRateStepPercent float64 `mapstructure:"mythic_soft_pity_rate_step_percent" json:"mythic_soft_pity_rate_step_percent" validate:"gte=0"`
	FeaturedBoardBoostPercent     float64 `mapstructure:"featured_board_boost_percent" json:"featured_board_boost_percent" validate:"gte=0"`

	ContractCosts         ContractCosts `mapstructure:"contract_costs" json:"contract_costs"`
	ContractMaxPerCommand int           `mapstructure:"contract_max_per_command" json:"contract_max_per_command" validate:"gte=1"`

	// Timezone 每日重置使用的时区，IANA 名称
	Timezone     string   `mapstructure:"timezone" json:"timezone"`
	AdminUserIDs []string `mapstructure:"admin_user_ids" json:"admin_user_ids"`

	Trade TradeConfig `mapstructure:"trade" json:"trade"`
}

// ContractCosts 每级合成消耗
type ContractCosts struct {
	Common    int `mapstructure:"common" json:"common" validate:"gte=1"`
	Rare      int `mapstructure:"rare" json:"rare" validate:"gte=1"`
	Epic      int `mapstructure:"epic" json:"epic" validate:"gte=1"`
	Legendary int `mapstructure:"legendary" json:"legendary" validate:"gte=1"`
}

// TradeConfig 交易单参数
type TradeConfig struct {
	ExpiryMinutes      int `mapstructure:"expiry_minutes" json:"expiry_minutes" validate:"gte=1"`
	MaxPendingPerUser  int `mapstructure:"max_pending_per_user" json:"max_pending_per_user" validate:"gte=1"`
	MaxResolvedHistory int `mapstructure:"max_resolved_history" json:"max_resolved_history" validate:"gte=0"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		RollsPerDay:                   8,
		DailyRollBonus:                5,
		DailyCooldownMinutes:          10,
		BoardSize:                     50,
		BoardRefreshMinutes:           60,
		BoardPrefetchMinutes:          5,
		MythicCatalogRefreshMinutes:   1440,
		PoolSize:                      10000,
		MythicSoftPityRolls:           700,
		MythicHardPityRolls:           1000,
		MythicSoftPityRateStepPercent: 0.05,
		FeaturedBoardBoostPercent:     40,
		ContractCosts: ContractCosts{
			Common:    100,
			Rare:      50,
			Epic:      20,
			Legendary: 5,
		},
		ContractMaxPerCommand: 10,
		Timezone:              "UTC",
		Trade: TradeConfig{
			ExpiryMinutes:      120,
			MaxPendingPerUser:  15,
			MaxResolvedHistory: 200,
		},
	}
}

// PityRules 归一化后的保底阈值
type PityRules struct {
	SoftPityRolls   int     `json:"softPityRolls"`
	HardPityRolls   int     `json:"hardPityRolls"`
	RateStepPercent float64 `json:"rateStepPercent"`
	HardTriggerAt   int     `json:"hardTriggerAt"`
}

// PityRules soft >= 1，hard >= soft，触发点为 hard-1
func (c *Config) PityRules() PityRules {
	soft := max(1, c.MythicSoftPityRolls)
	hard := max(soft, c.MythicHardPityRolls)
	return PityRules{
		SoftPityRolls:   soft,
		HardPityRolls:   hard,
		RateStepPercent: math.Max(0, c.MythicSoftPityRateStepPercent),
		HardTriggerAt:   max(0, hard-1),
	}
}

func (c *Config) BoardRefreshInterval() time.Duration {
	return time.Duration(max(1, c.BoardRefreshMinutes)) * time.Minute
}

// BoardPrefetchWindow 不超过刷新间隔
func (c *Config) BoardPrefetchWindow() time.Duration {
	window := time.Duration(max(0, c.BoardPrefetchMinutes)) * time.Minute
	return min(window, c.BoardRefreshInterval())
}

func (c *Config) MythicCatalogRefreshInterval() time.Duration {
	return time.Duration(max(10, c.MythicCatalogRefreshMinutes)) * time.Minute
}

func (c *Config) DailyCooldown() time.Duration {
	return time.Duration(max(1, c.DailyCooldownMinutes)) * time.Minute
}

func (c *Config) TradeExpiry() time.Duration {
	return time.Duration(max(1, c.Trade.ExpiryMinutes)) * time.Minute
}

// ContractRules 合成链上的全部规则，顺序从低到高
func (c *Config) ContractRules() []model.ContractRule {
	costs := map[model.Rarity]int{
		model.RarityCommon:    c.ContractCosts.Common,
		model.RarityRare:      c.ContractCosts.Rare,
		model.RarityEpic:      c.ContractCosts.Epic,
		model.RarityLegendary: c.ContractCosts.Legendary,
	}
	rules := make([]model.ContractRule, 0, len(costs))
	for _, from := range model.ContractChain {
		to, ok := from.Next()
		if !ok {
			continue
		}
		rules = append(rules, model.ContractRule{From: from, To: to, Cost: max(1, costs[from])})
	}
	return rules
}

// ContractRule 查找 from 稀有度的规则
func (c *Config) ContractRule(from model.Rarity) (model.ContractRule, bool) {
	for _, rule := range c.ContractRules() {
		if rule.From == from {
			return rule, true
		}
	}
	return model.ContractRule{}, false
}

var locations sync.Map

// Location 时区加载失败时退回 UTC
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc = time.UTC
	}
	locations.Store(name, loc)
	return loc
}

// DayKey 时区内的日期，格式 YYYY-MM-DD
func (c *Config) DayKey(t time.Time) string {
	return t.In(c.Location()).Format("2006-01-02")
}

func (c *Config) IsAdmin(userID string) bool {
	for _, id := range c.AdminUserIDs {
		if strings.TrimSpace(id) == userID && userID != "" {
			return true
		}
	}
	return false
}

// Check 跨字段校验，validate tag 无法表达的部分
func (c *Config) Check() error {
	if c.MythicHardPityRolls < c.MythicSoftPityRolls {
		return fmt.Errorf("mythic_hard_pity_rolls (%d) must be >= mythic_soft_pity_rolls (%d)",
			c.MythicHardPityRolls, c.MythicSoftPityRolls)
	}
	if name := strings.TrimSpace(c.Timezone); name != "" {
		if _, err := time.LoadLocation(name); err != nil {
			return fmt.Errorf("invalid timezone %q: %w", name, err)
		}
	}
	return nil
}

// Source 提供当前生效的配置，config.Watcher 满足该接口
type Source interface {
	Current() *Config
}

// Static 固定配置，测试与无热更新场景使用
type Static struct {
	cfg *Config
}

func NewStatic(cfg *Config) *Static {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Static{cfg: cfg}
}

func (s *Static) Current() *Config {
	return s.cfg
}
