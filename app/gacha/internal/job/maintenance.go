package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/scheduler"
)

const (
	JobBoard   = "gacha.board"
	JobCatalog = "gacha.catalog"
	JobTrades  = "gacha.trades"
)

// Config 维护任务配置
type Config struct {
	BoardInterval      time.Duration `mapstructure:"board_interval" json:"board_interval"`
	CatalogInterval    time.Duration `mapstructure:"catalog_interval" json:"catalog_interval"`
	TradeSweepInterval time.Duration `mapstructure:"trade_sweep_interval" json:"trade_sweep_interval"`
	AnnounceTimeout    time.Duration `mapstructure:"announce_timeout" json:"announce_timeout"`

	// Channel 看板公告频道，为空时使用 DefaultChannel
	Channel string `mapstructure:"channel" json:"channel"`
}

func DefaultConfig() *Config {
	return &Config{
		BoardInterval:      time.Minute,
		CatalogInterval:    30 * time.Minute,
		TradeSweepInterval: time.Minute,
		AnnounceTimeout:    10 * time.Second,
		Channel:            DefaultChannel,
	}
}

// Engine 维护任务依赖的引擎操作
type Engine interface {
	EnsureBoard(ctx context.Context, force bool) ([]model.Character, error)
	GetBoardRefreshInfo() service.BoardRefreshInfo
	EnsureCharacterPool(ctx context.Context, force bool) ([]model.Character, error)
	EnsureMythicCatalog(ctx context.Context, force bool) ([]model.Character, error)
	PoolUpdatedAt() *time.Time
	SweepTradeOffers(ctx context.Context) (bool, error)
}

// Maintenance 周期性刷新看板、同步角色目录、清理过期交易
//
// 看板更新时间变化即视为新看板上线，向 announcer 发布公告。
type Maintenance struct {
	config    *Config
	engine    Engine
	announcer Announcer
	logger    logger.Logger

	mu          sync.Mutex
	lastBoardAt time.Time
}

// New 创建维护任务并注册到调度器，announcer 可以为 nil
func New(cfg *Config, engine Engine, sched *scheduler.Scheduler, announcer Announcer, l logger.Logger) (*Maintenance, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	m := &Maintenance{
		config:    merged,
		engine:    engine,
		announcer: announcer,
		logger:    l.Named("job.maintenance"),
	}
	// 启动时已有的看板不再公告
	if at := engine.GetBoardRefreshInfo().BoardUpdatedAt; at != nil {
		m.lastBoardAt = *at
	}

	if sched == nil {
		return m, nil
	}
	jobs := []struct {
		name  string
		every time.Duration
		fn    scheduler.JobFunc
	}{
		{JobBoard, merged.BoardInterval, m.CheckBoard},
		{JobCatalog, merged.CatalogInterval, m.SyncCatalog},
		{JobTrades, merged.TradeSweepInterval, m.SweepTrades},
	}
	for _, j := range jobs {
		if j.every <= 0 {
			continue
		}
		if err := sched.AddInterval(j.name, j.every, j.fn); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// CheckBoard 确保看板有效，看板更换后发布公告
func (m *Maintenance) CheckBoard(ctx context.Context) error {
	board, err := m.engine.EnsureBoard(ctx, false)
	if err != nil {
		return err
	}
	info := m.engine.GetBoardRefreshInfo()
	if info.BoardUpdatedAt == nil || len(board) == 0 {
		return nil
	}

	m.mu.Lock()
	changed := !info.BoardUpdatedAt.Equal(m.lastBoardAt)
	if changed {
		m.lastBoardAt = *info.BoardUpdatedAt
	}
	m.mu.Unlock()
	if !changed {
		return nil
	}

	m.logger.Info("new board is live",
		"size", len(board),
		"updated_at", info.BoardUpdatedAt,
		"next_refresh_at", info.NextRefreshAt,
	)
	if m.announcer == nil {
		return nil
	}

	actx, cancel := context.WithTimeout(ctx, m.config.AnnounceTimeout)
	defer cancel()
	// 公告失败不重试，避免重复刷新看板
	if err := m.announcer.AnnounceBoard(actx, &BoardAnnouncement{
		UpdatedAt:     *info.BoardUpdatedAt,
		NextRefreshAt: info.NextRefreshAt,
		Characters:    board,
	}); err != nil {
		m.logger.Warn("failed to announce board", "error", err)
	}
	return nil
}

// SyncCatalog 角色池为空时同步；神话目录未满或过期时刷新
func (m *Maintenance) SyncCatalog(ctx context.Context) error {
	pool, err := m.engine.EnsureCharacterPool(ctx, false)
	if err != nil {
		return fmt.Errorf("ensure character pool: %w", err)
	}
	mythics, err := m.engine.EnsureMythicCatalog(ctx, false)
	if err != nil {
		return fmt.Errorf("ensure mythic catalog: %w", err)
	}
	m.logger.Debug("catalog checked",
		"pool_size", len(pool),
		"mythic_size", len(mythics),
		"pool_updated_at", m.engine.PoolUpdatedAt(),
	)
	return nil
}

func (m *Maintenance) SweepTrades(ctx context.Context) error {
	changed, err := m.engine.SweepTradeOffers(ctx)
	if err != nil {
		return err
	}
	if changed {
		m.logger.Info("trade offers swept")
	}
	return nil
}
