package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

var (
	// ErrUnknownDriver 未知的存储驱动
	ErrUnknownDriver = errors.New("repository: unknown store driver")

	// ErrEmptyUserID 用户 id 为空
	ErrEmptyUserID = errors.New("repository: empty user id")
)

// Store 抽卡持久化接口
//
// GetUser 在用户不存在时返回 (nil, nil)。SaveUsers 与 Commit 必须原子写入：
// 要么全部生效，要么全部不生效。
type Store interface {
	Init(ctx context.Context) error
	GetGachaState(ctx context.Context) (*model.GachaState, error)
	SaveGachaState(ctx context.Context, state *model.GachaState) error
	GetUser(ctx context.Context, userID string) (*model.User, error)
	SaveUser(ctx context.Context, userID string, user *model.User) error
	SaveUsers(ctx context.Context, users map[string]*model.User) error
	GetAllUsers(ctx context.Context) ([]model.UserRecord, error)

	// Commit 在一次原子写入中保存多个用户与全局状态，state 可为 nil
	Commit(ctx context.Context, users map[string]*model.User, state *model.GachaState) error
}

// Locker 跨进程的用户锁，返回的 unlock 必须调用
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// NoopLocker 单进程部署时使用
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}

// Config 存储配置
type Config struct {
	// Driver redis | postgres | memory
	Driver string `mapstructure:"driver" json:"driver" validate:"oneof=redis postgres memory"`

	// LockTTL 用户锁的过期时间，仅 redis 驱动使用
	LockTTL time.Duration `mapstructure:"lock_ttl" json:"lock_ttl"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Driver:  "redis",
		LockTTL: 10 * time.Second,
	}
}

func sortedUserIDs(users map[string]*model.User) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func sortRecords(records []model.UserRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].UserID < records[j].UserID })
}

// observe 包装一次存储操作的耗时与结果
func observe(m *metrics.GachaMetrics, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.RecordStoreOp(op, err == nil, start)
	return err
}
