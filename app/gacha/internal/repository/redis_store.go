package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// RedisStore 全局状态存为 JSON 字符串，用户存为哈希字段
type RedisStore struct {
	client  *redis.Client
	logger  logger.Logger
	metrics *metrics.GachaMetrics
}

func NewRedisStore(client *redis.Client, l logger.Logger, m *metrics.GachaMetrics) *RedisStore {
	return &RedisStore{
		client:  client,
		logger:  l.Named("repository.redis"),
		metrics: m,
	}
}

func (s *RedisStore) stateKey() string {
	return s.client.Key("state")
}

func (s *RedisStore) usersKey() string {
	return s.client.Key("users")
}

func (s *RedisStore) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx); err != nil {
		return fmt.Errorf("failed to init redis store: %w", err)
	}
	return nil
}

func (s *RedisStore) GetGachaState(ctx context.Context) (*model.GachaState, error) {
	var state *model.GachaState
	err := observe(s.metrics, "get_state", func() error {
		loaded, err := redis.GetObject[model.GachaState](ctx, s.client, s.stateKey())
		if errors.Is(err, redis.ErrNil) {
			state = model.NewGachaState()
			return nil
		}
		if err != nil {
			return err
		}
		state = loaded
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get gacha state: %w", err)
	}
	return state, nil
}

func (s *RedisStore) SaveGachaState(ctx context.Context, state *model.GachaState) error {
	err := observe(s.metrics, "save_state", func() error {
		return redis.SetObject(ctx, s.client, s.stateKey(), state, 0)
	})
	if err != nil {
		return fmt.Errorf("failed to save gacha state: %w", err)
	}
	return nil
}

func (s *RedisStore) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var user *model.User
	err := observe(s.metrics, "get_user", func() error {
		loaded, err := redis.HGetObject[model.User](ctx, s.client, s.usersKey(), userID)
		if errors.Is(err, redis.ErrNil) {
			return nil
		}
		user = loaded
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *RedisStore) SaveUser(ctx context.Context, userID string, user *model.User) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	err := observe(s.metrics, "save_user", func() error {
		return redis.HSetObject(ctx, s.client, s.usersKey(), userID, user)
	})
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", userID, err)
	}
	return nil
}

func (s *RedisStore) SaveUsers(ctx context.Context, users map[string]*model.User) error {
	return s.commit(ctx, "save_users", users, nil)
}

func (s *RedisStore) GetAllUsers(ctx context.Context) ([]model.UserRecord, error) {
	var records []model.UserRecord
	err := observe(s.metrics, "get_all_users", func() error {
		users, err := redis.HGetAllObjects[model.User](ctx, s.client, s.usersKey())
		if err != nil {
			return err
		}
		records = make([]model.UserRecord, 0, len(users))
		for id, user := range users {
			records = append(records, model.UserRecord{UserID: id, User: user})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	sortRecords(records)
	return records, nil
}

func (s *RedisStore) Commit(ctx context.Context, users map[string]*model.User, state *model.GachaState) error {
	return s.commit(ctx, "commit", users, state)
}

// commit MULTI/EXEC 写入，任一序列化失败则不提交
func (s *RedisStore) commit(ctx context.Context, op string, users map[string]*model.User, state *model.GachaState) error {
	start := time.Now()
	err := s.client.TxPipelined(ctx, func(tx *redis.Tx) error {
		for _, id := range sortedUserIDs(users) {
			if id == "" {
				return ErrEmptyUserID
			}
			tx.HSetObject(s.usersKey(), id, users[id])
		}
		if state != nil {
			tx.SetObject(s.stateKey(), state, 0)
		}
		return nil
	})
	s.metrics.RecordStoreOp(op, err == nil, start)
	if err != nil {
		s.logger.Error("redis commit failed",
			"operation", op,
			"user_count", len(users),
			"with_state", state != nil,
			"error", err,
		)
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// RedisLocker 基于 SET NX 的用户锁
type RedisLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
	logger        logger.Logger
}

func NewRedisLocker(client *redis.Client, cfg *Config, l logger.Logger) *RedisLocker {
	ttl := 10 * time.Second
	if cfg != nil && cfg.LockTTL > 0 {
		ttl = cfg.LockTTL
	}
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: 25 * time.Millisecond,
		maxRetries:    int(ttl / (25 * time.Millisecond)),
		logger:        l.Named("repository.locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lock := l.client.NewLock(l.client.Key("lock", key), l.ttl)
	if err := lock.LockWithRetry(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", key, err)
	}
	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的超时
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := lock.Unlock(unlockCtx); err != nil {
			l.logger.Warn("failed to release lock", "key", key, "error", err)
		}
	}, nil
}
