package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider/mocks"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

var errStoreDown = errors.New("store is down")

// flakyStore 打开开关后所有写操作失败
type flakyStore struct {
	*repository.MemoryStore
	failWrites atomic.Bool
}

func (s *flakyStore) SaveGachaState(ctx context.Context, state *model.GachaState) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStore.SaveGachaState(ctx, state)
}

func (s *flakyStore) SaveUser(ctx context.Context, userID string, user *model.User) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStore.SaveUser(ctx, userID, user)
}

func (s *flakyStore) SaveUsers(ctx context.Context, users map[string]*model.User) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStore.SaveUsers(ctx, users)
}

func (s *flakyStore) Commit(ctx context.Context, users map[string]*model.User, state *model.GachaState) error {
	if s.failWrites.Load() {
		return errStoreDown
	}
	return s.MemoryStore.Commit(ctx, users, state)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// genPool 排名间隔 200，前 40 个覆盖全部稀有度
func genPool(n int) []model.Character {
	out := make([]model.Character, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Character{
			ID:             fmt.Sprintf("anilist_%d", i),
			Name:           fmt.Sprintf("Hero %d", i),
			Anime:          fmt.Sprintf("Show %d", i%5),
			ImageURL:       fmt.Sprintf("https://img/%d.png", i),
			Favorites:      int64(100000 - i*100),
			PopularityRank: int64(i * 200),
			Source:         "anilist",
			Sources:        []string{"anilist"},
		})
	}
	return out
}

func testConfig() *gachaconfig.Config {
	cfg := gachaconfig.DefaultConfig()
	cfg.BoardSize = 10
	cfg.PoolSize = 40
	cfg.BoardPrefetchMinutes = 0
	cfg.AdminUserIDs = []string{"admin"}
	return cfg
}

type testEnv struct {
	engine  *Engine
	store   *flakyStore
	catalog *mocks.MockCatalog
	clock   *testClock
	cfg     *gachaconfig.Config
}

type envOption func(*envSetup)

type envSetup struct {
	pool       []model.Character
	mythics    []model.Character
	bootstrap  bool
	engineOpts []Option
}

func withPool(pool []model.Character) envOption {
	return func(s *envSetup) { s.pool = pool }
}

func withoutBootstrap() envOption {
	return func(s *envSetup) { s.bootstrap = false }
}

func withEngineOptions(opts ...Option) envOption {
	return func(s *envSetup) { s.engineOpts = append(s.engineOpts, opts...) }
}

func newTestEnv(t *testing.T, cfg *gachaconfig.Config, opts ...envOption) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	setup := &envSetup{pool: genPool(40), mythics: genPool(3), bootstrap: true}
	for _, opt := range opts {
		opt(setup)
	}

	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalog(ctrl)
	catalog.EXPECT().FetchPool(gomock.Any(), gomock.Any()).Return(setup.pool, nil).AnyTimes()
	catalog.EXPECT().FetchTopRanked(gomock.Any(), gomock.Any()).Return(setup.mythics, nil).AnyTimes()

	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	clock := newTestClock()
	engineOpts := append([]Option{
		WithRand(rand.New(rand.NewSource(7))),
		WithClock(clock.Now),
	}, setup.engineOpts...)
	e := NewEngine(gachaconfig.NewStatic(cfg), store, catalog, logger.NewNoop(), engineOpts...)
	t.Cleanup(func() { _ = e.Close() })

	if setup.bootstrap {
		require.NoError(t, e.Bootstrap(context.Background()))
		e.Wait()
	}
	return &testEnv{engine: e, store: store, catalog: catalog, clock: clock, cfg: cfg}
}

func (env *testEnv) today() string {
	return env.cfg.DayKey(env.clock.Now())
}

// seedUser 直接写入存储，rolls 为剩余次数
func (env *testEnv) seedUser(t *testing.T, userID string, rolls int, stacks ...stack) {
	t.Helper()
	inv := model.Inventory{}
	for _, s := range stacks {
		c := s.character.Clone()
		inv[c.ID] = &model.InventoryEntry{Count: s.count, Character: &c}
	}
	user := &model.User{
		Username:    userID,
		DisplayName: userID,
		LastReset:   env.today(),
		RollsLeft:   rolls,
		Inventory:   inv,
	}
	require.NoError(t, env.store.MemoryStore.SaveUser(context.Background(), userID, user))
}

func (env *testEnv) loadUser(t *testing.T, userID string) *model.User {
	t.Helper()
	user, err := env.store.GetUser(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

type stack struct {
	character model.Character
	count     int
}

func held(c model.Character, count int) stack {
	return stack{character: c, count: count}
}

func requireKind(t *testing.T, err error, kind model.ErrorKind) *model.GachaError {
	t.Helper()
	require.Error(t, err)
	var ge *model.GachaError
	require.True(t, errors.As(err, &ge), "unexpected error %v", err)
	require.Equal(t, kind, ge.Kind, ge.Message)
	return ge
}

func TestBootstrap(t *testing.T) {
	env := newTestEnv(t, nil)
	state := env.engine.current().state

	assert.Len(t, state.BoardCharacters, env.cfg.BoardSize)
	assert.Len(t, state.BoardCharacterIDs, env.cfg.BoardSize)
	assert.Len(t, state.PoolCharacters, 40)
	require.NotNil(t, state.BoardUpdatedAt)
	assert.True(t, state.BoardUpdatedAt.Equal(env.clock.Now()))

	// 后台预热的神话目录
	require.Len(t, state.MythicCharacters, 3)
	for _, c := range state.MythicCharacters {
		assert.Equal(t, model.RarityMythic, c.Rarity)
		assert.Equal(t, 0.5, c.DropWeight)
	}

	persisted, err := env.store.GetGachaState(context.Background())
	require.NoError(t, err)
	assert.Equal(t, state.BoardCharacterIDs, persisted.BoardCharacterIDs)
}

func TestBootstrapKeepsExistingBoard(t *testing.T) {
	env := newTestEnv(t, nil)
	ids := env.engine.current().state.BoardCharacterIDs

	restarted := NewEngine(gachaconfig.NewStatic(env.cfg), env.store, env.catalog, logger.NewNoop(),
		WithClock(env.clock.Now),
	)
	t.Cleanup(func() { _ = restarted.Close() })
	require.NoError(t, restarted.Bootstrap(context.Background()))
	restarted.Wait()

	assert.Equal(t, ids, restarted.current().state.BoardCharacterIDs)
}

func TestFailedSaveKeepsSnapshot(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	before := env.engine.current().state
	env.store.failWrites.Store(true)

	_, err := env.engine.RefreshBoard(ctx, "admin")
	requireKind(t, err, model.KindInternal)
	assert.ErrorIs(t, err, errStoreDown)
	assertSameState(t, before, env.engine.current().state)

	env.seedUserUnsafe(t, "alice")
	_, err = env.engine.RollMany(ctx, "alice", 3, model.UserMeta{})
	requireKind(t, err, model.KindInternal)
	assert.Equal(t, 8, env.loadUser(t, "alice").RollsLeft)
	assertSameState(t, before, env.engine.current().state)
}

// assertSameState 快照在加锁时会从存储重新加载，按内容比较
func assertSameState(t *testing.T, want, got *model.GachaState) {
	t.Helper()
	assert.Equal(t, want.BoardCharacterIDs, got.BoardCharacterIDs)
	assert.Equal(t, idsOf(want.PoolCharacters), idsOf(got.PoolCharacters))
	require.NotNil(t, got.BoardUpdatedAt)
	assert.True(t, want.BoardUpdatedAt.Equal(*got.BoardUpdatedAt))
	assert.Len(t, got.TradeOffers, len(want.TradeOffers))
}

// seedUserUnsafe 绕过写失败开关写入一个空背包用户
func (env *testEnv) seedUserUnsafe(t *testing.T, userID string) {
	t.Helper()
	env.seedUser(t, userID, env.cfg.RollsPerDay)
}

func TestLockUsers(t *testing.T) {
	env := newTestEnv(t, nil, withoutBootstrap())
	ctx := context.Background()

	unlock, err := env.engine.lockUsers(ctx, "b", "a", "b")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release, err := env.engine.lockUsers(ctx, "a")
		if err == nil {
			release()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	<-acquired

	assert.Equal(t, []string{"a", "b"}, uniqueSorted([]string{"b", "a", "b"}))
}
