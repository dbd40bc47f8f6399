package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

func testRand(seed int64) *lockedRand {
	return newLockedRand(rand.New(rand.NewSource(seed)))
}

func TestPlanRarities(t *testing.T) {
	tests := []struct {
		size                                  int
		mythic, legendary, epic, rare, common int
	}{
		{size: 0},
		{size: 1, mythic: 1},
		{size: 5, mythic: 1, rare: 1, common: 3},
		{size: 10, mythic: 1, legendary: 1, epic: 1, rare: 2, common: 5},
		{size: 12, mythic: 1, legendary: 1, epic: 2, rare: 3, common: 5},
		{size: 20, mythic: 1, legendary: 2, epic: 3, rare: 5, common: 9},
		{size: 50, mythic: 1, legendary: 3, epic: 10, rare: 13, common: 23},
	}
	for _, tt := range tests {
		plan := planRarities(tt.size)
		assert.Equal(t, tt.mythic, plan[model.RarityMythic], "size %d mythic", tt.size)
		assert.Equal(t, tt.legendary, plan[model.RarityLegendary], "size %d legendary", tt.size)
		assert.Equal(t, tt.epic, plan[model.RarityEpic], "size %d epic", tt.size)
		assert.Equal(t, tt.rare, plan[model.RarityRare], "size %d rare", tt.size)
		assert.Equal(t, tt.common, plan[model.RarityCommon], "size %d common", tt.size)

		total := 0
		for _, n := range plan {
			total += n
		}
		assert.Equal(t, tt.size, total)
	}
}

func TestComposeBoard(t *testing.T) {
	pool := model.AssignRarityAndWeight(genPool(40))

	for seed := int64(1); seed <= 20; seed++ {
		board := composeBoard(testRand(seed), pool, 10)
		require.Len(t, board, 10)

		seen := make(map[string]struct{}, len(board))
		mythics := 0
		for i, c := range board {
			_, dup := seen[c.ID]
			assert.False(t, dup, "duplicate %s", c.ID)
			seen[c.ID] = struct{}{}
			if c.Rarity.IsMythic() {
				mythics++
			}
			if i > 0 {
				assert.LessOrEqual(t, board[i-1].Rarity.OrderIndex(), c.Rarity.OrderIndex())
			}
		}
		assert.LessOrEqual(t, mythics, 1)
	}

	t.Run("catalog smaller than board", func(t *testing.T) {
		small := []model.Character{
			{ID: "m1", Name: "M1", Rarity: model.RarityMythic, DropWeight: 0.5},
			{ID: "m2", Name: "M2", Rarity: model.RarityMythic, DropWeight: 0.5},
			{ID: "m3", Name: "M3", Rarity: model.RarityMythic, DropWeight: 0.5},
			{ID: "c1", Name: "C1", Rarity: model.RarityCommon, DropWeight: 60},
		}
		board := composeBoard(testRand(3), small, 4)
		require.Len(t, board, 2)
		assert.Equal(t, model.RarityMythic, board[0].Rarity)
		assert.Equal(t, "c1", board[1].ID)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, composeBoard(testRand(1), nil, 10))
		assert.Empty(t, composeBoard(testRand(1), pool, 0))
	})
}

func TestApplyFeaturedBoost(t *testing.T) {
	pool := model.AssignRarityAndWeight(genPool(40))
	board := composeBoard(testRand(5), pool, 10)
	board[0].Featured = true
	board[0].FeaturedRarity = model.RarityCommon

	boosted := applyFeaturedBoost(testRand(5), board, 40)
	require.Len(t, boosted, len(board))

	featured := map[model.Rarity]int{}
	for i, c := range boosted {
		if !c.Featured {
			assert.Equal(t, board[i].DropWeight, c.DropWeight)
			assert.Empty(t, c.FeaturedRarity)
			continue
		}
		featured[c.Rarity]++
		assert.Equal(t, c.Rarity, c.FeaturedRarity)
		assert.InDelta(t, model.Round4(board[i].DropWeight*1.4), c.DropWeight, 1e-9)
	}
	assert.Equal(t, map[model.Rarity]int{
		model.RarityEpic:      1,
		model.RarityLegendary: 1,
		model.RarityMythic:    1,
	}, featured)

	// 原看板不被修改
	assert.True(t, board[0].Featured)
}

func TestEnsureBoardRefresh(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first := env.engine.current().state
	firstAt := *first.BoardUpdatedAt

	board, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, first.BoardCharacterIDs, idsOf(board))
	assert.Same(t, first, env.engine.current().state)

	env.clock.Advance(61 * time.Minute)
	board, err = env.engine.GetBoard(ctx)
	require.NoError(t, err)
	require.Len(t, board, env.cfg.BoardSize)

	state := env.engine.current().state
	assert.True(t, state.BoardUpdatedAt.After(firstAt))
	assert.Equal(t, idsOf(board), state.BoardCharacterIDs)
}

func TestBoardPrefetch(t *testing.T) {
	cfg := testConfig()
	cfg.BoardPrefetchMinutes = 5
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	base := *env.engine.current().state.BoardUpdatedAt

	// 未进入预取窗口
	_, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	env.engine.Wait()
	assert.False(t, env.engine.hasPrefetched(base))

	env.clock.Advance(56 * time.Minute)
	_, err = env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	env.engine.Wait()
	require.True(t, env.engine.hasPrefetched(base))
	prefetched := env.engine.takePrefetched(base)
	require.Len(t, prefetched, cfg.BoardSize)

	env.clock.Advance(5 * time.Minute)
	board, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, idsOf(prefetched), idsOf(board))
	assert.False(t, env.engine.hasPrefetched(base))
}

func TestForcedRefreshDiscardsPrefetch(t *testing.T) {
	env := newTestEnv(t, nil)
	base := *env.engine.current().state.BoardUpdatedAt
	env.engine.prefetched = &prefetchedBoard{base: base, board: []model.Character{{ID: "stale"}}}

	board, err := env.engine.EnsureBoard(context.Background(), true)
	require.NoError(t, err)
	assert.NotContains(t, idsOf(board), "stale")
	assert.Nil(t, env.engine.prefetched)
}

func TestRefreshBoard(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, err := env.engine.RefreshBoard(ctx, "alice")
	requireKind(t, err, model.KindAuthorization)

	t.Run("uses prefetched board", func(t *testing.T) {
		base := *env.engine.current().state.BoardUpdatedAt
		pool := env.engine.current().state.PoolCharacters
		next := model.CloneCharacters(pool[30:40])
		env.engine.prefetchMu.Lock()
		env.engine.prefetched = &prefetchedBoard{base: base, board: next}
		env.engine.prefetchMu.Unlock()

		env.clock.Advance(time.Minute)
		board, err := env.engine.RefreshBoard(ctx, "admin")
		require.NoError(t, err)
		assert.Equal(t, idsOf(next), idsOf(board))
		assert.Equal(t, idsOf(next), env.engine.current().state.BoardCharacterIDs)
	})

	t.Run("forces a new board", func(t *testing.T) {
		env.clock.Advance(time.Minute)
		before := *env.engine.current().state.BoardUpdatedAt
		_, err := env.engine.RefreshBoard(ctx, "admin")
		require.NoError(t, err)
		assert.True(t, env.engine.current().state.BoardUpdatedAt.After(before))
	})
}

func TestGetBoardRefreshInfo(t *testing.T) {
	env := newTestEnv(t, nil, withoutBootstrap())
	info := env.engine.GetBoardRefreshInfo()
	assert.Equal(t, BoardRefreshInfo{HasBoard: false, IsReady: true}, info)

	require.NoError(t, env.engine.Bootstrap(context.Background()))
	env.engine.Wait()
	env.clock.Advance(30 * time.Minute)

	info = env.engine.GetBoardRefreshInfo()
	assert.True(t, info.HasBoard)
	assert.False(t, info.IsReady)
	assert.Equal(t, int64(30*time.Minute/time.Millisecond), info.MsRemaining)
	require.NotNil(t, info.NextRefreshAt)
	assert.True(t, info.NextRefreshAt.Equal(env.clock.Now().Add(30*time.Minute)))

	env.clock.Advance(45 * time.Minute)
	info = env.engine.GetBoardRefreshInfo()
	assert.True(t, info.IsReady)
	assert.Zero(t, info.MsRemaining)
}

func TestBoardSeedsEmptyPool(t *testing.T) {
	env := newTestEnv(t, nil, withoutBootstrap(), withPool(nil))
	ctx := context.Background()

	// 旧数据只有看板没有角色池
	now := env.clock.Now().Add(-2 * time.Hour)
	state := model.NewGachaState()
	state.BoardCharacters = model.AssignRarityAndWeight(genPool(10))
	state.BoardUpdatedAt = &now
	require.NoError(t, env.store.SaveGachaState(ctx, state))
	require.NoError(t, env.engine.Bootstrap(ctx))
	env.engine.Wait()

	board, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	assert.NotEmpty(t, board)
	for _, c := range board {
		assert.Contains(t, idsOf(state.BoardCharacters), c.ID)
	}
}

func idsOf(list []model.Character) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.ID)
	}
	return out
}

func TestBoardPrefetchAfterRejectedSubmit(t *testing.T) {
	cfg := testConfig()
	cfg.BoardPrefetchMinutes = 5
	env := newTestEnv(t, cfg)
	ctx := context.Background()
	base := *env.engine.current().state.BoardUpdatedAt

	// 占满全部 worker
	release := make(chan struct{})
	blocker := func(context.Context) error {
		<-release
		return nil
	}
	accepted := 0
	require.Eventually(t, func() bool {
		if env.engine.background("blocker", blocker) {
			accepted++
		}
		return accepted == backgroundWorkers
	}, time.Second, time.Millisecond)
	assert.False(t, env.engine.background("blocker", blocker))

	env.clock.Advance(56 * time.Minute)
	_, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)

	env.engine.prefetchMu.Lock()
	prefetching := env.engine.prefetching
	env.engine.prefetchMu.Unlock()
	assert.False(t, prefetching)
	assert.False(t, env.engine.hasPrefetched(base))

	close(release)
	env.engine.Wait()

	_, err = env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	env.engine.Wait()
	assert.True(t, env.engine.hasPrefetched(base))
}

func TestBoardSharedStore(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// 第二个实例共享同一存储，快照停留在旧看板
	other := NewEngine(gachaconfig.NewStatic(env.cfg), env.store, env.catalog, logger.NewNoop(),
		WithRand(rand.New(rand.NewSource(99))),
		WithClock(env.clock.Now),
	)
	t.Cleanup(func() { _ = other.Close() })
	require.NoError(t, other.Bootstrap(ctx))
	other.Wait()

	env.clock.Advance(61 * time.Minute)
	board, err := env.engine.EnsureBoard(ctx, false)
	require.NoError(t, err)
	refreshedAt := *env.engine.current().state.BoardUpdatedAt

	env.clock.Advance(time.Second)
	adopted, err := other.EnsureBoard(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, idsOf(board), idsOf(adopted))

	persisted, err := env.store.GetGachaState(ctx)
	require.NoError(t, err)
	require.NotNil(t, persisted.BoardUpdatedAt)
	assert.True(t, refreshedAt.Equal(*persisted.BoardUpdatedAt))
	assert.Equal(t, idsOf(board), persisted.BoardCharacterIDs)

	// 强制刷新仍然覆盖
	forced, err := other.EnsureBoard(ctx, true)
	require.NoError(t, err)
	persisted, err = env.store.GetGachaState(ctx)
	require.NoError(t, err)
	assert.True(t, persisted.BoardUpdatedAt.After(refreshedAt))
	assert.Equal(t, idsOf(forced), persisted.BoardCharacterIDs)
}
