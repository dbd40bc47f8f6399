package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

func TestGetProfileCreatesUser(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	profile, err := env.engine.GetProfile(ctx, "alice", model.UserMeta{Username: " alice "})
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.UserID)
	assert.Equal(t, 8, profile.User.RollsLeft)
	assert.Equal(t, env.today(), profile.User.LastReset)
	assert.Equal(t, "alice", profile.User.DisplayName)
	assert.Zero(t, profile.UniqueCount)
	assert.Zero(t, profile.PityCounter)
	assert.Equal(t, 999, profile.Pity.HardTriggerAt)

	saved := env.loadUser(t, "alice")
	assert.Equal(t, "alice", saved.Username)
	assert.True(t, saved.HasMythicPity())

	_, err = env.engine.GetProfile(ctx, "", model.UserMeta{})
	requireKind(t, err, model.KindValidation)
}

func TestSyncUserMigratesLegacyRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.store.PutRawUser("alice", []byte(`{
		"username": "alice",
		"lastReset": "2026-02-28",
		"rollsLeft": -3,
		"totalRolls": 12.7,
		"pityCounter": 1200,
		"inventory": {
			"anilist_31": 3,
			"anilist_2": {"count": 0},
			"ghost": {"count": 2}
		}
	}`))

	view, err := env.engine.GetInventory(ctx, "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, 8, view.User.RollsLeft)
	assert.Equal(t, 12, view.User.TotalRolls)
	assert.Equal(t, 999, view.User.MythicPityCounter)
	assert.Equal(t, 999, view.User.PityCounter)

	require.Len(t, view.Entries, 2)
	assert.Equal(t, "anilist_31", view.Entries[0].Character.ID)
	assert.Equal(t, 3, view.Entries[0].Count)
	assert.Equal(t, "Hero 31", view.Entries[0].Character.Name)
	assert.Equal(t, model.RarityCommon, view.Entries[0].Character.Rarity)
	assert.Equal(t, "ghost", view.Entries[1].Character.ID)

	saved := env.loadUser(t, "alice")
	assert.Equal(t, env.today(), saved.LastReset)
	assert.Equal(t, 999, saved.MythicPityCounter)
	assert.NotContains(t, saved.Inventory, "anilist_2")
	require.Contains(t, saved.Inventory, "anilist_31")
	require.NotNil(t, saved.Inventory["anilist_31"].Character)
	assert.False(t, saved.Inventory["anilist_31"].Legacy())
}

func TestDailyReset(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.seedUser(t, "alice", 1)

	profile, err := env.engine.GetProfile(ctx, "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, profile.User.RollsLeft)

	env.clock.Advance(12 * time.Hour)
	profile, err = env.engine.GetProfile(ctx, "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, 8, profile.User.RollsLeft)
	assert.Equal(t, env.today(), env.loadUser(t, "alice").LastReset)
}

func TestClaimDaily(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	claim, err := env.engine.ClaimDaily(ctx, "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, 5, claim.Bonus)
	assert.Equal(t, 13, claim.User.RollsLeft)
	assert.True(t, claim.NextClaimAt.Equal(env.clock.Now().Add(10*time.Minute)))

	env.clock.Advance(4 * time.Minute)
	_, err = env.engine.ClaimDaily(ctx, "alice", model.UserMeta{})
	ge := requireKind(t, err, model.KindCooldown)
	assert.Equal(t, int64(6*time.Minute/time.Millisecond), ge.Details["ms_remaining"])
	assert.Equal(t, env.clock.Now().Add(6*time.Minute).Format(time.RFC3339), ge.Details["next_claim_at"])
	assert.Equal(t, 13, env.loadUser(t, "alice").RollsLeft)

	env.clock.Advance(6 * time.Minute)
	claim, err = env.engine.ClaimDaily(ctx, "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, 18, claim.User.RollsLeft)
}

func TestGetInventoryOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedUser(t, "alice", 8,
		held(env.poolChar(t, "anilist_13"), 1),
		held(env.poolChar(t, "anilist_32"), 3),
		held(env.poolChar(t, "anilist_31"), 3),
		held(env.poolChar(t, "anilist_2"), 3),
	)

	view, err := env.engine.GetInventory(context.Background(), "alice", model.UserMeta{})
	require.NoError(t, err)
	assert.Equal(t, []string{"anilist_2", "anilist_31", "anilist_32", "anilist_13"}, inventoryIDs(view.Entries))
}

func TestNormalizeInventory(t *testing.T) {
	index := map[string]model.Character{
		"a": {ID: "a", Name: "Alpha", Rarity: model.RarityRare, DropWeight: 27},
	}
	inv := model.Inventory{
		"b":    {Count: 1, Character: &model.Character{ID: "b", Name: "Beta"}},
		"a":    {Count: 2},
		"zero": {Count: 0, Character: &model.Character{ID: "zero"}},
		"nil":  nil,
	}

	out, entries, changed := normalizeInventory(inv, index)
	assert.True(t, changed)
	assert.Len(t, out, 2)
	assert.Equal(t, []string{"a", "b"}, inventoryIDs(entries))
	assert.Equal(t, "Alpha", entries[0].Character.Name)
	assert.Equal(t, model.RarityRare, entries[0].Character.Rarity)
	assert.Equal(t, 2, entries[0].Count)
}

func TestUpsertAndConsume(t *testing.T) {
	inv := model.Inventory{}
	upsertInventory(inv, model.Character{ID: "a", Name: "Old"}, 2)
	upsertInventory(inv, model.Character{ID: "a", Name: "New"}, 1)
	assert.Equal(t, 3, inv.CountOf("a"))
	assert.Equal(t, "New", inv["a"].Character.Name)

	snapshot, ok := consumeCopies(inv, "a", 2)
	require.True(t, ok)
	assert.Equal(t, "New", snapshot.Name)
	assert.Equal(t, 1, inv.CountOf("a"))

	_, ok = consumeCopies(inv, "a", 2)
	assert.False(t, ok)
	_, ok = consumeCopies(inv, "a", 1)
	require.True(t, ok)
	assert.NotContains(t, inv, "a")
	_, ok = consumeCopies(inv, "missing", 1)
	assert.False(t, ok)
}

func inventoryIDs(entries []model.InventoryItem) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Character.ID)
	}
	return out
}
