package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRarity(t *testing.T) {
	r, ok := ParseRarity("  Mythic ")
	require.True(t, ok)
	assert.Equal(t, RarityMythic, r)

	_, ok = ParseRarity("ultra")
	assert.False(t, ok)

	assert.Equal(t, 0, RarityMythic.OrderIndex())
	assert.Equal(t, 4, RarityCommon.OrderIndex())
	assert.Greater(t, RarityMythic.Score(), RarityLegendary.Score())
	assert.Equal(t, 2.5, RarityLegendary.BaseWeight())

	next, ok := RarityEpic.Next()
	require.True(t, ok)
	assert.Equal(t, RarityLegendary, next)
	_, ok = RarityMythic.Next()
	assert.False(t, ok)
}

func TestCharacterClone(t *testing.T) {
	c := Character{
		ID:        " anilist_1 ",
		ImageURL:  "a.png",
		ImageURLs: []string{"b.png", "a.png", ""},
		SourceIDs: map[string]int64{"anilistId": 1},
	}
	got := c.Clone()

	assert.Equal(t, "anilist_1", got.ID)
	assert.Equal(t, DefaultCharacterName, got.Name)
	assert.Equal(t, DefaultAnimeName, got.Anime)
	assert.Equal(t, []string{"a.png", "b.png"}, got.ImageURLs)
	assert.Equal(t, "a.png", got.ImageURL)
	assert.Equal(t, RarityCommon, got.Rarity)
	assert.Equal(t, 1.0, got.DropWeight)
	assert.Equal(t, DefaultSource, got.Source)

	got.SourceIDs["anilistId"] = 2
	assert.Equal(t, int64(1), c.SourceIDs["anilistId"])
}

func TestMerge(t *testing.T) {
	primary := &Character{
		ID:             "anilist_1",
		Name:           "Rem",
		ImageURLs:      []string{"p.png"},
		Favorites:      10,
		PopularityRank: 5,
		Rarity:         RarityEpic,
		Sources:        []string{"anilist"},
		SourceIDs:      map[string]int64{"anilistId": 1},
	}
	fallback := &Character{
		ID:             "anilist_1",
		Name:           "Old Rem",
		Anime:          "Re:Zero",
		ImageURLs:      []string{"f.png", "p.png"},
		Favorites:      50,
		PopularityRank: 2,
		Rarity:         RarityRare,
		Sources:        []string{"jikan"},
		SourceIDs:      map[string]int64{"anilistId": 9, "malId": 3},
	}

	got := Merge(primary, fallback)
	assert.Equal(t, "Rem", got.Name)
	assert.Equal(t, "Re:Zero", got.Anime, "placeholder never hides a real fallback value")
	assert.Equal(t, []string{"p.png", "f.png"}, got.ImageURLs)
	assert.Equal(t, int64(50), got.Favorites)
	assert.Equal(t, int64(5), got.PopularityRank)
	assert.Equal(t, RarityEpic, got.Rarity)
	assert.Equal(t, []string{"anilist", "jikan"}, got.Sources)
	assert.Equal(t, map[string]int64{"anilistId": 1, "malId": 3}, got.SourceIDs)

	assert.Equal(t, "Rem", Merge(nil, primary).Name)
	assert.Equal(t, "Rem", Merge(primary, nil).Name)
}

func TestInventoryEntryLegacyDecode(t *testing.T) {
	raw := `{
		"username": "alice",
		"pityCounter": 12,
		"rollsLeft": 3.9,
		"inventory": {
			"anilist_1": 3,
			"anilist_2": {"count": 2, "character": {"id": "anilist_2", "name": "Rem"}},
			"anilist_3": {"character": {"id": "anilist_3"}},
			"anilist_4": "junk"
		}
	}`

	var u User
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	assert.False(t, u.HasMythicPity())
	assert.Equal(t, 12, u.PityCounter)
	assert.Equal(t, 3, u.RollsLeft)

	require.Len(t, u.Inventory, 4)
	assert.Equal(t, 3, u.Inventory["anilist_1"].Count)
	assert.True(t, u.Inventory["anilist_1"].Legacy())
	assert.Equal(t, 2, u.Inventory["anilist_2"].Count)
	assert.False(t, u.Inventory["anilist_2"].Legacy())
	assert.True(t, u.Inventory["anilist_3"].Legacy())
	assert.Equal(t, 0, u.Inventory["anilist_4"].Count)

	unique, total := u.Inventory.Summary()
	assert.Equal(t, 2, unique)
	assert.Equal(t, 5, total)
}

func TestUserClone(t *testing.T) {
	now := time.Now()
	u := &User{
		Username:   "alice",
		Inventory:  Inventory{"a": {Count: 1, Character: &Character{ID: "a"}}},
		LastRollAt: &now,
	}
	cp := u.Clone()
	cp.Inventory["a"].Count = 5
	cp.Inventory["b"] = &InventoryEntry{Count: 1}
	*cp.LastRollAt = now.Add(time.Hour)

	assert.Equal(t, 1, u.Inventory["a"].Count)
	assert.Len(t, u.Inventory, 1)
	assert.True(t, u.LastRollAt.Equal(now))
}

func TestUserMetaNormalize(t *testing.T) {
	m := UserMeta{Username: "  alice "}.Normalize()
	assert.Equal(t, "alice", m.Username)
	assert.Equal(t, "alice", m.DisplayName)

	m = UserMeta{Username: "alice", DisplayName: " Alice A "}.Normalize()
	assert.Equal(t, "Alice A", m.DisplayName)
}

func TestTradeOfferNormalize(t *testing.T) {
	_, ok := TradeOffer{ID: "tr_1", ProposerID: "a"}.Normalize()
	assert.False(t, ok)

	offer, ok := TradeOffer{
		ID:                   "tr_1",
		ProposerID:           " a ",
		ProposerUsername:     "alice",
		TargetID:             "b",
		OfferedCharacterID:   "x",
		RequestedCharacterID: "y",
		Status:               "WEIRD",
	}.Normalize()
	require.True(t, ok)
	assert.Equal(t, "a", offer.ProposerID)
	assert.Equal(t, "alice", offer.ProposerDisplayName)
	assert.Equal(t, TradePending, offer.Status)
	assert.Equal(t, "x", offer.OfferedCharacter.ID)
	assert.Equal(t, "y", offer.RequestedCharacter.ID)
}

func TestSortTradeOffers(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	offers := []TradeOffer{
		{ID: "b", CreatedAt: base},
		{ID: "c", CreatedAt: base.Add(time.Minute)},
		{ID: "a", CreatedAt: base},
	}
	SortTradeOffers(offers)
	assert.Equal(t, []string{"c", "a", "b"}, []string{offers[0].ID, offers[1].ID, offers[2].ID})
}

func TestGachaError(t *testing.T) {
	err := NewError(KindInsufficientResource, "no rolls left", "rolls_left", 0)
	assert.ErrorIs(t, err, ErrInsufficientResource)
	assert.Equal(t, KindInsufficientResource, KindOf(err))
	assert.Equal(t, 0, err.Details["rolls_left"])

	var wrapped error = Internal(errors.New("redis down"), "failed to save user")
	assert.ErrorIs(t, wrapped, ErrInternal)
	assert.Contains(t, wrapped.Error(), "redis down")

	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Lelouch Lamperouge", "lelouch lamperouge"},
		{"  Réné---Café!! ", "rene cafe"},
		{"Re:Zero", "re zero"},
		{"日本語", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeText(tt.in))
		})
	}

	assert.False(t, HasKnownAnime(DefaultAnimeName))
	assert.False(t, HasKnownAnime("  "))
	assert.True(t, HasKnownAnime("Re:Zero"))
	assert.True(t, TextMatches("Rem", "rem re zero"))
	assert.False(t, TextMatches("Rem", ""))
}
