package service

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

func TestFindInventoryEntry(t *testing.T) {
	entries := []model.InventoryItem{
		{Count: 1, Character: model.Character{ID: "anilist_1", Name: "Naruto Uzumaki", Anime: "Naruto", PopularityRank: 10}},
		{Count: 2, Character: model.Character{ID: "anilist_2", Name: "Sasuke Uchiha", Anime: "Naruto", PopularityRank: 20}},
		{Count: 1, Character: model.Character{ID: "anilist_3", Name: "Monkey D. Luffy", Anime: "One Piece", PopularityRank: 5}},
		{Count: 1, Character: model.Character{ID: "anilist_4", Name: "Naruto", Anime: "Boruto", PopularityRank: 500}},
		{Count: 0, Character: model.Character{ID: "anilist_5", Name: "Zoro", Anime: "One Piece"}},
		{Count: 1, Character: model.Character{ID: "anilist_6", Name: "Itachi Uchiha", Anime: "Naruto", PopularityRank: 15}},
	}

	tests := []struct {
		name   string
		query  string
		wantID string
	}{
		{"exact id ignores case", " ANILIST_2 ", "anilist_2"},
		{"id equal after normalization", "anilist-6", "anilist_6"},
		{"partial id ignored", "anilist", ""},
		{"name prefix beats exact name with weaker anime", "naruto", "anilist_1"},
		{"name with anime", "sasuke de naruto", "anilist_2"},
		{"name from anime", "luffy from one piece", "anilist_3"},
		{"anime only", "one piece", "anilist_3"},
		{"tie broken by rank", "uchiha", "anilist_6"},
		{"zero count ignored", "zoro", ""},
		{"no match", "goku", ""},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findInventoryEntry(entries, tt.query)
			if tt.wantID == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.Character.ID)
		})
	}
}

func TestBestCharacterMatch(t *testing.T) {
	chars := []model.Character{
		{ID: "anilist_10", Name: "Ram", Anime: "Re:Zero", Favorites: 900},
		{ID: "anilist_11", Name: "Rem", Anime: "Re:Zero", Favorites: 100},
		{ID: "anilist_12", Name: "Remilia Scarlet", Anime: "Touhou", Favorites: 500},
	}

	tests := []struct {
		query  string
		wantID string
	}{
		{"rem", "anilist_11"},
		{"re", "anilist_11"},
		{"scarlet", "anilist_12"},
		{"zero", "anilist_10"},
		{"anilist_12", "anilist_12"},
		{"nothing", ""},
		{"", ""},
	}
	for _, tt := range tests {
		got, ok := bestCharacterMatch(tt.query, chars)
		if tt.wantID == "" {
			assert.False(t, ok, tt.query)
			continue
		}
		require.True(t, ok, tt.query)
		assert.Equal(t, tt.wantID, got.ID, tt.query)
	}
}

func TestFindCharacter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	board := env.engine.current().state.BoardCharacters

	t.Run("board index", func(t *testing.T) {
		c, err := env.engine.FindCharacter(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, board[0].ID, c.ID)

		for _, q := range []string{"0", "11"} {
			_, err := env.engine.FindCharacter(ctx, q)
			requireKind(t, err, model.KindNotFound)
		}
	})

	t.Run("board name", func(t *testing.T) {
		last := board[len(board)-1]
		c, err := env.engine.FindCharacter(ctx, last.Name)
		require.NoError(t, err)
		assert.Equal(t, last.ID, c.ID)
	})

	t.Run("catalog search", func(t *testing.T) {
		env.catalog.EXPECT().Search(gomock.Any(), "Frieren", characterSearchLimit).Return([]model.Character{
			{ID: "anilist_901", Name: "Fern", Anime: "Sousou no Frieren"},
			{ID: "anilist_900", Name: "Frieren", Anime: "Sousou no Frieren"},
		}, nil)
		c, err := env.engine.FindCharacter(ctx, "Frieren")
		require.NoError(t, err)
		assert.Equal(t, "anilist_900", c.ID)
	})

	t.Run("first search result without score", func(t *testing.T) {
		env.catalog.EXPECT().Search(gomock.Any(), "xyz", characterSearchLimit).Return([]model.Character{
			{ID: "anilist_902", Name: "Abc"},
		}, nil)
		c, err := env.engine.FindCharacter(ctx, "xyz")
		require.NoError(t, err)
		assert.Equal(t, "anilist_902", c.ID)
	})

	t.Run("search failure", func(t *testing.T) {
		env.catalog.EXPECT().Search(gomock.Any(), "nobody", characterSearchLimit).Return(nil, errors.New("upstream down"))
		_, err := env.engine.FindCharacter(ctx, "nobody")
		requireKind(t, err, model.KindNotFound)
	})

	_, err := env.engine.FindCharacter(ctx, " ")
	requireKind(t, err, model.KindValidation)
}

func TestGetCharacterDetails(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	first := env.engine.current().state.BoardCharacters[0]

	images := []model.GalleryImage{{URL: "https://img/1.png", Source: "anilist"}}
	env.catalog.EXPECT().FetchGallery(gomock.Any(), gomock.Any(), galleryLimit).Return(images, nil)
	details, err := env.engine.GetCharacterDetails(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, details.Character.ID)
	assert.Equal(t, images, details.Images)

	env.catalog.EXPECT().FetchGallery(gomock.Any(), gomock.Any(), galleryLimit).Return(nil, errors.New("timeout"))
	details, err = env.engine.GetCharacterDetails(ctx, "1")
	require.NoError(t, err)
	assert.NotNil(t, details.Images)
	assert.Empty(t, details.Images)
}

func TestFindOwnersByCharacter(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	six, seven := env.poolChar(t, "anilist_6"), env.poolChar(t, "anilist_7")
	env.seedUser(t, "alice", 8, held(six, 3))
	env.seedUser(t, "dave", 8, held(six, 5), held(seven, 1))
	env.seedUser(t, "bob", 8, held(six, 5))
	env.seedUser(t, "carol", 8, held(seven, 1))
	env.seedUser(t, "erin", 8)

	result, err := env.engine.FindOwnersByCharacter(ctx, "Hero 6", 0)
	require.NoError(t, err)
	require.NotNil(t, result.Character)
	assert.Equal(t, "anilist_6", result.Character.ID)
	assert.Equal(t, 3, result.TotalOwners)
	owners := make([]string, 0, len(result.Owners))
	for _, o := range result.Owners {
		owners = append(owners, o.UserID)
	}
	assert.Equal(t, []string{"bob", "dave", "alice"}, owners)
	assert.Equal(t, 5, result.Owners[0].Count)

	result, err = env.engine.FindOwnersByCharacter(ctx, "ANILIST_7", 1)
	require.NoError(t, err)
	assert.Equal(t, "anilist_7", result.Character.ID)
	assert.Equal(t, 2, result.TotalOwners)
	assert.Len(t, result.Owners, 1)

	result, err = env.engine.FindOwnersByCharacter(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Nil(t, result.Character)
	assert.Empty(t, result.Owners)
	assert.Zero(t, result.TotalOwners)

	_, err = env.engine.FindOwnersByCharacter(ctx, "", 10)
	requireKind(t, err, model.KindValidation)
}
