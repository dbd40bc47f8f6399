package provider

import (
	"fmt"
	"net/url"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

var fallbackSeeds = []struct {
	name, anime, label string
	favorites          int64
}{
	{"Saber", "Fate/stay night", "Saber", 120000},
	{"Lelouch Lamperouge", "Code Geass", "Lelouch", 100000},
	{"Rem", "Re:Zero", "Rem", 90000},
	{"Mikasa Ackerman", "Shingeki no Kyojin", "Mikasa", 80000},
	{"Gojo Satoru", "Jujutsu Kaisen", "Gojo", 70000},
	{"Rias Gremory", "High School DxD", "Rias", 60000},
	{"Mai Sakurajima", "Seishun Buta Yarou", "Mai", 50000},
	{"Zero Two", "Darling in the Franxx", "Zero Two", 40000},
	{"Power", "Chainsaw Man", "Power", 30000},
	{"Violet Evergarden", "Violet Evergarden", "Violet", 20000},
}

// FallbackCharacters 外部目录全部不可用时的内置角色
func FallbackCharacters() []model.Character {
	out := make([]model.Character, 0, len(fallbackSeeds))
	for i, seed := range fallbackSeeds {
		image := "https://placehold.co/600x900/png?text=" + url.QueryEscape(seed.label)
		out = append(out, model.Character{
			ID:             fmt.Sprintf("fallback_%d", i+1),
			Name:           seed.name,
			Anime:          seed.anime,
			ImageURL:       image,
			ImageURLs:      []string{image},
			Favorites:      seed.favorites,
			PopularityRank: int64(i + 1),
			Source:         model.SourceFallback,
			Sources:        []string{model.SourceFallback},
		}.Clone())
	}
	return out
}

// IsFallbackOnly 列表非空且全部来自内置角色
func IsFallbackOnly(list []model.Character) bool {
	if len(list) == 0 {
		return false
	}
	for _, c := range list {
		if c.Source != model.SourceFallback {
			return false
		}
	}
	return true
}
