package model

import "strings"

const (
	DefaultCharacterName = "unknown character"
	DefaultAnimeName     = "unknown anime"
	DefaultSource        = "unknown"
	SourceFallback       = "fallback"

	// MinDropWeight 任何角色的最低掉落权重
	MinDropWeight = 0.05
)

// Character 角色快照
//
// 快照会被复制进背包和交易单，之后与目录数据独立演化，合并规则见 Merge。
type Character struct {
	ID             string           `json:"id"`
	Name           string           `json:"name"`
	Anime          string           `json:"anime"`
	ImageURL       string           `json:"imageUrl"`
	ImageURLs      []string         `json:"imageUrls"`
	Favorites      int64            `json:"favorites"`
	PopularityRank int64            `json:"popularityRank"`
	Rarity         Rarity           `json:"rarity"`
	DropWeight     float64          `json:"dropWeight"`
	Source         string           `json:"source"`
	Sources        []string         `json:"sources"`
	SourceIDs      map[string]int64 `json:"sourceIds"`
	Featured       bool             `json:"featured"`
	FeaturedRarity Rarity           `json:"featuredRarity,omitempty"`
}

// UniqueURLs 去空、去重并保持顺序
func UniqueURLs(urls ...string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

func uniqueStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Clone 深拷贝并补齐默认值
func (c Character) Clone() Character {
	out := c
	out.ID = strings.TrimSpace(c.ID)
	if strings.TrimSpace(out.Name) == "" {
		out.Name = DefaultCharacterName
	}
	if strings.TrimSpace(out.Anime) == "" {
		out.Anime = DefaultAnimeName
	}
	out.ImageURLs = UniqueURLs(append([]string{c.ImageURL}, c.ImageURLs...)...)
	out.ImageURL = ""
	if len(out.ImageURLs) > 0 {
		out.ImageURL = out.ImageURLs[0]
	}
	if !out.Rarity.Valid() {
		out.Rarity = RarityCommon
	}
	if out.DropWeight <= 0 {
		out.DropWeight = 1
	}
	if strings.TrimSpace(out.Source) == "" {
		out.Source = DefaultSource
	}
	out.Sources = uniqueStrings(c.Sources)
	out.SourceIDs = make(map[string]int64, len(c.SourceIDs))
	for k, v := range c.SourceIDs {
		out.SourceIDs[k] = v
	}
	if out.FeaturedRarity != "" && !out.FeaturedRarity.Valid() {
		out.FeaturedRarity = ""
	}
	return out
}

func isPlaceholder(value, placeholder string) bool {
	v := strings.TrimSpace(value)
	return v == "" || v == placeholder
}

// Merge primary 的标量字段优先；图片与来源取并集，收藏数与排名取较大值
//
// 任一方为 nil 时退化为另一方的 Clone；占位名称不会覆盖另一方的真实值。
func Merge(primary, fallback *Character) Character {
	switch {
	case primary == nil && fallback == nil:
		return Character{}.Clone()
	case primary == nil:
		return fallback.Clone()
	case fallback == nil:
		return primary.Clone()
	}

	out := Character{
		ID:             pickString(primary.ID, fallback.ID, ""),
		Name:           pickString(primary.Name, fallback.Name, DefaultCharacterName),
		Anime:          pickString(primary.Anime, fallback.Anime, DefaultAnimeName),
		Source:         pickString(primary.Source, fallback.Source, DefaultSource),
		Favorites:      max(primary.Favorites, fallback.Favorites),
		PopularityRank: max(primary.PopularityRank, fallback.PopularityRank),
		Featured:       primary.Featured || fallback.Featured,
		Sources:        uniqueStrings(primary.Sources, fallback.Sources),
	}

	out.ImageURLs = UniqueURLs(append(append(append(append([]string{}, primary.ImageURLs...), primary.ImageURL), fallback.ImageURLs...), fallback.ImageURL)...)
	if len(out.ImageURLs) > 0 {
		out.ImageURL = out.ImageURLs[0]
	}

	switch {
	case primary.Rarity.Valid():
		out.Rarity = primary.Rarity
	case fallback.Rarity.Valid():
		out.Rarity = fallback.Rarity
	default:
		out.Rarity = RarityCommon
	}

	switch {
	case primary.DropWeight > 0:
		out.DropWeight = primary.DropWeight
	case fallback.DropWeight > 0:
		out.DropWeight = fallback.DropWeight
	default:
		out.DropWeight = 1
	}

	if primary.FeaturedRarity.Valid() {
		out.FeaturedRarity = primary.FeaturedRarity
	} else if fallback.FeaturedRarity.Valid() {
		out.FeaturedRarity = fallback.FeaturedRarity
	}

	out.SourceIDs = make(map[string]int64, len(primary.SourceIDs)+len(fallback.SourceIDs))
	for k, v := range fallback.SourceIDs {
		out.SourceIDs[k] = v
	}
	for k, v := range primary.SourceIDs {
		out.SourceIDs[k] = v
	}
	return out
}

func pickString(primary, fallback, placeholder string) string {
	if !isPlaceholder(primary, placeholder) {
		return strings.TrimSpace(primary)
	}
	if !isPlaceholder(fallback, placeholder) {
		return strings.TrimSpace(fallback)
	}
	if placeholder == "" {
		return ""
	}
	return placeholder
}

// CloneCharacters 逐个 Clone，丢弃没有 id 的条目
func CloneCharacters(list []Character) []Character {
	out := make([]Character, 0, len(list))
	for _, c := range list {
		cloned := c.Clone()
		if cloned.ID == "" {
			continue
		}
		out = append(out, cloned)
	}
	return out
}

// GalleryImage 图库图片
type GalleryImage struct {
	URL    string `json:"url"`
	Source string `json:"source"`
}
