package model

import (
	"math"
	"sort"
	"strings"
)

var (
	rankThresholds = []struct {
		rarity Rarity
		rank   int64
	}{
		{RarityMythic, 200},
		{RarityLegendary, 1000},
		{RarityEpic, 2500},
		{RarityRare, 6000},
	}

	favoritesThresholds = []struct {
		rarity    Rarity
		favorites int64
	}{
		{RarityMythic, 75000},
		{RarityLegendary, 25000},
		{RarityEpic, 7000},
		{RarityRare, 1500},
	}
)

// ClassifyRarity 有排名时按排名划分，否则按收藏数划分
func ClassifyRarity(c Character) Rarity {
	if rank := max(0, c.PopularityRank); rank > 0 {
		for _, t := range rankThresholds {
			if rank <= t.rank {
				return t.rarity
			}
		}
		return RarityCommon
	}
	favorites := max(0, c.Favorites)
	for _, t := range favoritesThresholds {
		if favorites >= t.favorites {
			return t.rarity
		}
	}
	return RarityCommon
}

// Round4 保留 4 位小数
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// NormalizeCharacters 按 id 去重，重复时以后出现的条目为 primary 合并
func NormalizeCharacters(lists ...[]Character) []Character {
	index := make(map[string]int)
	out := make([]Character, 0)
	for _, list := range lists {
		for i := range list {
			snapshot := list[i].Clone()
			if snapshot.ID == "" {
				continue
			}
			if pos, ok := index[snapshot.ID]; ok {
				out[pos] = Merge(&snapshot, &out[pos])
				continue
			}
			index[snapshot.ID] = len(out)
			out = append(out, snapshot)
		}
	}
	return out
}

// AssignRarityAndWeight 排序后写入稀有度与基础权重，并清除精选标记
func AssignRarityAndWeight(list []Character) []Character {
	out := CloneCharacters(list)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.PopularityRank > 0 && b.PopularityRank > 0 && a.PopularityRank != b.PopularityRank {
			return a.PopularityRank < b.PopularityRank
		}
		if a.Favorites != b.Favorites {
			return a.Favorites > b.Favorites
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
	for i := range out {
		out[i].Rarity = ClassifyRarity(out[i])
		out[i].DropWeight = max(MinDropWeight, Round4(out[i].Rarity.BaseWeight()))
		out[i].Featured = false
		out[i].FeaturedRarity = ""
	}
	return out
}

// SortForPool 收藏数降序，其次排名升序（0 排最后），最后按名称
func SortForPool(list []Character) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Favorites != b.Favorites {
			return a.Favorites > b.Favorites
		}
		ra, rb := rankOrMax(a.PopularityRank), rankOrMax(b.PopularityRank)
		if ra != rb {
			return ra < rb
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

// SortByRanking 有排名者在前且升序，其余按收藏数降序、名称升序
func SortByRanking(list []Character) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		ra, rb := max(0, a.PopularityRank), max(0, b.PopularityRank)
		switch {
		case ra > 0 && rb > 0 && ra != rb:
			return ra < rb
		case ra > 0 && rb <= 0:
			return true
		case rb > 0 && ra <= 0:
			return false
		}
		if a.Favorites != b.Favorites {
			return a.Favorites > b.Favorites
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

// SortBoard 看板顺序：稀有度从高到低，权重升序，收藏数降序，名称升序
func SortBoard(list []Character) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if d := a.Rarity.OrderIndex() - b.Rarity.OrderIndex(); d != 0 {
			return d < 0
		}
		if a.DropWeight != b.DropWeight {
			return a.DropWeight < b.DropWeight
		}
		if a.Favorites != b.Favorites {
			return a.Favorites > b.Favorites
		}
		return strings.Compare(a.Name, b.Name) < 0
	})
}

func rankOrMax(rank int64) int64 {
	if rank <= 0 {
		return math.MaxInt64
	}
	return rank
}
