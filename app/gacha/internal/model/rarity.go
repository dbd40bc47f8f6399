package model

import "strings"

// Rarity 角色稀有度
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// RarityOrder 从高到低
var RarityOrder = []Rarity{RarityMythic, RarityLegendary, RarityEpic, RarityRare, RarityCommon}

// ContractChain 合成链，从低到高
var ContractChain = []Rarity{RarityCommon, RarityRare, RarityEpic, RarityLegendary, RarityMythic}

var baseWeights = map[Rarity]float64{
	RarityCommon:    60,
	RarityRare:      27,
	RarityEpic:      10,
	RarityLegendary: 2.5,
	RarityMythic:    0.5,
}

// ParseRarity 忽略大小写与首尾空白
func ParseRarity(s string) (Rarity, bool) {
	r := Rarity(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

func (r Rarity) Valid() bool {
	_, ok := baseWeights[r]
	return ok
}

func (r Rarity) IsMythic() bool {
	return r == RarityMythic
}

// BaseWeight 基础掉落权重，未知稀有度返回 1
func (r Rarity) BaseWeight() float64 {
	if w, ok := baseWeights[r]; ok {
		return w
	}
	return 1
}

// OrderIndex 在 RarityOrder 中的下标，mythic 为 0，未知稀有度排在最后
func (r Rarity) OrderIndex() int {
	for i, v := range RarityOrder {
		if v == r {
			return i
		}
	}
	return len(RarityOrder)
}

// Score 稀有度分值，mythic 最高
func (r Rarity) Score() int {
	return len(RarityOrder) - r.OrderIndex()
}

// Next 合成目标稀有度，mythic 没有下一级
func (r Rarity) Next() (Rarity, bool) {
	for i := 0; i < len(ContractChain)-1; i++ {
		if ContractChain[i] == r {
			return ContractChain[i+1], true
		}
	}
	return "", false
}
