package model

// ContractRule 合成规则：cost 份 From 稀有度换 1 个 To 稀有度
type ContractRule struct {
	From Rarity `json:"from"`
	To   Rarity `json:"to"`
	Cost int    `json:"cost"`
}

// MaterialSelection 手动指定的合成材料
type MaterialSelection struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// ConsumedStack 合成消耗明细
type ConsumedStack struct {
	ID        string    `json:"id"`
	Count     int       `json:"count"`
	Character Character `json:"character"`
}
