package model

import "time"

// GachaState 全局共享状态：卡池、目录、神话目录与交易单
type GachaState struct {
	BoardCharacters        []Character  `json:"boardCharacters"`
	BoardCharacterIDs      []string     `json:"boardCharacterIds"`
	BoardUpdatedAt         *time.Time   `json:"boardUpdatedAt"`
	PoolCharacters         []Character  `json:"poolCharacters,omitempty"`
	PoolUpdatedAt          *time.Time   `json:"poolUpdatedAt"`
	MythicCharacters       []Character  `json:"mythicCharacters"`
	MythicCatalogUpdatedAt *time.Time   `json:"mythicCatalogUpdatedAt"`
	TradeOffers            []TradeOffer `json:"tradeOffers"`
}

// NewGachaState 空状态
func NewGachaState() *GachaState {
	return &GachaState{
		BoardCharacters:   []Character{},
		BoardCharacterIDs: []string{},
		MythicCharacters:  []Character{},
		TradeOffers:       []TradeOffer{},
	}
}

// Clone 深拷贝
func (s *GachaState) Clone() *GachaState {
	if s == nil {
		return NewGachaState()
	}
	out := &GachaState{
		BoardCharacters:        CloneCharacters(s.BoardCharacters),
		BoardCharacterIDs:      append([]string{}, s.BoardCharacterIDs...),
		BoardUpdatedAt:         cloneTime(s.BoardUpdatedAt),
		PoolCharacters:         CloneCharacters(s.PoolCharacters),
		PoolUpdatedAt:          cloneTime(s.PoolUpdatedAt),
		MythicCharacters:       CloneCharacters(s.MythicCharacters),
		MythicCatalogUpdatedAt: cloneTime(s.MythicCatalogUpdatedAt),
		TradeOffers:            make([]TradeOffer, 0, len(s.TradeOffers)),
	}
	for _, offer := range s.TradeOffers {
		out.TradeOffers = append(out.TradeOffers, offer.Clone())
	}
	return out
}

// Normalize 清洗加载的状态：快照补默认值，无效交易单丢弃并排序
func (s *GachaState) Normalize() *GachaState {
	out := s.Clone()
	offers := make([]TradeOffer, 0, len(out.TradeOffers))
	for _, offer := range out.TradeOffers {
		if normalized, ok := offer.Normalize(); ok {
			offers = append(offers, normalized)
		}
	}
	SortTradeOffers(offers)
	out.TradeOffers = offers
	return out
}

// UserRecord GetAllUsers 的返回项
type UserRecord struct {
	UserID string
	User   *User
}
