package model

import (
	"sort"
	"strings"
	"time"
)

// TradeStatus 交易单状态
type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeAccepted  TradeStatus = "accepted"
	TradeRejected  TradeStatus = "rejected"
	TradeCancelled TradeStatus = "cancelled"
	TradeExpired   TradeStatus = "expired"
)

// ParseTradeStatus 未知状态视为 pending
func ParseTradeStatus(s string) TradeStatus {
	switch st := TradeStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case TradePending, TradeAccepted, TradeRejected, TradeCancelled, TradeExpired:
		return st
	default:
		return TradePending
	}
}

// Terminal 已结束的交易不可再处理
func (s TradeStatus) Terminal() bool {
	return s != TradePending
}

// TradeOffer 一对一交换报价
type TradeOffer struct {
	ID                   string      `json:"id"`
	ProposerID           string      `json:"proposerId"`
	ProposerUsername     string      `json:"proposerUsername,omitempty"`
	ProposerDisplayName  string      `json:"proposerDisplayName,omitempty"`
	TargetID             string      `json:"targetId"`
	TargetUsername       string      `json:"targetUsername,omitempty"`
	TargetDisplayName    string      `json:"targetDisplayName,omitempty"`
	OfferedCharacterID   string      `json:"offeredCharacterId"`
	RequestedCharacterID string      `json:"requestedCharacterId"`
	OfferedCharacter     Character   `json:"offeredCharacter"`
	RequestedCharacter   Character   `json:"requestedCharacter"`
	Status               TradeStatus `json:"status"`
	CreatedAt            time.Time   `json:"createdAt"`
	ExpiresAt            *time.Time  `json:"expiresAt"`
	ResolvedAt           *time.Time  `json:"resolvedAt"`
	ResolvedBy           string      `json:"resolvedBy,omitempty"`
}

// Valid 必填字段齐全
func (t *TradeOffer) Valid() bool {
	return strings.TrimSpace(t.ID) != "" &&
		strings.TrimSpace(t.ProposerID) != "" &&
		strings.TrimSpace(t.TargetID) != "" &&
		strings.TrimSpace(t.OfferedCharacterID) != "" &&
		strings.TrimSpace(t.RequestedCharacterID) != ""
}

// Normalize 修剪字段并补齐快照，无效报价返回 false
func (t TradeOffer) Normalize() (TradeOffer, bool) {
	if !t.Valid() {
		return TradeOffer{}, false
	}
	out := t
	out.ID = strings.TrimSpace(t.ID)
	out.ProposerID = strings.TrimSpace(t.ProposerID)
	out.TargetID = strings.TrimSpace(t.TargetID)
	out.OfferedCharacterID = strings.TrimSpace(t.OfferedCharacterID)
	out.RequestedCharacterID = strings.TrimSpace(t.RequestedCharacterID)
	out.Status = ParseTradeStatus(string(t.Status))

	proposer := UserMeta{Username: t.ProposerUsername, DisplayName: t.ProposerDisplayName}.Normalize()
	out.ProposerUsername, out.ProposerDisplayName = proposer.Username, proposer.DisplayName
	target := UserMeta{Username: t.TargetUsername, DisplayName: t.TargetDisplayName}.Normalize()
	out.TargetUsername, out.TargetDisplayName = target.Username, target.DisplayName

	out.OfferedCharacter = Merge(&t.OfferedCharacter, &Character{ID: out.OfferedCharacterID})
	out.RequestedCharacter = Merge(&t.RequestedCharacter, &Character{ID: out.RequestedCharacterID})
	out.ExpiresAt = cloneTime(t.ExpiresAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	return out, true
}

// Clone 深拷贝
func (t TradeOffer) Clone() TradeOffer {
	out := t
	out.OfferedCharacter = t.OfferedCharacter.Clone()
	out.RequestedCharacter = t.RequestedCharacter.Clone()
	out.ExpiresAt = cloneTime(t.ExpiresAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	return out
}

// SameTerms 同一提议方、目标方与角色组合
func (t *TradeOffer) SameTerms(proposerID, targetID, offeredID, requestedID string) bool {
	return t.ProposerID == proposerID &&
		t.TargetID == targetID &&
		t.OfferedCharacterID == offeredID &&
		t.RequestedCharacterID == requestedID
}

// Involves 是否与该用户相关
func (t *TradeOffer) Involves(userID string) bool {
	return t.ProposerID == userID || t.TargetID == userID
}

// ResolvedOrCreated 排序用的结束时间，未结束时取创建时间
func (t *TradeOffer) ResolvedOrCreated() time.Time {
	if t.ResolvedAt != nil {
		return *t.ResolvedAt
	}
	return t.CreatedAt
}

// SortTradeOffers 创建时间倒序，相同时按 id
func SortTradeOffers(offers []TradeOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if !offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].CreatedAt.After(offers[j].CreatedAt)
		}
		return offers[i].ID < offers[j].ID
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
