package service

import (
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// RollDraw 单次抽取
type RollDraw struct {
	Character            model.Character `json:"character"`
	HardPityTriggered    bool            `json:"hardPityTriggered"`
	SoftPityActive       bool            `json:"softPityActive"`
	SoftPityBonusPercent float64         `json:"softPityBonusPercent"`
	PityBefore           int             `json:"pityBefore"`
	PityAfter            int             `json:"pityAfter"`
}

// RollResult 多连抽结果
type RollResult struct {
	User               *model.User           `json:"user"`
	Requested          int                   `json:"requested"`
	Executed           int                   `json:"executed"`
	Draws              []RollDraw            `json:"draws"`
	HardTriggeredCount int                   `json:"hardTriggeredCount"`
	SoftActiveCount    int                   `json:"softActiveCount"`
	PityCounter        int                   `json:"pityCounter"`
	Pity               gachaconfig.PityRules `json:"pity"`
}

// Profile 用户概览
type Profile struct {
	UserID      string                `json:"userId"`
	User        *model.User           `json:"user"`
	UniqueCount int                   `json:"uniqueCount"`
	TotalCopies int                   `json:"totalCopies"`
	PityCounter int                   `json:"pityCounter"`
	Pity        gachaconfig.PityRules `json:"pity"`
}

// DailyClaim 每日奖励领取结果
type DailyClaim struct {
	User        *model.User `json:"user"`
	Bonus       int         `json:"bonus"`
	NextClaimAt time.Time   `json:"nextClaimAt"`
}

// InventoryView 排序后的背包
type InventoryView struct {
	User    *model.User           `json:"user"`
	Entries []model.InventoryItem `json:"entries"`
}

// BoardRefreshInfo 看板刷新倒计时
type BoardRefreshInfo struct {
	HasBoard       bool       `json:"hasBoard"`
	IsReady        bool       `json:"isReady"`
	MsRemaining    int64      `json:"msRemaining"`
	NextRefreshAt  *time.Time `json:"nextRefreshAt"`
	BoardUpdatedAt *time.Time `json:"boardUpdatedAt"`
}

// ContractRuleInfo 合成规则与当前可执行次数
type ContractRuleInfo struct {
	model.ContractRule
	AvailableCopies    int `json:"availableCopies"`
	AvailableContracts int `json:"availableContracts"`
}

// ContractInfo 合成概览
type ContractInfo struct {
	User          *model.User          `json:"user"`
	RarityCounts  map[model.Rarity]int `json:"rarityCounts"`
	MaxPerCommand int                  `json:"maxPerCommand"`
	Rules         []ContractRuleInfo   `json:"rules"`
}

// ContractResult 合成结果
type ContractResult struct {
	User                  *model.User           `json:"user"`
	Rule                  model.ContractRule    `json:"rule"`
	Requested             int                   `json:"requested"`
	Executed              int                   `json:"executed"`
	MaxPerCommand         int                   `json:"maxPerCommand"`
	MaxByInventory        int                   `json:"maxByInventory"`
	ConsumedCopies        int                   `json:"consumedCopies"`
	AvailableSourceCopies int                   `json:"availableSourceCopies"`
	RemainingSourceCopies int                   `json:"remainingSourceCopies"`
	ConsumedByID          []model.ConsumedStack `json:"consumedById"`
	SelectionUsed         bool                  `json:"selectionUsed"`
	Rewards               []model.Character     `json:"rewards"`
}

// TradeCreateRequest 发起交易
type TradeCreateRequest struct {
	ProposerID     string
	ProposerMeta   model.UserMeta
	TargetID       string
	TargetMeta     model.UserMeta
	OfferedQuery   string
	RequestedQuery string
}

// TradeList 与某用户相关的交易单
type TradeList struct {
	IncomingPending []model.TradeOffer `json:"incomingPending"`
	OutgoingPending []model.TradeOffer `json:"outgoingPending"`
	RecentResolved  []model.TradeOffer `json:"recentResolved"`
}

// TradeAcceptResult 交易完成后双方获得的角色
type TradeAcceptResult struct {
	Offer              model.TradeOffer `json:"offer"`
	OfferedCharacter   model.Character  `json:"offeredCharacter"`
	RequestedCharacter model.Character  `json:"requestedCharacter"`
}

// Owner 角色持有者
type Owner struct {
	UserID      string `json:"userId"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"displayName"`
	Count       int    `json:"count"`
}

// OwnersResult 持有者查询结果，未匹配到角色时 Character 为 nil
type OwnersResult struct {
	Query       string           `json:"query"`
	Character   *model.Character `json:"character"`
	Owners      []Owner          `json:"owners"`
	TotalOwners int              `json:"totalOwners"`
}

// CharacterDetails 角色详情与图库
type CharacterDetails struct {
	Character model.Character      `json:"character"`
	Images    []model.GalleryImage `json:"images"`
}
