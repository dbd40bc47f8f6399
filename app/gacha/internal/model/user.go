package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// User 玩家记录，首次交互时惰性创建，从不删除
type User struct {
	Username          string `json:"username,omitempty"`
	DisplayName       string `json:"displayName,omitempty"`
	LastReset         string `json:"lastReset"`
	RollsLeft         int    `json:"rollsLeft"`
	TotalRolls        int    `json:"totalRolls"`
	MythicPityCounter int    `json:"mythicPityCounter"`
	// PityCounter 旧字段，始终与 MythicPityCounter 相同
	PityCounter      int        `json:"pityCounter"`
	Inventory        Inventory  `json:"inventory"`
	LastRollAt       *time.Time `json:"lastRollAt"`
	LastDailyClaimAt *time.Time `json:"lastDailyClaimAt"`

	hasMythicPity bool
}

// UnmarshalJSON 记录 mythicPityCounter 是否存在，用于迁移旧的 pityCounter
func (u *User) UnmarshalJSON(data []byte) error {
	type alias User
	aux := struct {
		*alias
		MythicPityCounter *float64 `json:"mythicPityCounter"`
		RollsLeft         *float64 `json:"rollsLeft"`
		TotalRolls        *float64 `json:"totalRolls"`
		PityCounter       *float64 `json:"pityCounter"`
	}{alias: (*alias)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	u.hasMythicPity = aux.MythicPityCounter != nil
	u.MythicPityCounter = floorInt(aux.MythicPityCounter)
	u.RollsLeft = floorInt(aux.RollsLeft)
	u.TotalRolls = floorInt(aux.TotalRolls)
	u.PityCounter = floorInt(aux.PityCounter)
	return nil
}

// HasMythicPity 解码时是否带有 mythicPityCounter
func (u *User) HasMythicPity() bool {
	return u.hasMythicPity
}

// MarkMigrated 迁移完成后调用
func (u *User) MarkMigrated() {
	u.hasMythicPity = true
}

func floorInt(v *float64) int {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0
	}
	return int(math.Floor(*v))
}

// Clone 深拷贝
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.Inventory = u.Inventory.Clone()
	if u.LastRollAt != nil {
		t := *u.LastRollAt
		out.LastRollAt = &t
	}
	if u.LastDailyClaimAt != nil {
		t := *u.LastDailyClaimAt
		out.LastDailyClaimAt = &t
	}
	return &out
}

// UserMeta 命令层传入的身份信息
type UserMeta struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Bot         bool   `json:"bot"`
}

// Normalize 去空白，displayName 缺省取 username
func (m UserMeta) Normalize() UserMeta {
	out := UserMeta{
		Username:    strings.TrimSpace(m.Username),
		DisplayName: strings.TrimSpace(m.DisplayName),
		Bot:         m.Bot,
	}
	if out.DisplayName == "" {
		out.DisplayName = out.Username
	}
	return out
}

// InventoryEntry 背包条目
type InventoryEntry struct {
	Count     int        `json:"count"`
	Character *Character `json:"character,omitempty"`

	legacy bool
}

// UnmarshalJSON 兼容旧格式 "id": 3
func (e *InventoryEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			// 无法识别的条目按 0 处理，归一化时丢弃
			*e = InventoryEntry{legacy: true}
			return nil
		}
		*e = InventoryEntry{Count: floorInt(&n), legacy: true}
		return nil
	}

	aux := struct {
		Count     *float64   `json:"count"`
		Character *Character `json:"character"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = InventoryEntry{
		Count:     floorInt(aux.Count),
		Character: aux.Character,
		legacy:    aux.Count == nil,
	}
	return nil
}

// Legacy 是否需要迁移：旧数字格式、缺少快照或缺少 count
func (e *InventoryEntry) Legacy() bool {
	return e.legacy || e.Character == nil
}

// Inventory 背包，key 为角色 id
type Inventory map[string]*InventoryEntry

// Clone 深拷贝
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for id, entry := range inv {
		if entry == nil {
			continue
		}
		cp := &InventoryEntry{Count: entry.Count, legacy: entry.legacy}
		if entry.Character != nil {
			c := entry.Character.Clone()
			cp.Character = &c
		}
		out[id] = cp
	}
	return out
}

// CountOf 持有数量
func (inv Inventory) CountOf(id string) int {
	if entry, ok := inv[id]; ok && entry != nil && entry.Count > 0 {
		return entry.Count
	}
	return 0
}

// Summary 不同角色数与总份数
func (inv Inventory) Summary() (unique, total int) {
	for _, entry := range inv {
		if entry == nil || entry.Count <= 0 {
			continue
		}
		unique++
		total += entry.Count
	}
	return unique, total
}

// InventoryItem 归一化后的背包视图
type InventoryItem struct {
	Character Character `json:"character"`
	Count     int       `json:"count"`
}
