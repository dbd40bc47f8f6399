package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

// syncUser 加载并归一化用户，不存在时按默认值创建；调用方需持有该用户的锁
//
// 返回的用户是存储层解码出的新对象，可以直接修改。
func (e *Engine) syncUser(ctx context.Context, userID string, meta model.UserMeta) (*model.User, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, false, model.NewError(model.KindValidation, "user id is required")
	}

	cfg := e.cfg()
	today := cfg.DayKey(e.now())
	meta = meta.Normalize()

	user, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return nil, false, model.Internal(err, "failed to load user").With("user_id", userID)
	}

	changed := false
	if user == nil {
		user = &model.User{
			Username:    meta.Username,
			DisplayName: meta.DisplayName,
			LastReset:   today,
			RollsLeft:   cfg.RollsPerDay,
			Inventory:   model.Inventory{},
		}
		user.MarkMigrated()
		changed = true
	}

	if meta.Username != "" && user.Username != meta.Username {
		user.Username = meta.Username
		changed = true
	}
	if meta.DisplayName != "" && user.DisplayName != meta.DisplayName {
		user.DisplayName = meta.DisplayName
		changed = true
	}
	if user.DisplayName == "" && user.Username != "" {
		user.DisplayName = user.Username
		changed = true
	}

	// 每日重置
	if user.LastReset != today {
		user.LastReset = today
		user.RollsLeft = cfg.RollsPerDay
		changed = true
	}
	if user.Inventory == nil {
		user.Inventory = model.Inventory{}
		changed = true
	}
	if user.RollsLeft < 0 {
		user.RollsLeft = 0
		changed = true
	}
	if user.TotalRolls < 0 {
		user.TotalRolls = 0
		changed = true
	}

	// 旧记录只有 pityCounter
	if !user.HasMythicPity() {
		user.MythicPityCounter = max(0, user.PityCounter)
		user.MarkMigrated()
		changed = true
	}
	if user.MythicPityCounter < 0 {
		user.MythicPityCounter = 0
		changed = true
	}
	if limit := cfg.PityRules().HardTriggerAt; user.MythicPityCounter > limit {
		user.MythicPityCounter = limit
		changed = true
	}
	if user.PityCounter != user.MythicPityCounter {
		user.PityCounter = user.MythicPityCounter
		changed = true
	}

	return user, changed, nil
}

// inventoryContext 归一化后的背包
type inventoryContext struct {
	user    *model.User
	entries []model.InventoryItem
	changed bool
}

// characterIndex 看板与角色池的 id 索引，角色池优先
func (e *Engine) characterIndex() map[string]model.Character {
	snap := e.current()
	index := make(map[string]model.Character, len(snap.state.BoardCharacters)+len(snap.poolByID))
	for _, c := range snap.state.BoardCharacters {
		index[c.ID] = c
	}
	for id, c := range snap.poolByID {
		index[id] = c
	}
	return index
}

// normalizeInventory 丢弃数量为 0 的条目，用目录数据补全快照
func normalizeInventory(inv model.Inventory, index map[string]model.Character) (model.Inventory, []model.InventoryItem, bool) {
	out := make(model.Inventory, len(inv))
	entries := make([]model.InventoryItem, 0, len(inv))
	changed := false

	for id, entry := range inv {
		if entry == nil || entry.Count <= 0 {
			changed = true
			continue
		}
		fallback, ok := index[id]
		if !ok {
			fallback = model.Character{ID: id}
		}
		character := model.Merge(entry.Character, &fallback)
		if character.ID == "" {
			character.ID = id
		}
		if entry.Legacy() {
			changed = true
		}
		out[id] = &model.InventoryEntry{Count: entry.Count, Character: &character}
		entries = append(entries, model.InventoryItem{Character: character, Count: entry.Count})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Character.ID < entries[j].Character.ID
	})
	return out, entries, changed
}

// loadInventory 同步用户并归一化背包，changed 表示需要回写
func (e *Engine) loadInventory(ctx context.Context, userID string, meta model.UserMeta) (*inventoryContext, error) {
	user, userChanged, err := e.syncUser(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	inv, entries, invChanged := normalizeInventory(user.Inventory, e.characterIndex())
	if invChanged {
		user.Inventory = inv
	}
	return &inventoryContext{
		user:    user,
		entries: entries,
		changed: userChanged || invChanged,
	}, nil
}

// upsertInventory 增加数量，新快照为 primary 与旧快照合并
func upsertInventory(inv model.Inventory, character model.Character, count int) {
	snapshot := character.Clone()
	if prev, ok := inv[snapshot.ID]; ok && prev != nil {
		merged := model.Merge(&snapshot, prev.Character)
		inv[snapshot.ID] = &model.InventoryEntry{Count: max(0, prev.Count) + count, Character: &merged}
		return
	}
	inv[snapshot.ID] = &model.InventoryEntry{Count: count, Character: &snapshot}
}

// consumeCopies 扣除 copies 份，归零时删除条目，返回扣除前的快照
func consumeCopies(inv model.Inventory, id string, copies int) (model.Character, bool) {
	entry, ok := inv[id]
	if !ok || entry == nil || entry.Count < copies || copies <= 0 {
		return model.Character{}, false
	}
	var snapshot model.Character
	if entry.Character != nil {
		snapshot = entry.Character.Clone()
	} else {
		snapshot = model.Character{ID: id}.Clone()
	}
	if remaining := entry.Count - copies; remaining > 0 {
		inv[id] = &model.InventoryEntry{Count: remaining, Character: &snapshot}
	} else {
		delete(inv, id)
	}
	return snapshot, true
}

// GetProfile 用户概览
func (e *Engine) GetProfile(ctx context.Context, userID string, meta model.UserMeta) (*Profile, error) {
	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, changed, err := e.syncUser(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := e.saveUser(ctx, userID, user); err != nil {
			return nil, err
		}
	}

	unique, total := user.Inventory.Summary()
	return &Profile{
		UserID:      userID,
		User:        user,
		UniqueCount: unique,
		TotalCopies: total,
		PityCounter: user.MythicPityCounter,
		Pity:        e.cfg().PityRules(),
	}, nil
}

// ClaimDaily 领取每日奖励，冷却中返回 cooldown 错误
func (e *Engine) ClaimDaily(ctx context.Context, userID string, meta model.UserMeta) (*DailyClaim, error) {
	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, changed, err := e.syncUser(ctx, userID, meta)
	if err != nil {
		return nil, err
	}

	cfg := e.cfg()
	cooldown := cfg.DailyCooldown()
	now := e.now()
	if last := user.LastDailyClaimAt; last != nil && now.Sub(*last) < cooldown {
		if changed {
			if err := e.saveUser(ctx, userID, user); err != nil {
				return nil, err
			}
		}
		next := last.Add(cooldown)
		return nil, model.NewError(model.KindCooldown, "daily reward is on cooldown",
			"ms_remaining", next.Sub(now).Milliseconds(),
			"next_claim_at", next.Format(time.RFC3339),
		)
	}

	user.RollsLeft += cfg.DailyRollBonus
	user.LastDailyClaimAt = &now
	if err := e.saveUser(ctx, userID, user); err != nil {
		return nil, err
	}
	e.logger.Debug("daily reward claimed", "user_id", userID, "bonus", cfg.DailyRollBonus)
	return &DailyClaim{
		User:        user,
		Bonus:       cfg.DailyRollBonus,
		NextClaimAt: now.Add(cooldown),
	}, nil
}

// GetInventory 背包按数量、稀有度、名称排序
func (e *Engine) GetInventory(ctx context.Context, userID string, meta model.UserMeta) (*InventoryView, error) {
	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.loadInventory(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	if inv.changed {
		if err := e.saveUser(ctx, userID, inv.user); err != nil {
			return nil, err
		}
	}

	entries := inv.entries
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if sa, sb := a.Character.Rarity.Score(), b.Character.Rarity.Score(); sa != sb {
			return sa > sb
		}
		return a.Character.Name < b.Character.Name
	})
	return &InventoryView{User: inv.user, Entries: entries}, nil
}
