package service

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

var (
	materialPrefix = regexp.MustCompile(`(?i)^--?(pick|materials?)\s*`)
	materialItem   = regexp.MustCompile(`(?i)^([a-z0-9_-]+)(?::(\d+))?$`)
)

// ParseMaterialSelection 解析 "id,id:count" 形式的材料列表，允许 --pick 前缀；空输入返回空列表
func ParseMaterialSelection(raw string) ([]model.MaterialSelection, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return nil, nil
	}
	input = strings.TrimSpace(materialPrefix.ReplaceAllString(input, ""))
	if input == "" {
		return nil, model.NewError(model.KindValidation, "material ids are required after --pick")
	}

	out := make([]model.MaterialSelection, 0)
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := materialItem.FindStringSubmatch(part)
		if m == nil {
			return nil, model.NewError(model.KindValidation, "invalid material, expected id or id:count", "material", part)
		}
		count := 1
		if m[2] != "" {
			n, err := strconv.Atoi(m[2])
			if err != nil || n <= 0 {
				return nil, model.NewError(model.KindValidation, "invalid material count", "material", part)
			}
			count = n
		}
		out = append(out, model.MaterialSelection{ID: strings.ToLower(m[1]), Count: count})
	}
	if len(out) == 0 {
		return nil, model.NewError(model.KindValidation, "material list is empty")
	}
	return out, nil
}

// normalizeSelection 小写去空白，数量至少为 1，重复 id 累加并保持首次出现的顺序
func normalizeSelection(selection []model.MaterialSelection) []model.MaterialSelection {
	index := make(map[string]int, len(selection))
	out := make([]model.MaterialSelection, 0, len(selection))
	for _, item := range selection {
		id := strings.ToLower(strings.TrimSpace(item.ID))
		if id == "" {
			continue
		}
		count := max(1, item.Count)
		if i, ok := index[id]; ok {
			out[i].Count += count
			continue
		}
		index[id] = len(out)
		out = append(out, model.MaterialSelection{ID: id, Count: count})
	}
	return out
}

// manualSelectable 允许手动选择材料的稀有度
func manualSelectable(r model.Rarity) bool {
	return r == model.RarityEpic || r == model.RarityLegendary
}

func rarityCounts(entries []model.InventoryItem) map[model.Rarity]int {
	counts := make(map[model.Rarity]int, len(model.RarityOrder))
	for _, r := range model.RarityOrder {
		counts[r] = 0
	}
	for _, entry := range entries {
		counts[entry.Character.Rarity] += entry.Count
	}
	return counts
}

func (e *Engine) maxPerCommand() int {
	return max(1, e.cfg().ContractMaxPerCommand)
}

// GetContractInfo 合成规则与当前背包可执行的次数
func (e *Engine) GetContractInfo(ctx context.Context, userID string, meta model.UserMeta) (*ContractInfo, error) {
	if _, err := e.ensurePool(ctx, false, nil); err != nil {
		return nil, err
	}

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

	counts := rarityCounts(inv.entries)
	rules := e.cfg().ContractRules()
	infos := make([]ContractRuleInfo, 0, len(rules))
	for _, rule := range rules {
		available := counts[rule.From]
		infos = append(infos, ContractRuleInfo{
			ContractRule:       rule,
			AvailableCopies:    available,
			AvailableContracts: available / rule.Cost,
		})
	}
	return &ContractInfo{
		User:          inv.user,
		RarityCounts:  counts,
		MaxPerCommand: e.maxPerCommand(),
		Rules:         infos,
	}, nil
}

type contractCandidate struct {
	id        string
	count     int
	favorites int64
	name      string
}

// autoCandidates 优先消耗重复份数多、收藏数低的角色
func autoCandidates(inv model.Inventory, from model.Rarity) []contractCandidate {
	out := make([]contractCandidate, 0)
	for id, entry := range inv {
		if entry == nil || entry.Count <= 0 || entry.Character == nil || entry.Character.Rarity != from {
			continue
		}
		out = append(out, contractCandidate{
			id:        id,
			count:     entry.Count,
			favorites: entry.Character.Favorites,
			name:      entry.Character.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if da, db := a.count > 1, b.count > 1; da != db {
			return da
		}
		if a.count != b.count {
			return a.count > b.count
		}
		if a.favorites != b.favorites {
			return a.favorites < b.favorites
		}
		if a.name != b.name {
			return a.name < b.name
		}
		return a.id < b.id
	})
	return out
}

// consumeAuto 第一轮每个角色保留一份，第二轮全部可消耗
func consumeAuto(inv model.Inventory, from model.Rarity, copies int) ([]model.ConsumedStack, int) {
	remaining := copies
	consumed := make([]model.ConsumedStack, 0)
	candidates := autoCandidates(inv, from)

	for _, keepOne := range []bool{true, false} {
		for _, c := range candidates {
			if remaining <= 0 {
				return consumed, 0
			}
			held := inv.CountOf(c.id)
			removable := held
			if keepOne {
				removable = held - 1
			}
			if removable <= 0 {
				continue
			}
			take := min(removable, remaining)
			snapshot, ok := consumeCopies(inv, c.id, take)
			if !ok {
				continue
			}
			remaining -= take
			consumed = append(consumed, model.ConsumedStack{ID: c.id, Count: take, Character: snapshot})
		}
	}
	return consumed, remaining
}

// consumeSelected 校验全部选择后按选择顺序消耗
func consumeSelected(inv model.Inventory, from model.Rarity, copies int, selection []model.MaterialSelection) ([]model.ConsumedStack, error) {
	selected := 0
	for _, item := range selection {
		entry, ok := inv[item.ID]
		if !ok || entry == nil {
			return nil, model.NewError(model.KindNotFound, "character is not in inventory", "character_id", item.ID)
		}
		if entry.Count <= 0 {
			return nil, model.NewError(model.KindInsufficientResource, "no copies available", "character_id", item.ID)
		}
		if entry.Character == nil || entry.Character.Rarity != from {
			return nil, model.NewError(model.KindValidation, "character does not match contract rarity",
				"character_id", item.ID,
				"rarity", from,
			)
		}
		if item.Count > entry.Count {
			return nil, model.NewError(model.KindInsufficientResource, "not enough copies of selected character",
				"character_id", item.ID,
				"need", item.Count,
				"have", entry.Count,
			)
		}
		selected += item.Count
	}
	if selected < copies {
		return nil, model.NewError(model.KindInsufficientResource, "selected copies do not cover the contract",
			"need", copies,
			"have", selected,
		)
	}

	remaining := copies
	consumed := make([]model.ConsumedStack, 0, len(selection))
	for _, item := range selection {
		if remaining <= 0 {
			break
		}
		take := min(item.Count, inv.CountOf(item.ID), remaining)
		if take <= 0 {
			continue
		}
		snapshot, ok := consumeCopies(inv, item.ID, take)
		if !ok {
			continue
		}
		remaining -= take
		consumed = append(consumed, model.ConsumedStack{ID: item.ID, Count: take, Character: snapshot})
	}
	return consumed, nil
}

func (e *Engine) rewardPool(to model.Rarity) []model.Character {
	out := make([]model.Character, 0)
	for _, c := range e.current().state.PoolCharacters {
		if c.Rarity == to {
			out = append(out, c)
		}
	}
	return out
}

// ExecuteContract 消耗 from 稀有度的份数换取下一稀有度的随机角色
//
// 消耗与奖励在同一次保存中提交，任何一步失败都不会留下部分修改。
func (e *Engine) ExecuteContract(
	ctx context.Context,
	userID string,
	from string,
	count int,
	meta model.UserMeta,
	selection []model.MaterialSelection,
) (*ContractResult, error) {
	if _, err := e.ensurePool(ctx, false, nil); err != nil {
		return nil, err
	}

	source, _ := model.ParseRarity(from)
	rule, ok := e.cfg().ContractRule(source)
	if !ok {
		return nil, model.NewError(model.KindValidation, "invalid contract rarity", "rarity", from)
	}
	selection = normalizeSelection(selection)
	if len(selection) > 0 && !manualSelectable(rule.From) {
		return nil, model.NewError(model.KindValidation, "manual material selection is only available for epic and legendary contracts",
			"rarity", rule.From,
		)
	}

	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 1. 计算可执行次数
	inv, err := e.loadInventory(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	user := inv.user
	requested := max(1, count)
	perCommand := e.maxPerCommand()
	available := rarityCounts(inv.entries)[rule.From]
	byInventory := available / rule.Cost
	executed := min(requested, perCommand, byInventory)

	persistNormalized := func() error {
		if !inv.changed {
			return nil
		}
		return e.saveUser(ctx, userID, user)
	}

	if byInventory <= 0 {
		if err := persistNormalized(); err != nil {
			return nil, err
		}
		e.metrics.RecordContract(string(rule.From), false)
		return nil, model.Errorf(model.KindInsufficientResource, "need %d %s for one contract, have %d",
			rule.Cost, rule.From, available).
			With("need", rule.Cost).
			With("have", available).
			With("rarity", rule.From)
	}

	// 2. 奖励池为空时强制同步一次
	rewards := e.rewardPool(rule.To)
	if len(rewards) == 0 {
		if _, err := e.ensurePool(ctx, true, nil); err != nil {
			e.logger.Warn("failed to resync pool for contract rewards", "rarity", rule.To, "error", err)
		}
		rewards = e.rewardPool(rule.To)
	}
	if len(rewards) == 0 {
		if err := persistNormalized(); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindProviderDegraded, "no characters available for contract rewards", "rarity", rule.To)
	}

	// 3. 在副本上消耗材料
	working := user.Inventory.Clone()
	copies := executed * rule.Cost
	var consumed []model.ConsumedStack
	if len(selection) > 0 {
		consumed, err = consumeSelected(working, rule.From, copies, selection)
		if err != nil {
			e.metrics.RecordContract(string(rule.From), false)
			return nil, err
		}
	} else {
		var short int
		consumed, short = consumeAuto(working, rule.From, copies)
		if short > 0 {
			e.metrics.RecordContract(string(rule.From), false)
			return nil, model.NewError(model.KindInsufficientResource, "could not consume the required copies",
				"need", copies,
				"have", copies-short,
			)
		}
	}

	// 4. 发放奖励
	granted := make([]model.Character, 0, executed)
	for range executed {
		reward := rewards[e.rand.Intn(len(rewards))].Clone()
		upsertInventory(working, reward, 1)
		granted = append(granted, reward)
	}

	// 5. 一次性保存
	user.Inventory = working
	if err := e.saveUser(ctx, userID, user); err != nil {
		return nil, err
	}
	e.metrics.RecordContract(string(rule.From), true)
	e.logger.Info("contract executed",
		"user_id", userID,
		"from", rule.From,
		"to", rule.To,
		"executed", executed,
		"selection_used", len(selection) > 0,
	)

	return &ContractResult{
		User:                  user,
		Rule:                  rule,
		Requested:             requested,
		Executed:              executed,
		MaxPerCommand:         perCommand,
		MaxByInventory:        byInventory,
		ConsumedCopies:        copies,
		AvailableSourceCopies: available,
		RemainingSourceCopies: max(0, available-copies),
		ConsumedByID:          consumed,
		SelectionUsed:         len(selection) > 0,
		Rewards:               granted,
	}, nil
}
