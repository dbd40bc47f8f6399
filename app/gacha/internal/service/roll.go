package service

import (
	"context"
	"math"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

const (
	pityHard = "hard"
	pitySoft = "soft"

	maxBoostedChance = 0.99
)

// softPityBonus 软保底附加的神话概率百分比
func softPityBonus(counter int, rules gachaconfig.PityRules) float64 {
	first := rules.SoftPityRolls - 1
	if counter < first || rules.RateStepPercent <= 0 {
		return 0
	}
	return float64(counter-first+1) * rules.RateStepPercent
}

// drawWeights 每个角色的抽取权重；bonus > 0 时只放大神话角色的权重
func drawWeights(board []model.Character, bonusPercent float64) []float64 {
	weights := make([]float64, len(board))
	var total, mythicMass float64
	for i, c := range board {
		w := math.Max(model.MinDropWeight, c.DropWeight)
		weights[i] = w
		total += w
		if c.Rarity.IsMythic() {
			mythicMass += w
		}
	}
	if bonusPercent <= 0 || total <= 0 || mythicMass <= 0 {
		return weights
	}

	current := mythicMass / total
	target := math.Min(maxBoostedChance, current+bonusPercent/100)
	if target <= current {
		return weights
	}
	factor := target / current
	for i, c := range board {
		if c.Rarity.IsMythic() {
			weights[i] *= factor
		}
	}
	return weights
}

// weightedPick 累积权重抽取，总权重不为正时均匀抽取
func weightedPick(r *lockedRand, weights []float64) int {
	var total float64
	for _, w := range weights {
		total += math.Max(0, w)
	}
	if total <= 0 {
		return r.Intn(len(weights))
	}

	threshold := r.Float64() * total
	for i, w := range weights {
		threshold -= math.Max(0, w)
		if threshold <= 0 {
			return i
		}
	}
	return len(weights) - 1
}

// Roll 单抽
func (e *Engine) Roll(ctx context.Context, userID string, meta model.UserMeta) (*RollResult, error) {
	return e.RollMany(ctx, userID, 1, meta)
}

// RollMany 连抽，实际次数受剩余次数限制
func (e *Engine) RollMany(ctx context.Context, userID string, count int, meta model.UserMeta) (*RollResult, error) {
	// 1. 确保看板，失败时沿用当前看板
	board, err := e.EnsureBoard(ctx, false)
	if err != nil {
		e.logger.Warn("failed to ensure board before roll", "user_id", userID, "error", err)
		board = model.CloneCharacters(e.current().state.BoardCharacters)
	}

	// 2. 同步用户
	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, changed, err := e.syncUser(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	requested := max(1, count)

	// 3. 校验次数与看板
	if user.RollsLeft <= 0 {
		if changed {
			if err := e.saveUser(ctx, userID, user); err != nil {
				return nil, err
			}
		}
		return nil, model.NewError(model.KindInsufficientResource, "no rolls left for today",
			"rolls_left", user.RollsLeft,
			"requested", requested,
		)
	}
	if len(board) == 0 {
		return nil, model.NewError(model.KindProviderDegraded, "no active board to roll on")
	}

	// 4. 逐次抽取
	rules := e.cfg().PityRules()
	mythicIdx := make([]int, 0, 1)
	for i, c := range board {
		if c.Rarity.IsMythic() {
			mythicIdx = append(mythicIdx, i)
		}
	}
	mythicWeights := make([]float64, len(mythicIdx))
	for i, idx := range mythicIdx {
		mythicWeights[i] = board[idx].DropWeight
	}

	executed := min(requested, user.RollsLeft)
	result := &RollResult{
		Requested: requested,
		Executed:  executed,
		Draws:     make([]RollDraw, 0, executed),
		Pity:      rules,
	}
	for range executed {
		before := user.MythicPityCounter
		hard := before >= rules.HardTriggerAt && len(mythicIdx) > 0
		bonus := 0.0
		if !hard {
			bonus = softPityBonus(before, rules)
		}

		var picked model.Character
		if hard {
			result.HardTriggeredCount++
			picked = board[mythicIdx[weightedPick(e.rand, mythicWeights)]]
		} else {
			if bonus > 0 {
				result.SoftActiveCount++
			}
			picked = board[weightedPick(e.rand, drawWeights(board, bonus))]
		}

		user.RollsLeft--
		user.TotalRolls++
		if picked.Rarity.IsMythic() {
			user.MythicPityCounter = 0
		} else {
			user.MythicPityCounter = min(rules.HardTriggerAt, before+1)
		}
		user.PityCounter = user.MythicPityCounter
		upsertInventory(user.Inventory, picked, 1)

		result.Draws = append(result.Draws, RollDraw{
			Character:            picked.Clone(),
			HardPityTriggered:    hard,
			SoftPityActive:       bonus > 0,
			SoftPityBonusPercent: bonus,
			PityBefore:           before,
			PityAfter:            user.MythicPityCounter,
		})
	}

	// 5. 持久化
	now := e.now()
	user.LastRollAt = &now
	if err := e.saveUser(ctx, userID, user); err != nil {
		return nil, err
	}

	for _, draw := range result.Draws {
		e.metrics.RecordRoll(string(draw.Character.Rarity))
	}
	e.metrics.RecordPity(pityHard, result.HardTriggeredCount)
	e.metrics.RecordPity(pitySoft, result.SoftActiveCount)
	e.logger.Debug("rolls executed",
		"user_id", userID,
		"requested", requested,
		"executed", executed,
		"hard_pity", result.HardTriggeredCount,
		"pity_counter", user.MythicPityCounter,
	)

	result.User = user
	result.PityCounter = user.MythicPityCounter
	return result, nil
}
