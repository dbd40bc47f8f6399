package service

import (
	"context"
	"math"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
)

const (
	boardOriginScheduled = "scheduled"
	boardOriginForced    = "forced"
	boardOriginPrefetch  = "prefetch"
)

// featuredRarities 每次刷新各挑一名角色加权
var featuredRarities = []model.Rarity{model.RarityEpic, model.RarityLegendary, model.RarityMythic}

// prefetchedBoard 以当前看板的 updatedAt 为键预先生成的下一期看板
type prefetchedBoard struct {
	base  time.Time
	board []model.Character
}

// planRarities 各稀有度的配额
func planRarities(size int) map[model.Rarity]int {
	plan := make(map[model.Rarity]int, len(model.RarityOrder))
	if size <= 0 {
		return plan
	}

	mythic := 1
	legendary := 0
	switch {
	case size >= 30:
		legendary = 3
	case size >= 20:
		legendary = 2
	case size >= 10:
		legendary = 1
	}
	remaining := max(0, size-legendary-mythic)
	epic := int(math.Floor(float64(remaining) * 0.22))
	rare := int(math.Floor(float64(remaining) * 0.30))
	common := remaining - epic - rare

	if size >= 20 && epic == 0 && common > 0 {
		common--
		epic++
	}
	if size >= 12 && rare == 0 && common > 0 {
		common--
		rare++
	}

	plan[model.RarityMythic] = mythic
	plan[model.RarityLegendary] = legendary
	plan[model.RarityEpic] = epic
	plan[model.RarityRare] = rare
	plan[model.RarityCommon] = common
	return plan
}

func shuffled(r *lockedRand, list []model.Character) []model.Character {
	out := append([]model.Character(nil), list...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// composeBoard 按配额从目录中随机挑选不重复的角色，神话数量不超过配额
func composeBoard(r *lockedRand, catalog []model.Character, size int) []model.Character {
	board := make([]model.Character, 0, max(0, size))
	if size <= 0 || len(catalog) == 0 {
		return board
	}

	plan := planRarities(size)
	byRarity := make(map[model.Rarity][]model.Character, len(plan))
	for _, c := range catalog {
		byRarity[c.Rarity] = append(byRarity[c.Rarity], c)
	}

	used := make(map[string]struct{}, size)
	mythics := 0
	take := func(c model.Character) bool {
		if len(board) >= size || c.ID == "" {
			return false
		}
		if _, ok := used[c.ID]; ok {
			return false
		}
		if c.Rarity.IsMythic() && mythics >= plan[model.RarityMythic] {
			return false
		}
		used[c.ID] = struct{}{}
		board = append(board, c.Clone())
		if c.Rarity.IsMythic() {
			mythics++
		}
		return true
	}

	// 1. 按配额挑选
	for _, rarity := range model.ContractChain {
		picked := 0
		for _, c := range shuffled(r, byRarity[rarity]) {
			if picked >= plan[rarity] {
				break
			}
			if take(c) {
				picked++
			}
		}
	}

	// 2. 配额不足时按稀有度补齐
	for _, rarity := range model.ContractChain {
		for _, c := range shuffled(r, byRarity[rarity]) {
			if len(board) >= size {
				break
			}
			take(c)
		}
	}

	// 3. 最后从整个目录补齐
	for _, c := range shuffled(r, catalog) {
		if len(board) >= size {
			break
		}
		take(c)
	}

	model.SortBoard(board)
	return board
}

// applyFeaturedBoost 重置旧的精选标记后为 epic、legendary、mythic 各挑一名加权
func applyFeaturedBoost(r *lockedRand, board []model.Character, boostPercent float64) []model.Character {
	out := model.CloneCharacters(board)
	multiplier := 1 + math.Max(0, boostPercent)/100
	for i := range out {
		out[i].Featured = false
		out[i].FeaturedRarity = ""
	}

	for _, rarity := range featuredRarities {
		candidates := make([]int, 0)
		for i, c := range out {
			if c.Rarity == rarity {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		idx := candidates[r.Intn(len(candidates))]
		out[idx].DropWeight = math.Max(model.MinDropWeight, model.Round4(out[idx].DropWeight*multiplier))
		out[idx].Featured = true
		out[idx].FeaturedRarity = rarity
	}
	return out
}

func (e *Engine) buildBoard(pool []model.Character) []model.Character {
	cfg := e.cfg()
	board := composeBoard(e.rand, pool, cfg.BoardSize)
	if len(board) == 0 {
		return board
	}
	return applyFeaturedBoost(e.rand, board, cfg.FeaturedBoardBoostPercent)
}

// boardRemaining 当前看板距下次刷新的剩余时间，没有看板时返回 false
func (e *Engine) boardRemaining(state *model.GachaState, now time.Time) (time.Duration, bool) {
	if len(state.BoardCharacters) == 0 || state.BoardUpdatedAt == nil {
		return 0, false
	}
	return e.cfg().BoardRefreshInterval() - now.Sub(*state.BoardUpdatedAt), true
}

// freshBoard 看板未过期且不是兜底数据时直接返回，并按需安排预取
func (e *Engine) freshBoard() ([]model.Character, bool) {
	state := e.current().state
	remaining, ok := e.boardRemaining(state, e.now())
	if !ok || remaining <= 0 || provider.IsFallbackOnly(state.BoardCharacters) {
		return nil, false
	}
	e.schedulePrefetch(*state.BoardUpdatedAt, remaining)
	return model.CloneCharacters(state.BoardCharacters), true
}

// EnsureBoard 返回当前看板，过期或 force 时重新生成
func (e *Engine) EnsureBoard(ctx context.Context, force bool) ([]model.Character, error) {
	if !force {
		if board, ok := e.freshBoard(); ok {
			return board, nil
		}
	} else {
		e.group.Forget(flightBoard)
	}

	v, err, _ := e.group.Do(flightBoard, func() (any, error) {
		return e.ensureBoard(ctx, force)
	})
	if err != nil {
		return nil, err
	}
	return model.CloneCharacters(v.([]model.Character)), nil
}

func (e *Engine) ensureBoard(ctx context.Context, force bool) ([]model.Character, error) {
	if !force {
		if board, ok := e.freshBoard(); ok {
			return board, nil
		}
	} else {
		e.clearPrefetch()
	}

	state := e.current().state

	// 角色池为空但看板存在时，以看板作为临时角色池并强制同步
	var seed []model.Character
	if len(state.PoolCharacters) == 0 && len(state.BoardCharacters) > 0 {
		seed = model.CloneCharacters(state.BoardCharacters)
		model.SortForPool(seed)
		seed = model.AssignRarityAndWeight(seed)
	}

	origin := boardOriginScheduled
	if force {
		origin = boardOriginForced
	}

	var board []model.Character
	if !force && state.BoardUpdatedAt != nil {
		if prefetched := e.takePrefetched(*state.BoardUpdatedAt); len(prefetched) > 0 {
			board = prefetched
			origin = boardOriginPrefetch
		}
	}
	if board == nil {
		pool, err := e.ensurePool(ctx, force || seed != nil, seed)
		if err != nil {
			return nil, err
		}
		board = e.buildBoard(pool)
	}

	if len(board) == 0 {
		e.logger.Warn("board generation produced no characters, keeping current board",
			"current_size", len(state.BoardCharacters),
		)
		return model.CloneCharacters(state.BoardCharacters), nil
	}

	return e.saveBoard(ctx, board, origin, state.BoardUpdatedAt)
}

// saveBoard 替换看板并清空预取结果
//
// seen 为决定刷新时看到的看板时间。非强制刷新时，若加锁后发现看板已被其他实例换成未过期的新看板，
// 直接采用该看板。
func (e *Engine) saveBoard(ctx context.Context, board []model.Character, origin string, seen *time.Time) ([]model.Character, error) {
	unlock, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := e.now()
	latest := e.current().state
	if origin != boardOriginForced && latest.BoardUpdatedAt != nil &&
		(seen == nil || !latest.BoardUpdatedAt.Equal(*seen)) {
		if remaining, ok := e.boardRemaining(latest, now); ok && remaining > 0 &&
			len(latest.BoardCharacters) > 0 && !provider.IsFallbackOnly(latest.BoardCharacters) {
			e.clearPrefetch()
			e.logger.Info("board already refreshed elsewhere", "board_updated_at", *latest.BoardUpdatedAt)
			return model.CloneCharacters(latest.BoardCharacters), nil
		}
	}

	next := latest.Clone()
	next.BoardCharacters = model.CloneCharacters(board)
	next.BoardCharacterIDs = make([]string, 0, len(board))
	for _, c := range board {
		next.BoardCharacterIDs = append(next.BoardCharacterIDs, c.ID)
	}
	next.BoardUpdatedAt = &now

	if err := e.saveState(ctx, next); err != nil {
		return nil, err
	}
	e.clearPrefetch()
	e.metrics.RecordBoardRefresh(origin)
	e.logger.Info("board refreshed",
		"origin", origin,
		"board_size", len(board),
		"board_updated_at", now,
	)
	return model.CloneCharacters(board), nil
}

// schedulePrefetch 剩余时间进入预取窗口时在后台生成下一期看板
func (e *Engine) schedulePrefetch(base time.Time, remaining time.Duration) {
	window := e.cfg().BoardPrefetchWindow()
	if window <= 0 || remaining <= 0 || remaining > window {
		return
	}

	e.prefetchMu.Lock()
	if e.prefetching || (e.prefetched != nil && e.prefetched.base.Equal(base)) {
		e.prefetchMu.Unlock()
		return
	}
	e.prefetching = true
	e.prefetchMu.Unlock()

	done := func() {
		e.prefetchMu.Lock()
		e.prefetching = false
		e.prefetchMu.Unlock()
	}
	submitted := e.background("board prefetch", func(ctx context.Context) error {
		defer done()
		return e.prefetchNextBoard(ctx, base)
	})
	if !submitted {
		done()
	}
}

func (e *Engine) prefetchNextBoard(ctx context.Context, base time.Time) error {
	_, err, _ := e.group.Do(flightPrefetch, func() (any, error) {
		if e.hasPrefetched(base) {
			return nil, nil
		}
		pool, err := e.ensurePool(ctx, false, nil)
		if err != nil {
			return nil, err
		}
		board := e.buildBoard(pool)
		if len(board) == 0 {
			return nil, nil
		}

		// 生成期间看板已被替换则丢弃
		current := e.current().state.BoardUpdatedAt
		if current == nil || !current.Equal(base) {
			return nil, nil
		}

		e.prefetchMu.Lock()
		e.prefetched = &prefetchedBoard{base: base, board: board}
		e.prefetchMu.Unlock()
		e.logger.Debug("next board prefetched",
			"base_updated_at", base,
			"board_size", len(board),
		)
		return nil, nil
	})
	return err
}

func (e *Engine) hasPrefetched(base time.Time) bool {
	e.prefetchMu.Lock()
	defer e.prefetchMu.Unlock()
	return e.prefetched != nil && e.prefetched.base.Equal(base)
}

// takePrefetched 键匹配时返回预取的看板
func (e *Engine) takePrefetched(base time.Time) []model.Character {
	e.prefetchMu.Lock()
	defer e.prefetchMu.Unlock()
	if e.prefetched == nil || !e.prefetched.base.Equal(base) {
		return nil
	}
	return model.CloneCharacters(e.prefetched.board)
}

func (e *Engine) clearPrefetch() {
	e.prefetchMu.Lock()
	e.prefetched = nil
	e.prefetchMu.Unlock()
}

// RefreshBoard 管理员手动刷新，预取结果有效时直接采用
func (e *Engine) RefreshBoard(ctx context.Context, actorID string) ([]model.Character, error) {
	if !e.cfg().IsAdmin(actorID) {
		return nil, model.NewError(model.KindAuthorization, "only admins can refresh the board", "user_id", actorID)
	}

	state := e.current().state
	if state.BoardUpdatedAt != nil {
		if prefetched := e.takePrefetched(*state.BoardUpdatedAt); len(prefetched) > 0 {
			board, err := e.saveBoard(ctx, prefetched, boardOriginPrefetch, state.BoardUpdatedAt)
			if err != nil {
				return nil, err
			}
			e.logger.Info("board refreshed by admin", "user_id", actorID, "prefetched", true)
			return board, nil
		}
	}

	board, err := e.EnsureBoard(ctx, true)
	if err != nil {
		return nil, err
	}
	e.logger.Info("board refreshed by admin", "user_id", actorID, "prefetched", false)
	return board, nil
}

// GetBoard 当前看板
func (e *Engine) GetBoard(ctx context.Context) ([]model.Character, error) {
	return e.EnsureBoard(ctx, false)
}

// GetBoardRefreshInfo 距下次刷新的倒计时，不触发刷新
func (e *Engine) GetBoardRefreshInfo() BoardRefreshInfo {
	state := e.current().state
	now := e.now()
	remaining, ok := e.boardRemaining(state, now)
	if !ok {
		return BoardRefreshInfo{HasBoard: false, IsReady: true}
	}

	updatedAt := *state.BoardUpdatedAt
	next := updatedAt.Add(e.cfg().BoardRefreshInterval())
	ms := max(int64(0), remaining.Milliseconds())
	return BoardRefreshInfo{
		HasBoard:       true,
		IsReady:        ms <= 0,
		MsRemaining:    ms,
		NextRefreshAt:  &next,
		BoardUpdatedAt: &updatedAt,
	}
}
