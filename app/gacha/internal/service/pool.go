package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
)

const (
	mythicCatalogLimit = 250
	poolRetryCap       = 1000

	catalogPool   = "pool"
	catalogMythic = "mythic"
)

// EnsureCharacterPool 返回角色池，为空或 force 时从外部目录同步
func (e *Engine) EnsureCharacterPool(ctx context.Context, force bool) ([]model.Character, error) {
	pool, err := e.ensurePool(ctx, force, nil)
	if err != nil {
		return nil, err
	}
	return model.CloneCharacters(pool), nil
}

// ensurePool 返回的切片属于快照，调用方不得修改；seed 在角色池为空时作为当前角色池
func (e *Engine) ensurePool(ctx context.Context, force bool, seed []model.Character) ([]model.Character, error) {
	if !force {
		if pool := e.current().state.PoolCharacters; len(pool) > 0 {
			return pool, nil
		}
	} else {
		e.group.Forget(flightPool)
	}

	v, err, _ := e.group.Do(flightPool, func() (any, error) {
		return e.syncPool(ctx, force, seed)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Character), nil
}

func (e *Engine) syncPool(ctx context.Context, force bool, seed []model.Character) ([]model.Character, error) {
	cfg := e.cfg()
	current := e.current().state.PoolCharacters
	if len(current) == 0 {
		current = seed
	}
	if !force && len(current) > 0 {
		return current, nil
	}

	poolSize := max(1, cfg.PoolSize)
	boardSize := max(1, cfg.BoardSize)
	primary := max(poolSize, boardSize*2)
	retry := max(boardSize*2, min(poolRetryCap, poolSize))
	targets := []int{primary}
	if retry != primary {
		targets = append(targets, retry)
	}

	// 1. 依次尝试各个目标数量，拿到非兜底数据即停止
	var fetched []model.Character
	for _, target := range targets {
		list, err := e.catalog.FetchPool(ctx, target)
		if err != nil {
			e.metrics.RecordProviderError("catalog", "fetch_pool")
			e.logger.Warn("failed to fetch character pool", "target", target, "error", err)
			continue
		}
		fetched = list
		e.logger.Info("character pool fetched", "target", target, "count", len(list))
		if len(list) > 0 && !provider.IsFallbackOnly(list) {
			break
		}
		e.logger.Warn("fallback-only character pool received", "target", target)
	}

	// 2. 没有可用数据时保留现有角色池
	if len(fetched) == 0 {
		return current, nil
	}
	if provider.IsFallbackOnly(fetched) && len(current) > 0 {
		e.logger.Warn("keeping current pool over fallback-only data", "pool_size", len(current))
		return current, nil
	}

	// 3. 合并、排序并分配稀有度
	if len(fetched) > poolSize {
		fetched = fetched[:poolSize]
	}
	merged := model.NormalizeCharacters(fetched)
	model.SortForPool(merged)
	pool := model.AssignRarityAndWeight(merged)

	// 4. 持久化
	unlock, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	now := e.now()
	next := e.current().state.Clone()
	next.PoolCharacters = pool
	next.PoolUpdatedAt = &now
	if err := e.saveState(ctx, next); err != nil {
		return nil, err
	}
	e.metrics.SetCatalogSize(catalogPool, len(pool))
	return pool, nil
}

func (e *Engine) cachedMythics() []model.Character {
	cached := model.CloneCharacters(e.current().state.MythicCharacters)
	model.SortByRanking(cached)
	if len(cached) > mythicCatalogLimit {
		cached = cached[:mythicCatalogLimit]
	}
	return cached
}

// EnsureMythicCatalog 排名前 250 的神话目录，未满或过期时刷新
func (e *Engine) EnsureMythicCatalog(ctx context.Context, force bool) ([]model.Character, error) {
	if !force {
		state := e.current().state
		cached := e.cachedMythics()
		stale := state.MythicCatalogUpdatedAt == nil ||
			e.now().Sub(*state.MythicCatalogUpdatedAt) >= e.cfg().MythicCatalogRefreshInterval()
		if len(cached) >= mythicCatalogLimit && !stale {
			return cached, nil
		}
	} else {
		e.group.Forget(flightMythic)
	}

	v, err, _ := e.group.Do(flightMythic, func() (any, error) {
		return e.syncMythicCatalog(ctx)
	})
	if err != nil {
		return nil, err
	}
	return model.CloneCharacters(v.([]model.Character)), nil
}

func (e *Engine) syncMythicCatalog(ctx context.Context) ([]model.Character, error) {
	cached := e.cachedMythics()

	fetched, err := e.catalog.FetchTopRanked(ctx, mythicCatalogLimit)
	if err != nil {
		e.metrics.RecordProviderError("catalog", "fetch_top_ranked")
		e.logger.Warn("failed to fetch mythic catalog", "cached", len(cached), "error", err)
		return cached, nil
	}

	catalog := make([]model.Character, 0, len(fetched))
	for _, c := range fetched {
		c.Rarity = model.RarityMythic
		c.DropWeight = model.RarityMythic.BaseWeight()
		c.Featured = false
		c.FeaturedRarity = ""
		catalog = append(catalog, c)
	}
	catalog = model.CloneCharacters(catalog)
	model.SortByRanking(catalog)
	if len(catalog) > mythicCatalogLimit {
		catalog = catalog[:mythicCatalogLimit]
	}
	if len(catalog) == 0 {
		return cached, nil
	}

	unlock, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	now := e.now()
	next := e.current().state.Clone()
	next.MythicCharacters = catalog
	next.MythicCatalogUpdatedAt = &now
	if err := e.saveState(ctx, next); err != nil {
		return nil, err
	}
	e.metrics.SetCatalogSize(catalogMythic, len(catalog))
	e.logger.Info("mythic catalog saved", "count", len(catalog))
	return catalog, nil
}

// GetMythicCatalog 神话目录
func (e *Engine) GetMythicCatalog(ctx context.Context) ([]model.Character, error) {
	return e.EnsureMythicCatalog(ctx, false)
}

// GetCharactersByRarity 角色池中某一稀有度的全部角色，按排名、收藏数与名称排序
func (e *Engine) GetCharactersByRarity(ctx context.Context, rarity string) ([]model.Character, error) {
	r, ok := model.ParseRarity(rarity)
	if !ok {
		return nil, model.NewError(model.KindValidation, "unknown rarity", "rarity", rarity)
	}
	pool, err := e.ensurePool(ctx, false, nil)
	if err != nil {
		return nil, err
	}

	out := make([]model.Character, 0)
	for _, c := range pool {
		if c.Rarity == r {
			out = append(out, c.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := rankKey(out[i].PopularityRank), rankKey(out[j].PopularityRank)
		if ri != rj {
			return ri < rj
		}
		if out[i].Favorites != out[j].Favorites {
			return out[i].Favorites > out[j].Favorites
		}
		return strings.Compare(out[i].Name, out[j].Name) < 0
	})
	return out, nil
}

// rankKey 没有排名的角色排在最后
func rankKey(rank int64) int64 {
	if rank <= 0 {
		return 1<<63 - 1
	}
	return rank
}

// PoolUpdatedAt 角色池最近一次同步时间
func (e *Engine) PoolUpdatedAt() *time.Time {
	if t := e.current().state.PoolUpdatedAt; t != nil {
		v := *t
		return &v
	}
	return nil
}
