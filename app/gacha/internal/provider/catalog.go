package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/cache/lru"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/util/conc"
)

const (
	maxPoolFetch      = 5000
	maxTopRanked      = 250
	maxSearchFetch    = 50
	defaultSearchSize = 20
	defaultGallery    = 24

	gallerySourcePool = "Pool"
)

var _ Catalog = (*CatalogService)(nil)

// CatalogService 组合 AniList 与 Jikan 的角色目录
//
// AniList 为主数据源，Jikan 用于图库补充和搜索降级。拉取角色池失败时返回内置角色，
// 其余接口失败时返回空结果，错误只记录日志与指标。
type CatalogService struct {
	anilist *AniListClient
	jikan   *JikanClient
	cache   *lru.LRU[string, []model.Character]
	metrics *metrics.GachaMetrics
	logger  logger.Logger
}

// NewCatalogService 创建角色目录
func NewCatalogService(cfg *Config, m *metrics.GachaMetrics, l logger.Logger) *CatalogService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &CatalogService{
		anilist: NewAniListClient(cfg.AniList, l),
		jikan:   NewJikanClient(cfg.Jikan, l),
		metrics: m,
		logger:  l.Named("provider.catalog"),
	}
	if cfg.SearchCacheSize > 0 {
		s.cache = lru.New[string, []model.Character](&lru.Config{
			MaxSize:         cfg.SearchCacheSize,
			DefaultTTL:      cfg.SearchCacheTTL,
			CleanupInterval: cfg.SearchCacheTTL,
		}, lru.WithOnEvict(func(query string, results []model.Character) {
			s.logger.Debug("search cache entry evicted", "query", query, "results", len(results))
		}))
	}
	return s
}

// Close 释放搜索缓存
func (s *CatalogService) Close() error {
	if s.cache != nil {
		st := s.cache.Stats()
		s.logger.Info("search cache closed",
			"hits", st.Hits,
			"misses", st.Misses,
			"evictions", st.Evictions,
		)
		return s.cache.Close()
	}
	return nil
}

func (s *CatalogService) FetchPool(ctx context.Context, target int) ([]model.Character, error) {
	target = max(1, target)
	fetchTarget := max(target, min(maxPoolFetch, target*2))

	raw, err := s.anilist.FetchTop(ctx, fetchTarget)
	if err != nil {
		s.metrics.RecordProviderError(SourceAniList, "fetch_pool")
		s.logger.Warn("anilist pool fetch failed, using fallback characters",
			"target", target,
			"error", err,
		)
	} else if list := preferKnownAnime(model.CloneCharacters(raw)); len(list) > 0 {
		return list[:min(target, len(list))], nil
	}

	fallback := FallbackCharacters()
	return fallback[:min(target, len(fallback))], nil
}

func (s *CatalogService) FetchTopRanked(ctx context.Context, limit int) ([]model.Character, error) {
	if limit <= 0 {
		limit = maxTopRanked
	}
	limit = min(maxTopRanked, limit)

	raw, err := s.anilist.FetchTop(ctx, limit)
	if err != nil {
		s.metrics.RecordProviderError(SourceAniList, "fetch_top_ranked")
		s.logger.Warn("anilist top ranked fetch failed", "limit", limit, "error", err)
		return []model.Character{}, nil
	}
	list := model.CloneCharacters(raw)
	model.SortByRanking(list)
	return list[:min(limit, len(list))], nil
}

// Search 优先 AniList，失败时改用 Jikan；成功的非空结果进入缓存
func (s *CatalogService) Search(ctx context.Context, query string, limit int) ([]model.Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.Character{}, nil
	}
	if limit <= 0 {
		limit = defaultSearchSize
	}

	key := fmt.Sprintf("%s|%d", model.NormalizeText(query), limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return model.CloneCharacters(cached), nil
		}
	}

	fetchLimit := max(limit, min(maxSearchFetch, limit*2))
	raw, err := s.anilist.Search(ctx, query, fetchLimit)
	if err != nil {
		s.metrics.RecordProviderError(SourceAniList, "search")
		s.logger.Warn("anilist search failed, trying jikan", "query", query, "error", err)

		raw, err = s.jikan.Search(ctx, query, fetchLimit)
		if err != nil {
			s.metrics.RecordProviderError(SourceJikan, "search")
			s.logger.Warn("jikan search failed", "query", query, "error", err)
			return []model.Character{}, nil
		}
	}

	list := preferKnownAnime(model.CloneCharacters(raw))
	list = list[:min(limit, len(list))]
	if s.cache != nil && len(list) > 0 {
		s.cache.Set(key, model.CloneCharacters(list))
	}
	return list, nil
}

// FetchGallery 角色池自带图片在前，随后并发拉取 Jikan 与 AniList 图片
func (s *CatalogService) FetchGallery(ctx context.Context, character model.Character, limit int) ([]model.GalleryImage, error) {
	if limit <= 0 {
		limit = defaultGallery
	}

	images := make([]model.GalleryImage, 0, limit)
	seen := make(map[string]struct{})
	add := func(list []model.GalleryImage) {
		for _, img := range list {
			url := strings.TrimSpace(img.URL)
			if url == "" || len(images) >= limit {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			images = append(images, model.GalleryImage{URL: url, Source: img.Source})
		}
	}

	pool := make([]model.GalleryImage, 0, len(character.ImageURLs)+1)
	for _, url := range append(append([]string{}, character.ImageURLs...), character.ImageURL) {
		pool = append(pool, model.GalleryImage{URL: url, Source: gallerySourcePool})
	}
	add(pool)

	jikan := conc.Go(func() ([]model.GalleryImage, error) {
		return s.jikan.Images(ctx, character, limit)
	})
	anilist := conc.Go(func() ([]model.GalleryImage, error) {
		return s.anilist.SearchImages(ctx, character.Name, character.Anime, limit)
	})

	if list, err := jikan.Await(); err != nil {
		s.metrics.RecordProviderError(SourceJikan, "gallery")
		s.logger.Debug("jikan gallery failed", "character_id", character.ID, "error", err)
	} else {
		add(list)
	}
	if list, err := anilist.Await(); err != nil {
		s.metrics.RecordProviderError(SourceAniList, "gallery")
		s.logger.Debug("anilist gallery failed", "character_id", character.ID, "error", err)
	} else {
		add(list)
	}
	return images, nil
}

// preferKnownAnime 存在作品已知的角色时只保留这些角色
func preferKnownAnime(list []model.Character) []model.Character {
	known := make([]model.Character, 0, len(list))
	for _, c := range list {
		if model.HasKnownAnime(c.Anime) {
			known = append(known, c)
		}
	}
	if len(known) > 0 {
		return known
	}
	return list
}
