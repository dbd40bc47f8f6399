package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

const (
	SourceAniList = "anilist"

	anilistPageSize = 50
)

const characterFields = `
        id
        name { full native }
        image { large medium }
        favourites
        media(perPage: 3, type: ANIME, sort: [POPULARITY_DESC]) {
          nodes { title { romaji english native } }
        }`

var (
	topCharactersQuery = `
  query TopCharacters($page: Int!, $perPage: Int!) {
    Page(page: $page, perPage: $perPage) {
      pageInfo { currentPage lastPage hasNextPage }
      characters(sort: [FAVOURITES_DESC]) {` + characterFields + `
      }
    }
  }`

	searchCharactersQuery = `
  query SearchCharacters($search: String!, $page: Int!, $perPage: Int!) {
    Page(page: $page, perPage: $perPage) {
      characters(search: $search, sort: [FAVOURITES_DESC]) {` + characterFields + `
      }
    }
  }`

	retryableGraphQL = regexp.MustCompile(`(?i)rate limit|too many requests|internal|temporarily unavailable`)
)

type anilistTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

type anilistCharacter struct {
	ID   int64 `json:"id"`
	Name struct {
		Full   string `json:"full"`
		Native string `json:"native"`
	} `json:"name"`
	Image struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"image"`
	Favourites int64 `json:"favourites"`
	Media      struct {
		Nodes []struct {
			Title anilistTitle `json:"title"`
		} `json:"nodes"`
	} `json:"media"`
}

type anilistPage struct {
	Page struct {
		PageInfo struct {
			LastPage int `json:"lastPage"`
		} `json:"pageInfo"`
		Characters []anilistCharacter `json:"characters"`
	} `json:"Page"`
}

type graphqlResponse struct {
	Data   anilistPage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// AniListClient AniList GraphQL 客户端
type AniListClient struct {
	cfg    AniListConfig
	http   *httpClient
	logger logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAniListClient(cfg AniListConfig, l logger.Logger) *AniListClient {
	l = l.Named("provider.anilist")
	return &AniListClient{
		cfg: cfg,
		http: newHTTPClient(cfg.Timeout, retryPolicy{
			maxAttempts: cfg.MaxRetries,
			base:        cfg.RetryBase,
			max:         cfg.RetryMax,
		}, cfg.UserAgent, l),
		logger: l,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *AniListClient) query(ctx context.Context, query string, vars map[string]any) (*anilistPage, error) {
	var resp graphqlResponse
	payload := map[string]any{"query": query, "variables": vars}
	err := c.http.do(ctx, http.MethodPost, c.cfg.Endpoint, payload, &resp, func() error {
		if len(resp.Errors) == 0 {
			return nil
		}
		msg := resp.Errors[0].Message
		if msg == "" {
			msg = "anilist request failed"
		}
		resp.Errors = nil
		if retryableGraphQL.MatchString(msg) {
			return fmt.Errorf("%w: %s", ErrRetryable, msg)
		}
		return permanent(fmt.Errorf("anilist: %s", msg))
	})
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// FetchTop 按收藏数拉取 target 个角色：先取第 1、6 页，再在前 300 页内随机取页
func (c *AniListClient) FetchTop(ctx context.Context, target int) ([]model.Character, error) {
	target = max(1, target)
	perPage := min(anilistPageSize, target)

	meta, err := c.query(ctx, topCharactersQuery, map[string]any{"page": 1, "perPage": 1})
	if err != nil {
		return nil, err
	}
	lastPage := max(1, meta.Page.PageInfo.LastPage)
	pagesNeeded := max(1, (target+perPage-1)/perPage)

	result := make([]model.Character, 0, target)
	seen := make(map[int64]struct{}, target)
	fetched := make(map[int]struct{})

	consume := func(page int) error {
		if _, ok := fetched[page]; ok || len(result) >= target {
			return nil
		}
		fetched[page] = struct{}{}

		data, err := c.query(ctx, topCharactersQuery, map[string]any{"page": page, "perPage": perPage})
		if err != nil {
			if len(result) > 0 {
				c.logger.Warn("top characters interrupted, returning partial result",
					"page", page,
					"count", len(result),
					"error", err,
				)
				return errPartial
			}
			return err
		}
		for i, raw := range data.Page.Characters {
			if raw.ID == 0 {
				continue
			}
			if _, dup := seen[raw.ID]; dup {
				continue
			}
			seen[raw.ID] = struct{}{}
			rank := int64((page-1)*perPage + i + 1)
			result = append(result, mapAniListCharacter(raw, rank))
			if len(result) >= target {
				break
			}
		}
		return nil
	}

	run := func(plan []int) error {
		for _, page := range plan {
			if err := consume(page); err != nil {
				return err
			}
			if len(result) >= target {
				return nil
			}
			if err := sleepCtx(ctx, c.cfg.PageDelay); err != nil {
				return err
			}
		}
		return nil
	}

	if err := run(c.pagePlan(lastPage, pagesNeeded)); err != nil {
		if errors.Is(err, errPartial) {
			return result, nil
		}
		return nil, err
	}

	if len(result) < target && len(fetched) < lastPage {
		remaining := make([]int, 0, lastPage-len(fetched))
		for page := 1; page <= lastPage; page++ {
			if _, ok := fetched[page]; !ok {
				remaining = append(remaining, page)
			}
		}
		c.shuffle(remaining)
		missing := max(1, (target-len(result)+perPage-1)/perPage)
		if len(remaining) > missing+2 {
			remaining = remaining[:missing+2]
		}
		if err := run(remaining); err != nil && !errors.Is(err, errPartial) {
			if len(result) == 0 {
				return nil, err
			}
		}
	}
	return result, nil
}

var errPartial = errors.New("partial result")

// pagePlan 先放入高人气页，随后在随机窗口内打乱取页，不足时再从窗口之后补齐
func (c *AniListClient) pagePlan(lastPage, pagesNeeded int) []int {
	lastPage = max(1, lastPage)
	pagesNeeded = max(1, pagesNeeded)
	plan := make([]int, 0, pagesNeeded)
	seen := make(map[int]struct{})
	push := func(page int) {
		page = max(1, min(lastPage, page))
		if _, ok := seen[page]; ok {
			return
		}
		seen[page] = struct{}{}
		plan = append(plan, page)
	}

	push(1)
	if lastPage >= 6 {
		push(6)
	}

	window := max(1, min(lastPage, c.cfg.RandomTopPages))
	candidates := make([]int, 0, window)
	for page := 1; page <= window; page++ {
		if _, ok := seen[page]; !ok {
			candidates = append(candidates, page)
		}
	}
	c.shuffle(candidates)
	for _, page := range candidates {
		if len(plan) >= pagesNeeded {
			break
		}
		push(page)
	}

	if len(plan) < pagesNeeded {
		rest := make([]int, 0)
		for page := window + 1; page <= lastPage; page++ {
			rest = append(rest, page)
		}
		c.shuffle(rest)
		for _, page := range rest {
			if len(plan) >= pagesNeeded {
				break
			}
			push(page)
		}
	}

	if len(plan) > pagesNeeded {
		plan = plan[:pagesNeeded]
	}
	return plan
}

func (c *AniListClient) shuffle(pages []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rnd.Shuffle(len(pages), func(i, j int) { pages[i], pages[j] = pages[j], pages[i] })
}

// Search 按名称搜索，每页最多 50 条
func (c *AniListClient) Search(ctx context.Context, query string, limit int) ([]model.Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	limit = max(1, min(limit, anilistPageSize))

	data, err := c.query(ctx, searchCharactersQuery, map[string]any{"search": query, "page": 1, "perPage": limit})
	if err != nil {
		return nil, err
	}

	result := make([]model.Character, 0, limit)
	seen := make(map[int64]struct{})
	for _, raw := range data.Page.Characters {
		if raw.ID == 0 {
			continue
		}
		if _, dup := seen[raw.ID]; dup {
			continue
		}
		seen[raw.ID] = struct{}{}
		result = append(result, mapAniListCharacter(raw, int64(len(result)+1)))
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

// SearchImages 名称与作品都匹配的角色图片
func (c *AniListClient) SearchImages(ctx context.Context, name, anime string, limit int) ([]model.GalleryImage, error) {
	name = strings.TrimSpace(name)
	if name == "" || limit <= 0 {
		return nil, nil
	}

	data, err := c.query(ctx, searchCharactersQuery, map[string]any{"search": name, "page": 1, "perPage": max(1, min(limit, 25))})
	if err != nil {
		return nil, err
	}

	images := make([]model.GalleryImage, 0, limit)
	seen := make(map[string]struct{})
	for _, raw := range data.Page.Characters {
		if !anilistMatches(raw, name, anime) {
			continue
		}
		for _, url := range []string{raw.Image.Large, raw.Image.Medium} {
			url = strings.TrimSpace(url)
			if url == "" {
				continue
			}
			if _, dup := seen[url]; dup {
				continue
			}
			seen[url] = struct{}{}
			images = append(images, model.GalleryImage{URL: url, Source: "AniList"})
			if len(images) >= limit {
				return images, nil
			}
		}
	}
	return images, nil
}

func anilistMatches(raw anilistCharacter, name, anime string) bool {
	if !model.TextMatches(raw.Name.Full, name) && !model.TextMatches(raw.Name.Native, name) {
		return false
	}
	if !model.HasKnownAnime(anime) {
		return true
	}
	for _, node := range raw.Media.Nodes {
		for _, title := range []string{node.Title.English, node.Title.Romaji, node.Title.Native} {
			if model.TextMatches(title, anime) {
				return true
			}
		}
	}
	return false
}

func mapAniListCharacter(raw anilistCharacter, rank int64) model.Character {
	image := raw.Image.Large
	if image == "" {
		image = raw.Image.Medium
	}
	name := raw.Name.Full
	if strings.TrimSpace(name) == "" {
		name = raw.Name.Native
	}
	anime := ""
	for _, node := range raw.Media.Nodes {
		for _, title := range []string{node.Title.English, node.Title.Romaji, node.Title.Native} {
			if strings.TrimSpace(title) != "" {
				anime = title
				break
			}
		}
		if anime != "" {
			break
		}
	}

	return model.Character{
		ID:             fmt.Sprintf("anilist_%d", raw.ID),
		Name:           name,
		Anime:          anime,
		ImageURL:       image,
		ImageURLs:      model.UniqueURLs(image),
		Favorites:      raw.Favourites,
		PopularityRank: rank,
		Source:         SourceAniList,
		Sources:        []string{SourceAniList},
		SourceIDs:      map[string]int64{"anilistId": raw.ID},
	}.Clone()
}
