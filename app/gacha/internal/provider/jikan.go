package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

const (
	SourceJikan = "jikan"

	jikanPageSize = 25
)

var malIDPattern = regexp.MustCompile(`^mal_(\d+)$`)

type jikanImage struct {
	JPG struct {
		ImageURL string `json:"image_url"`
	} `json:"jpg"`
	WebP struct {
		ImageURL string `json:"image_url"`
	} `json:"webp"`
}

func (i jikanImage) url() string {
	if i.WebP.ImageURL != "" {
		return i.WebP.ImageURL
	}
	return i.JPG.ImageURL
}

type jikanCharacter struct {
	MalID     int64      `json:"mal_id"`
	Name      string     `json:"name"`
	Favorites int64      `json:"favorites"`
	Rank      int64      `json:"rank"`
	Images    jikanImage `json:"images"`
	Anime     []struct {
		Anime struct {
			Title         string `json:"title"`
			TitleEnglish  string `json:"title_english"`
			TitleJapanese string `json:"title_japanese"`
		} `json:"anime"`
	} `json:"anime"`
}

// JikanClient Jikan（MyAnimeList）REST 客户端
type JikanClient struct {
	cfg    JikanConfig
	http   *httpClient
	logger logger.Logger
}

func NewJikanClient(cfg JikanConfig, l logger.Logger) *JikanClient {
	l = l.Named("provider.jikan")
	return &JikanClient{
		cfg: cfg,
		http: newHTTPClient(cfg.Timeout, retryPolicy{
			maxAttempts: cfg.MaxRetries,
			base:        cfg.RetryBase,
			max:         cfg.RetryMax,
		}, "", l),
		logger: l,
	}
}

func (c *JikanClient) get(ctx context.Context, path string, params url.Values, out any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return c.http.do(ctx, http.MethodGet, u, nil, out, nil)
}

func (c *JikanClient) searchRaw(ctx context.Context, query string, limit int) ([]jikanCharacter, error) {
	var resp struct {
		Data []jikanCharacter `json:"data"`
	}
	params := url.Values{
		"q":        {query},
		"limit":    {strconv.Itoa(max(1, min(limit, jikanPageSize)))},
		"order_by": {"favorites"},
		"sort":     {"desc"},
	}
	if err := c.get(ctx, "/characters", params, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Search 按收藏数倒序搜索
func (c *JikanClient) Search(ctx context.Context, query string, limit int) ([]model.Character, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	raw, err := c.searchRaw(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	result := make([]model.Character, 0, len(raw))
	seen := make(map[int64]struct{})
	for _, rc := range raw {
		if rc.MalID == 0 {
			continue
		}
		if _, dup := seen[rc.MalID]; dup {
			continue
		}
		seen[rc.MalID] = struct{}{}
		result = append(result, mapJikanCharacter(rc, int64(len(result)+1)))
	}
	return result, nil
}

// Pictures 指定 MAL 角色的全部图片
func (c *JikanClient) Pictures(ctx context.Context, malID int64) ([]string, error) {
	if malID <= 0 {
		return nil, nil
	}
	var resp struct {
		Data []jikanImage `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/characters/%d/pictures", malID), nil, &resp); err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(resp.Data))
	for _, img := range resp.Data {
		if u := img.url(); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// Images 先按 MAL id 取图，取不到时按名称与作品搜索
func (c *JikanClient) Images(ctx context.Context, character model.Character, limit int) ([]model.GalleryImage, error) {
	if limit <= 0 {
		return nil, nil
	}
	images := make([]model.GalleryImage, 0, limit)
	seen := make(map[string]struct{})
	add := func(urls []string) {
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" || len(images) >= limit {
				continue
			}
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			images = append(images, model.GalleryImage{URL: u, Source: "Jikan"})
		}
	}

	add([]string{character.ImageURL})

	var lastErr error
	fetchedByID := false
	if malID := parseMalID(character); malID > 0 && len(images) < limit {
		urls, err := c.Pictures(ctx, malID)
		if err != nil {
			lastErr = err
		} else if len(urls) > 0 {
			fetchedByID = true
		}
		add(urls)
	}

	if !fetchedByID && strings.TrimSpace(character.Name) != "" && len(images) < limit {
		raw, err := c.searchRaw(ctx, character.Name, limit)
		if err != nil {
			lastErr = err
		}
		for _, rc := range raw {
			if model.TextMatches(rc.Name, character.Name) && jikanAnimeMatches(rc, character.Anime) {
				add([]string{rc.Images.url()})
			}
		}
	}

	if len(images) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return images, nil
}

func jikanAnimeMatches(rc jikanCharacter, anime string) bool {
	if !model.HasKnownAnime(anime) {
		return true
	}
	for _, entry := range rc.Anime {
		for _, title := range []string{entry.Anime.Title, entry.Anime.TitleEnglish, entry.Anime.TitleJapanese} {
			if model.TextMatches(title, anime) {
				return true
			}
		}
	}
	return false
}

func parseMalID(c model.Character) int64 {
	if id := c.SourceIDs["malId"]; id > 0 {
		return id
	}
	if m := malIDPattern.FindStringSubmatch(c.ID); m != nil {
		id, _ := strconv.ParseInt(m[1], 10, 64)
		return id
	}
	return 0
}

func mapJikanCharacter(rc jikanCharacter, fallbackRank int64) model.Character {
	anime := ""
	if len(rc.Anime) > 0 {
		anime = rc.Anime[0].Anime.Title
		if anime == "" {
			anime = rc.Anime[0].Anime.TitleEnglish
		}
	}
	rank := rc.Rank
	if rank <= 0 {
		rank = fallbackRank
	}
	image := rc.Images.url()
	return model.Character{
		ID:             fmt.Sprintf("mal_%d", rc.MalID),
		Name:           rc.Name,
		Anime:          anime,
		ImageURL:       image,
		ImageURLs:      model.UniqueURLs(image),
		Favorites:      rc.Favorites,
		PopularityRank: rank,
		Source:         SourceJikan,
		Sources:        []string{SourceJikan},
		SourceIDs:      map[string]int64{"malId": rc.MalID},
	}.Clone()
}
