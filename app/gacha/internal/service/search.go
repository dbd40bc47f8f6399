package service

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
)

const (
	characterSearchLimit = 20
	galleryLimit         = 24

	defaultOwnersLimit = 25
	maxOwnersLimit     = 100
)

var (
	numericQuery = regexp.MustCompile(`^\d+$`)
	// "<角色> de|from <作品>"
	nameWithAnime = regexp.MustCompile(`^(.+)\s+(?:de|from)\s+(.+)$`)
)

// findInventoryEntry 在背包中按 id 精确匹配，否则按名称与作品打分
func findInventoryEntry(entries []model.InventoryItem, query string) (model.InventoryItem, bool) {
	query = strings.TrimSpace(query)
	normalized := model.NormalizeText(query)
	if len(entries) == 0 || normalized == "" {
		return model.InventoryItem{}, false
	}

	lower := strings.ToLower(query)
	for _, entry := range entries {
		if entry.Count > 0 && strings.ToLower(strings.TrimSpace(entry.Character.ID)) == lower {
			return entry, true
		}
	}

	var namePart, animePart string
	if m := nameWithAnime.FindStringSubmatch(normalized); m != nil {
		namePart, animePart = model.NormalizeText(m[1]), model.NormalizeText(m[2])
	}

	var (
		best      model.InventoryItem
		bestScore int
		bestRank  int64 = math.MaxInt64
		bestFavs  int64
		found     bool
	)
	for _, entry := range entries {
		if entry.Count <= 0 {
			continue
		}
		c := entry.Character
		name := model.NormalizeText(c.Name)
		anime := model.NormalizeText(c.Anime)
		id := model.NormalizeText(c.ID)
		if name == "" && anime == "" && id == "" {
			continue
		}

		score := 0
		if id != "" && id == normalized {
			score += 2000
		}
		switch {
		case name == normalized:
			score += 1200
		case strings.HasPrefix(name, normalized):
			score += 900
		case strings.Contains(name, normalized):
			score += 700
		}
		switch {
		case anime == normalized:
			score += 450
		case strings.Contains(anime, normalized):
			score += 300
		}
		if strings.Contains(strings.TrimSpace(name+" "+anime), normalized) {
			score += 250
		}
		if namePart != "" && animePart != "" && strings.Contains(name, namePart) && strings.Contains(anime, animePart) {
			score += 1500
		}
		if score <= 0 {
			continue
		}

		rank := rankKey(c.PopularityRank)
		if !found ||
			score > bestScore ||
			(score == bestScore && rank < bestRank) ||
			(score == bestScore && rank == bestRank && c.Favorites > bestFavs) {
			best, bestScore, bestRank, bestFavs, found = entry, score, rank, c.Favorites, true
		}
	}
	return best, found
}

// bestCharacterMatch 名称优先，作品与 id 加分，同分取收藏数高者
func bestCharacterMatch(query string, characters []model.Character) (model.Character, bool) {
	normalized := model.NormalizeText(query)
	if normalized == "" {
		return model.Character{}, false
	}

	var (
		best      model.Character
		bestScore int
		found     bool
	)
	for _, c := range characters {
		name := model.NormalizeText(c.Name)
		score := 0
		switch {
		case name == normalized:
			score += 500
		case strings.HasPrefix(name, normalized):
			score += 350
		case strings.Contains(name, normalized):
			score += 250
		}
		if strings.Contains(model.NormalizeText(c.Anime), normalized) {
			score += 80
		}
		if model.NormalizeText(c.ID) == normalized {
			score += 500
		}
		if score <= 0 {
			continue
		}
		if !found || score > bestScore || (score == bestScore && c.Favorites > best.Favorites) {
			best, bestScore, found = c, score, true
		}
	}
	return best, found
}

// FindCharacter 数字查询按看板序号（从 1 开始），否则先匹配看板再搜索外部目录
func (e *Engine) FindCharacter(ctx context.Context, query string) (*model.Character, error) {
	input := strings.TrimSpace(query)
	if input == "" {
		return nil, model.NewError(model.KindValidation, "character query is required")
	}
	notFound := model.NewError(model.KindNotFound, "character not found", "query", input)

	board := e.current().state.BoardCharacters
	if numericQuery.MatchString(input) {
		index, err := strconv.Atoi(input)
		if err != nil || index < 1 || index > len(board) {
			return nil, notFound.With("board_size", len(board))
		}
		c := board[index-1].Clone()
		return &c, nil
	}

	if c, ok := bestCharacterMatch(input, board); ok {
		c = c.Clone()
		return &c, nil
	}

	searched, err := e.catalog.Search(ctx, input, characterSearchLimit)
	if err != nil {
		e.metrics.RecordProviderError("catalog", "search")
		e.logger.Warn("character search failed", "query", input, "error", err)
	}
	if c, ok := bestCharacterMatch(input, searched); ok {
		c = c.Clone()
		return &c, nil
	}
	if len(searched) > 0 {
		c := searched[0].Clone()
		return &c, nil
	}
	return nil, notFound
}

// GetCharacterDetails 角色与图库，图库失败时只记录日志
func (e *Engine) GetCharacterDetails(ctx context.Context, query string) (*CharacterDetails, error) {
	if _, err := e.EnsureBoard(ctx, false); err != nil {
		e.logger.Warn("failed to ensure board before lookup", "error", err)
	}

	character, err := e.FindCharacter(ctx, query)
	if err != nil {
		return nil, err
	}

	images, err := e.catalog.FetchGallery(ctx, *character, galleryLimit)
	if err != nil {
		e.metrics.RecordProviderError("catalog", "gallery")
		e.logger.Warn("failed to fetch character gallery", "character_id", character.ID, "error", err)
		images = []model.GalleryImage{}
	}
	return &CharacterDetails{Character: *character, Images: images}, nil
}

// FindOwnersByCharacter 全部用户中持有该角色的人，按数量倒序
func (e *Engine) FindOwnersByCharacter(ctx context.Context, query string, limit int) (*OwnersResult, error) {
	input := strings.TrimSpace(query)
	if input == "" {
		return nil, model.NewError(model.KindValidation, "character query is required")
	}
	if limit <= 0 {
		limit = defaultOwnersLimit
	}
	limit = min(maxOwnersLimit, limit)

	records, err := e.store.GetAllUsers(ctx)
	if err != nil {
		return nil, model.Internal(err, "failed to load users")
	}

	type holder struct {
		userID  string
		user    *model.User
		entries []model.InventoryItem
	}

	// 1. 归一化所有背包并合并角色快照
	index := e.characterIndex()
	holders := make([]holder, 0, len(records))
	merged := make(map[string]model.Character)
	order := make([]string, 0)
	for _, record := range records {
		userID := strings.TrimSpace(record.UserID)
		if userID == "" || record.User == nil {
			continue
		}
		_, entries, _ := normalizeInventory(record.User.Inventory, index)
		holders = append(holders, holder{userID: userID, user: record.User, entries: entries})
		for _, entry := range entries {
			c := entry.Character
			if prev, ok := merged[c.ID]; ok {
				merged[c.ID] = model.Merge(&c, &prev)
				continue
			}
			merged[c.ID] = c
			order = append(order, c.ID)
		}
	}
	candidates := make([]model.Character, 0, len(order))
	for _, id := range order {
		candidates = append(candidates, merged[id])
	}

	// 2. 确定目标角色
	result := &OwnersResult{Query: input, Owners: []Owner{}}
	var target model.Character
	found := false
	lower := strings.ToLower(input)
	for _, c := range candidates {
		if strings.ToLower(c.ID) == lower {
			target, found = c, true
			break
		}
	}
	if !found {
		target, found = bestCharacterMatch(input, candidates)
	}
	if !found {
		return result, nil
	}

	// 3. 汇总持有者
	owners := make([]Owner, 0)
	for _, h := range holders {
		for _, entry := range h.entries {
			if entry.Character.ID != target.ID || entry.Count <= 0 {
				continue
			}
			display := h.user.DisplayName
			if display == "" {
				display = h.user.Username
			}
			if display == "" {
				display = "user " + h.userID
			}
			owners = append(owners, Owner{
				UserID:      h.userID,
				Username:    h.user.Username,
				DisplayName: display,
				Count:       entry.Count,
			})
			break
		}
	}
	sort.SliceStable(owners, func(i, j int) bool {
		if owners[i].Count != owners[j].Count {
			return owners[i].Count > owners[j].Count
		}
		return owners[i].DisplayName < owners[j].DisplayName
	})

	c := target.Clone()
	result.Character = &c
	result.TotalOwners = len(owners)
	if len(owners) > limit {
		owners = owners[:limit]
	}
	result.Owners = owners
	return result, nil
}
