package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
)

const (
	tradeIDPrefix    = "tr_"
	recentTradeLimit = 10
)

// sweepOffers 过期到期的待处理报价，只保留最近 maxResolved 条已结束报价
func sweepOffers(offers []model.TradeOffer, now time.Time, maxResolved int) ([]model.TradeOffer, int, bool) {
	changed := false
	expired := 0
	pending := make([]model.TradeOffer, 0, len(offers))
	resolved := make([]model.TradeOffer, 0, len(offers))

	for _, raw := range offers {
		offer, ok := raw.Normalize()
		if !ok {
			changed = true
			continue
		}
		if offer.Status == model.TradePending && offer.ExpiresAt != nil && !offer.ExpiresAt.After(now) {
			resolvedAt := now
			offer.Status = model.TradeExpired
			offer.ResolvedAt = &resolvedAt
			expired++
			changed = true
		}
		if offer.Status == model.TradePending {
			pending = append(pending, offer)
		} else {
			resolved = append(resolved, offer)
		}
	}

	sortByResolved(resolved)
	if limit := max(0, maxResolved); len(resolved) > limit {
		resolved = resolved[:limit]
		changed = true
	}

	out := append(pending, resolved...)
	model.SortTradeOffers(out)
	return out, expired, changed
}

// sortByResolved 结束时间倒序，相同时按 id
func sortByResolved(offers []model.TradeOffer) {
	sort.SliceStable(offers, func(i, j int) bool {
		ti, tj := offers[i].ResolvedOrCreated(), offers[j].ResolvedOrCreated()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return offers[i].ID < offers[j].ID
	})
}

// tradeTx 持有 lockState 期间的交易单副本
type tradeTx struct {
	next    *model.GachaState
	changed bool
}

// beginTrades 调用方必须持有 lockState
func (e *Engine) beginTrades() *tradeTx {
	next := e.current().state.Clone()
	offers, expired, changed := sweepOffers(next.TradeOffers, e.now(), e.cfg().Trade.MaxResolvedHistory)
	next.TradeOffers = offers
	for range expired {
		e.metrics.RecordTrade(string(model.TradeExpired))
	}
	return &tradeTx{next: next, changed: changed}
}

func (tx *tradeTx) find(tradeID string) int {
	for i := range tx.next.TradeOffers {
		if tx.next.TradeOffers[i].ID == tradeID {
			return i
		}
	}
	return -1
}

// flush 保存清理产生的变化以及需要回写的用户
func (e *Engine) flush(ctx context.Context, tx *tradeTx, users map[string]*model.User) error {
	var state *model.GachaState
	if tx.changed {
		state = tx.next
	}
	if state == nil && len(users) == 0 {
		return nil
	}
	return e.commit(ctx, users, state)
}

// peekOffer 加锁前从存储读取报价以确定涉及的用户，读取失败时退回本地快照
func (e *Engine) peekOffer(ctx context.Context, tradeID string) (model.TradeOffer, bool) {
	state := e.current().state
	if persisted, err := e.store.GetGachaState(ctx); err == nil {
		state = persisted
	}
	for _, offer := range state.TradeOffers {
		if offer.ID == tradeID {
			return offer, true
		}
	}
	return model.TradeOffer{}, false
}

func identityOf(user *model.User, meta model.UserMeta) model.UserMeta {
	id := model.UserMeta{}
	if user != nil {
		id.Username, id.DisplayName = user.Username, user.DisplayName
	}
	if id.Username == "" {
		id.Username = meta.Username
	}
	if id.DisplayName == "" {
		id.DisplayName = meta.DisplayName
	}
	return id.Normalize()
}

// CreateTradeOffer 发起一对一交换，相同条款的待处理报价已存在时返回带有该报价的 conflict 错误
func (e *Engine) CreateTradeOffer(ctx context.Context, req TradeCreateRequest) (*model.TradeOffer, error) {
	proposerID := strings.TrimSpace(req.ProposerID)
	targetID := strings.TrimSpace(req.TargetID)
	offeredQuery := strings.TrimSpace(req.OfferedQuery)
	requestedQuery := strings.TrimSpace(req.RequestedQuery)

	// 1. 参数校验
	switch {
	case proposerID == "" || targetID == "":
		return nil, model.NewError(model.KindValidation, "both trade parties are required")
	case proposerID == targetID:
		return nil, model.NewError(model.KindValidation, "cannot trade with yourself", "user_id", proposerID)
	case req.ProposerMeta.Bot || req.TargetMeta.Bot:
		return nil, model.NewError(model.KindValidation, "bots cannot trade")
	case offeredQuery == "" || requestedQuery == "":
		return nil, model.NewError(model.KindValidation, "offered and requested characters are required")
	}

	unlock, err := e.lockUsers(ctx, proposerID, targetID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	unlockState, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlockState()
	tx := e.beginTrades()
	cfg := e.cfg()

	// 2. 待处理数量上限
	pending := 0
	for _, offer := range tx.next.TradeOffers {
		if offer.Status == model.TradePending && offer.ProposerID == proposerID {
			pending++
		}
	}
	if pending >= cfg.Trade.MaxPendingPerUser {
		if err := e.flush(ctx, tx, nil); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindConflict, "too many pending trades",
			"pending", pending,
			"limit", cfg.Trade.MaxPendingPerUser,
		)
	}

	// 3. 归一化双方背包
	proposer, err := e.loadInventory(ctx, proposerID, req.ProposerMeta)
	if err != nil {
		return nil, err
	}
	target, err := e.loadInventory(ctx, targetID, req.TargetMeta)
	if err != nil {
		return nil, err
	}
	users := make(map[string]*model.User, 2)
	if proposer.changed {
		users[proposerID] = proposer.user
	}
	if target.changed {
		users[targetID] = target.user
	}

	// 4. 模糊匹配双方角色
	offered, ok := findInventoryEntry(proposer.entries, offeredQuery)
	if !ok {
		if err := e.flush(ctx, tx, users); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindNotFound, "offered character is not in your inventory", "query", offeredQuery)
	}
	requested, ok := findInventoryEntry(target.entries, requestedQuery)
	if !ok {
		if err := e.flush(ctx, tx, users); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindNotFound, "requested character is not in the target inventory", "query", requestedQuery)
	}

	// 5. 相同条款去重
	for _, offer := range tx.next.TradeOffers {
		if offer.Status == model.TradePending &&
			offer.SameTerms(proposerID, targetID, offered.Character.ID, requested.Character.ID) {
			if err := e.flush(ctx, tx, users); err != nil {
				return nil, err
			}
			return nil, model.NewError(model.KindConflict, "an identical pending trade already exists",
				"trade_id", offer.ID,
				"duplicate", true,
				"offer", offer.Clone(),
			)
		}
	}

	// 6. 创建报价
	id, err := idgen.Prefixed(e.ids, tradeIDPrefix)
	if err != nil {
		return nil, model.Internal(err, "failed to generate trade id")
	}
	now := e.now()
	expiresAt := now.Add(cfg.TradeExpiry())
	proposerIdentity := identityOf(proposer.user, req.ProposerMeta)
	targetIdentity := identityOf(target.user, req.TargetMeta)
	offer, _ := model.TradeOffer{
		ID:                   id,
		ProposerID:           proposerID,
		ProposerUsername:     proposerIdentity.Username,
		ProposerDisplayName:  proposerIdentity.DisplayName,
		TargetID:             targetID,
		TargetUsername:       targetIdentity.Username,
		TargetDisplayName:    targetIdentity.DisplayName,
		OfferedCharacterID:   offered.Character.ID,
		RequestedCharacterID: requested.Character.ID,
		OfferedCharacter:     offered.Character.Clone(),
		RequestedCharacter:   requested.Character.Clone(),
		Status:               model.TradePending,
		CreatedAt:            now,
		ExpiresAt:            &expiresAt,
	}.Normalize()

	tx.next.TradeOffers = append(tx.next.TradeOffers, offer)
	model.SortTradeOffers(tx.next.TradeOffers)
	tx.changed = true
	if err := e.flush(ctx, tx, users); err != nil {
		return nil, err
	}

	e.metrics.RecordTrade(string(model.TradePending))
	e.logger.Info("trade offer created",
		"trade_id", offer.ID,
		"proposer_id", proposerID,
		"target_id", targetID,
		"offered_id", offer.OfferedCharacterID,
		"requested_id", offer.RequestedCharacterID,
	)
	out := offer.Clone()
	return &out, nil
}

// AcceptTradeOffer 目标方接受报价，双方各交换一份并原子提交
func (e *Engine) AcceptTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*TradeAcceptResult, error) {
	tradeID = strings.TrimSpace(tradeID)
	actorID = strings.TrimSpace(actorID)
	if tradeID == "" || actorID == "" {
		return nil, model.NewError(model.KindValidation, "trade id and user id are required")
	}

	lockIDs := []string{actorID}
	if peeked, ok := e.peekOffer(ctx, tradeID); ok {
		lockIDs = append(lockIDs, peeked.ProposerID, peeked.TargetID)
	}
	unlock, err := e.lockUsers(ctx, lockIDs...)
	if err != nil {
		return nil, err
	}
	defer unlock()

	unlockState, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlockState()
	tx := e.beginTrades()

	// 1. 状态与权限
	idx := tx.find(tradeID)
	if idx < 0 {
		if err := e.flush(ctx, tx, nil); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindNotFound, "trade not found", "trade_id", tradeID)
	}
	offer := tx.next.TradeOffers[idx]
	if offer.Status.Terminal() {
		if err := e.flush(ctx, tx, nil); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindConflict, "trade is no longer pending",
			"trade_id", tradeID,
			"status", offer.Status,
		)
	}
	if offer.TargetID != actorID {
		if err := e.flush(ctx, tx, nil); err != nil {
			return nil, err
		}
		return nil, model.NewError(model.KindAuthorization, "only the target can accept this trade", "trade_id", tradeID)
	}
	if !containsAll(lockIDs, offer.ProposerID, offer.TargetID) {
		// 加锁前读取的快照已过期，让调用方重试
		return nil, model.NewError(model.KindConflict, "trade changed while locking, try again", "trade_id", tradeID)
	}

	// 2. 重新校验双方持有
	proposer, err := e.loadInventory(ctx, offer.ProposerID, model.UserMeta{})
	if err != nil {
		return nil, err
	}
	target, err := e.loadInventory(ctx, offer.TargetID, meta)
	if err != nil {
		return nil, err
	}
	stale := func(userID, characterID string) error {
		users := make(map[string]*model.User, 2)
		if proposer.changed {
			users[offer.ProposerID] = proposer.user
		}
		if target.changed {
			users[offer.TargetID] = target.user
		}
		if err := e.flush(ctx, tx, users); err != nil {
			return err
		}
		return model.NewError(model.KindStaleState, "trade can no longer be completed",
			"trade_id", tradeID,
			"user_id", userID,
			"character_id", characterID,
		)
	}
	if proposer.user.Inventory.CountOf(offer.OfferedCharacterID) <= 0 {
		return nil, stale(offer.ProposerID, offer.OfferedCharacterID)
	}
	if target.user.Inventory.CountOf(offer.RequestedCharacterID) <= 0 {
		return nil, stale(offer.TargetID, offer.RequestedCharacterID)
	}

	// 3. 交换
	removedOffered, ok := consumeCopies(proposer.user.Inventory, offer.OfferedCharacterID, 1)
	if !ok {
		return nil, model.NewError(model.KindInternal, "failed to take offered character", "trade_id", tradeID)
	}
	removedRequested, ok := consumeCopies(target.user.Inventory, offer.RequestedCharacterID, 1)
	if !ok {
		return nil, model.NewError(model.KindInternal, "failed to take requested character", "trade_id", tradeID)
	}
	offeredCharacter := model.Merge(&removedOffered, &offer.OfferedCharacter)
	requestedCharacter := model.Merge(&removedRequested, &offer.RequestedCharacter)
	upsertInventory(proposer.user.Inventory, requestedCharacter, 1)
	upsertInventory(target.user.Inventory, offeredCharacter, 1)

	// 4. 更新报价并原子提交
	now := e.now()
	proposerIdentity := identityOf(proposer.user, model.UserMeta{})
	targetIdentity := identityOf(target.user, meta)
	offer.ProposerUsername, offer.ProposerDisplayName = proposerIdentity.Username, proposerIdentity.DisplayName
	offer.TargetUsername, offer.TargetDisplayName = targetIdentity.Username, targetIdentity.DisplayName
	offer.OfferedCharacter = offeredCharacter
	offer.RequestedCharacter = requestedCharacter
	offer.Status = model.TradeAccepted
	offer.ResolvedAt = &now
	offer.ResolvedBy = actorID
	tx.next.TradeOffers[idx] = offer
	model.SortTradeOffers(tx.next.TradeOffers)
	tx.changed = true

	users := map[string]*model.User{
		offer.ProposerID: proposer.user,
		offer.TargetID:   target.user,
	}
	if err := e.flush(ctx, tx, users); err != nil {
		return nil, err
	}

	e.metrics.RecordTrade(string(model.TradeAccepted))
	e.logger.Info("trade offer accepted",
		"trade_id", offer.ID,
		"proposer_id", offer.ProposerID,
		"target_id", offer.TargetID,
	)
	return &TradeAcceptResult{
		Offer:              offer.Clone(),
		OfferedCharacter:   offeredCharacter,
		RequestedCharacter: requestedCharacter,
	}, nil
}

func containsAll(set []string, values ...string) bool {
	for _, v := range values {
		found := false
		for _, s := range set {
			if s == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// RejectTradeOffer 目标方拒绝
func (e *Engine) RejectTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*model.TradeOffer, error) {
	return e.resolveTradeOffer(ctx, tradeID, actorID, meta, model.TradeRejected)
}

// CancelTradeOffer 提议方取消
func (e *Engine) CancelTradeOffer(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*model.TradeOffer, error) {
	return e.resolveTradeOffer(ctx, tradeID, actorID, meta, model.TradeCancelled)
}

func (e *Engine) resolveTradeOffer(
	ctx context.Context,
	tradeID, actorID string,
	meta model.UserMeta,
	status model.TradeStatus,
) (*model.TradeOffer, error) {
	tradeID = strings.TrimSpace(tradeID)
	actorID = strings.TrimSpace(actorID)
	if tradeID == "" || actorID == "" {
		return nil, model.NewError(model.KindValidation, "trade id and user id are required")
	}

	unlock, err := e.lockUsers(ctx, actorID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, userChanged, err := e.syncUser(ctx, actorID, meta)
	if err != nil {
		return nil, err
	}
	users := map[string]*model.User{}
	if userChanged {
		users[actorID] = user
	}

	unlockState, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	defer unlockState()
	tx := e.beginTrades()

	fail := func(err *model.GachaError) (*model.TradeOffer, error) {
		if ferr := e.flush(ctx, tx, users); ferr != nil {
			return nil, ferr
		}
		return nil, err
	}

	idx := tx.find(tradeID)
	if idx < 0 {
		return fail(model.NewError(model.KindNotFound, "trade not found", "trade_id", tradeID))
	}
	offer := tx.next.TradeOffers[idx]
	if offer.Status.Terminal() {
		return fail(model.NewError(model.KindConflict, "trade is no longer pending",
			"trade_id", tradeID,
			"status", offer.Status,
		))
	}

	identity := identityOf(user, meta)
	switch status {
	case model.TradeRejected:
		if offer.TargetID != actorID {
			return fail(model.NewError(model.KindAuthorization, "only the target can reject this trade", "trade_id", tradeID))
		}
		offer.TargetUsername, offer.TargetDisplayName = identity.Username, identity.DisplayName
	case model.TradeCancelled:
		if offer.ProposerID != actorID {
			return fail(model.NewError(model.KindAuthorization, "only the proposer can cancel this trade", "trade_id", tradeID))
		}
		offer.ProposerUsername, offer.ProposerDisplayName = identity.Username, identity.DisplayName
	}

	now := e.now()
	offer.Status = status
	offer.ResolvedAt = &now
	offer.ResolvedBy = actorID
	tx.next.TradeOffers[idx] = offer
	model.SortTradeOffers(tx.next.TradeOffers)
	tx.changed = true
	if err := e.flush(ctx, tx, users); err != nil {
		return nil, err
	}

	e.metrics.RecordTrade(string(status))
	e.logger.Info("trade offer resolved",
		"trade_id", tradeID,
		"status", status,
		"user_id", actorID,
	)
	out := offer.Clone()
	return &out, nil
}

// ListTradeOffers 与用户相关的待处理报价和最近结束的报价
func (e *Engine) ListTradeOffers(ctx context.Context, userID string, meta model.UserMeta) (*TradeList, error) {
	userID = strings.TrimSpace(userID)
	out := &TradeList{
		IncomingPending: []model.TradeOffer{},
		OutgoingPending: []model.TradeOffer{},
		RecentResolved:  []model.TradeOffer{},
	}
	if userID == "" {
		return out, nil
	}

	unlock, err := e.lockUsers(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	user, changed, err := e.syncUser(ctx, userID, meta)
	if err != nil {
		return nil, err
	}
	users := map[string]*model.User{}
	if changed {
		users[userID] = user
	}

	unlockState, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	tx := e.beginTrades()
	err = e.flush(ctx, tx, users)
	unlockState()
	if err != nil {
		return nil, err
	}

	resolved := make([]model.TradeOffer, 0)
	for _, offer := range tx.next.TradeOffers {
		if !offer.Involves(userID) {
			continue
		}
		switch {
		case offer.Status == model.TradePending && offer.TargetID == userID:
			out.IncomingPending = append(out.IncomingPending, offer.Clone())
		case offer.Status == model.TradePending && offer.ProposerID == userID:
			out.OutgoingPending = append(out.OutgoingPending, offer.Clone())
		case offer.Status.Terminal():
			resolved = append(resolved, offer.Clone())
		}
	}
	sortByResolved(resolved)
	if len(resolved) > recentTradeLimit {
		resolved = resolved[:recentTradeLimit]
	}
	out.RecentResolved = resolved
	return out, nil
}

// GetTradeOffer 按 id 查找报价
func (e *Engine) GetTradeOffer(ctx context.Context, tradeID string) (*model.TradeOffer, error) {
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return nil, model.NewError(model.KindValidation, "trade id is required")
	}

	unlockState, err := e.lockState(ctx)
	if err != nil {
		return nil, err
	}
	tx := e.beginTrades()
	err = e.flush(ctx, tx, nil)
	unlockState()
	if err != nil {
		return nil, err
	}

	idx := tx.find(tradeID)
	if idx < 0 {
		return nil, model.NewError(model.KindNotFound, "trade not found", "trade_id", tradeID)
	}
	out := tx.next.TradeOffers[idx].Clone()
	return &out, nil
}

// SweepTradeOffers 过期与清理，供定时任务调用
func (e *Engine) SweepTradeOffers(ctx context.Context) (bool, error) {
	unlock, err := e.lockState(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()
	tx := e.beginTrades()
	if err := e.flush(ctx, tx, nil); err != nil {
		return false, err
	}
	return tx.changed, nil
}
