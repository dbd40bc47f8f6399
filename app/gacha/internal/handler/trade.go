package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// TradeRequest 发起交易，TargetBot 为命令层解析目标账号时得到的机器人标记
type TradeRequest struct {
	TargetID          string `json:"target_id" binding:"required"`
	TargetUsername    string `json:"target_username"`
	TargetDisplayName string `json:"target_display_name"`
	TargetBot         bool   `json:"target_bot"`
	Offered           string `json:"offered" binding:"required"`
	Requested         string `json:"requested" binding:"required"`
}

// CreateTrade 以自己的一份角色交换对方的一份角色
// @Router /api/v1/trades [post]
func (h *GachaHandler) CreateTrade(c *gin.Context) {
	var req TradeRequest
	if !web.BindAndValidate(c, &req) {
		return
	}

	userID, meta := identity(c)
	offer, err := h.svc.CreateTradeOffer(c.Request.Context(), service.TradeCreateRequest{
		ProposerID:   userID,
		ProposerMeta: meta,
		TargetID:     req.TargetID,
		TargetMeta: model.UserMeta{
			Username:    req.TargetUsername,
			DisplayName: req.TargetDisplayName,
			Bot:         req.TargetBot,
		},
		OfferedQuery:   req.Offered,
		RequestedQuery: req.Requested,
	})
	if err != nil {
		h.fail(c, "create_trade", err)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "trade offer created",
		"trade_id", offer.ID,
		"user_id", userID,
		"target_id", offer.TargetID,
	)
	web.Success(c, offer)
}

// ListTrades 与自己相关的待处理与近期完成的交易
// @Router /api/v1/me/trades [get]
func (h *GachaHandler) ListTrades(c *gin.Context) {
	userID, meta := identity(c)
	list, err := h.svc.ListTradeOffers(c.Request.Context(), userID, meta)
	if err != nil {
		h.fail(c, "list_trades", err)
		return
	}
	web.Success(c, list)
}

// @Router /api/v1/trades/{id} [get]
func (h *GachaHandler) GetTrade(c *gin.Context) {
	offer, err := h.svc.GetTradeOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get_trade", err)
		return
	}
	web.Success(c, offer)
}

// AcceptTrade 目标方接受，双方持有情况在提交前重新校验
// @Router /api/v1/trades/{id}/accept [post]
func (h *GachaHandler) AcceptTrade(c *gin.Context) {
	userID, meta := identity(c)
	result, err := h.svc.AcceptTradeOffer(c.Request.Context(), c.Param("id"), userID, meta)
	if err != nil {
		h.fail(c, "accept_trade", err)
		return
	}
	web.Success(c, result)
}

// @Router /api/v1/trades/{id}/reject [post]
func (h *GachaHandler) RejectTrade(c *gin.Context) {
	h.resolveTrade(c, "reject_trade", h.svc.RejectTradeOffer)
}

// @Router /api/v1/trades/{id}/cancel [post]
func (h *GachaHandler) CancelTrade(c *gin.Context) {
	h.resolveTrade(c, "cancel_trade", h.svc.CancelTradeOffer)
}

type resolveFunc func(ctx context.Context, tradeID, actorID string, meta model.UserMeta) (*model.TradeOffer, error)

func (h *GachaHandler) resolveTrade(c *gin.Context, op string, fn resolveFunc) {
	userID, meta := identity(c)
	offer, err := fn(c.Request.Context(), c.Param("id"), userID, meta)
	if err != nil {
		h.fail(c, op, err)
		return
	}
	web.Success(c, offer)
}
