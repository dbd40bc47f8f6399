package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// Profile 当前用户概览
// @Router /api/v1/me [get]
func (h *GachaHandler) Profile(c *gin.Context) {
	userID, meta := identity(c)
	profile, err := h.svc.GetProfile(c.Request.Context(), userID, meta)
	if err != nil {
		h.fail(c, "profile", err)
		return
	}
	web.Success(c, profile)
}

// Inventory 排序后的背包
// @Router /api/v1/me/inventory [get]
func (h *GachaHandler) Inventory(c *gin.Context) {
	userID, meta := identity(c)
	view, err := h.svc.GetInventory(c.Request.Context(), userID, meta)
	if err != nil {
		h.fail(c, "inventory", err)
		return
	}
	web.Success(c, view)
}

// ClaimDaily 领取每日奖励次数
// @Router /api/v1/me/daily [post]
func (h *GachaHandler) ClaimDaily(c *gin.Context) {
	userID, meta := identity(c)
	claim, err := h.svc.ClaimDaily(c.Request.Context(), userID, meta)
	if err != nil {
		h.fail(c, "claim_daily", err)
		return
	}
	web.Success(c, claim)
}
