package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// BoardResponse 看板与刷新倒计时
type BoardResponse struct {
	Characters []model.Character        `json:"characters"`
	Refresh    service.BoardRefreshInfo `json:"refresh"`
}

// Board 当前看板，过期时先刷新
// @Router /api/v1/board [get]
func (h *GachaHandler) Board(c *gin.Context) {
	board, err := h.svc.GetBoard(c.Request.Context())
	if err != nil {
		h.fail(c, "board", err)
		return
	}
	web.Success(c, BoardResponse{Characters: board, Refresh: h.svc.GetBoardRefreshInfo()})
}

// @Router /api/v1/board/refresh [get]
func (h *GachaHandler) BoardRefreshInfo(c *gin.Context) {
	web.Success(c, h.svc.GetBoardRefreshInfo())
}

// RefreshBoard 管理员强制刷新看板
// @Router /api/v1/board/refresh [post]
func (h *GachaHandler) RefreshBoard(c *gin.Context) {
	userID, _ := identity(c)
	board, err := h.svc.RefreshBoard(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "refresh_board", err)
		return
	}
	h.logger.InfoContext(c.Request.Context(), "board refreshed by admin", "user_id", userID, "size", len(board))
	web.Success(c, BoardResponse{Characters: board, Refresh: h.svc.GetBoardRefreshInfo()})
}

// CharactersByRarity 角色池中某稀有度的角色
// @Router /api/v1/characters?rarity=epic [get]
func (h *GachaHandler) CharactersByRarity(c *gin.Context) {
	list, err := h.svc.GetCharactersByRarity(c.Request.Context(), c.Query("rarity"))
	if err != nil {
		h.fail(c, "characters_by_rarity", err)
		return
	}
	web.Success(c, list)
}

// @Router /api/v1/characters/mythic [get]
func (h *GachaHandler) MythicCatalog(c *gin.Context) {
	list, err := h.svc.GetMythicCatalog(c.Request.Context())
	if err != nil {
		h.fail(c, "mythic_catalog", err)
		return
	}
	web.Success(c, list)
}
