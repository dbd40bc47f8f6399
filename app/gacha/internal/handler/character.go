package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// CharacterQuery 角色查询：看板序号、名称或 ID
type CharacterQuery struct {
	Q     string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// FindCharacter 按看板序号或名称查找，未命中时查询外部目录
// @Router /api/v1/characters/search?q= [get]
func (h *GachaHandler) FindCharacter(c *gin.Context) {
	var q CharacterQuery
	if !web.BindAndValidate(c, &q) {
		return
	}
	character, err := h.svc.FindCharacter(c.Request.Context(), q.Q)
	if err != nil {
		h.fail(c, "find_character", err)
		return
	}
	web.Success(c, character)
}

// CharacterDetails 角色详情与图库，图库获取失败时返回空列表
// @Router /api/v1/characters/details?q= [get]
func (h *GachaHandler) CharacterDetails(c *gin.Context) {
	var q CharacterQuery
	if !web.BindAndValidate(c, &q) {
		return
	}
	details, err := h.svc.GetCharacterDetails(c.Request.Context(), q.Q)
	if err != nil {
		h.fail(c, "character_details", err)
		return
	}
	web.Success(c, details)
}

// Owners 持有某角色的用户
// @Router /api/v1/characters/owners?q=&limit= [get]
func (h *GachaHandler) Owners(c *gin.Context) {
	var q CharacterQuery
	if !web.BindAndValidate(c, &q) {
		return
	}
	result, err := h.svc.FindOwnersByCharacter(c.Request.Context(), q.Q, q.Limit)
	if err != nil {
		h.fail(c, "owners", err)
		return
	}
	web.Success(c, result)
}
