package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// RollRequest 抽卡请求，count 缺省为 1
type RollRequest struct {
	Count int `json:"count" binding:"omitempty,min=1,max=100"`
}

// Roll 单抽或连抽
// @Router /api/v1/me/rolls [post]
func (h *GachaHandler) Roll(c *gin.Context) {
	var req RollRequest
	if c.Request.ContentLength != 0 && !web.BindAndValidate(c, &req) {
		return
	}
	count := max(1, req.Count)

	userID, meta := identity(c)
	result, err := h.svc.RollMany(c.Request.Context(), userID, count, meta)
	if err != nil {
		h.fail(c, "roll", err)
		return
	}
	web.Success(c, result)
}
