package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

// MaterialRequest 手动指定的合成材料
type MaterialRequest struct {
	ID    string `json:"id" binding:"required"`
	Count int    `json:"count" binding:"omitempty,min=1"`
}

// ContractRequest 合成请求
//
// Materials 与 Pick 二选一：Materials 为结构化列表，Pick 为 "id:count, id" 形式的文本。
type ContractRequest struct {
	From      string            `json:"from" binding:"required"`
	Count     int               `json:"count" binding:"omitempty,min=1"`
	Materials []MaterialRequest `json:"materials" binding:"omitempty,dive"`
	Pick      string            `json:"pick"`
}

func (r *ContractRequest) selection() ([]model.MaterialSelection, error) {
	if len(r.Materials) > 0 {
		out := make([]model.MaterialSelection, 0, len(r.Materials))
		for _, m := range r.Materials {
			out = append(out, model.MaterialSelection{ID: m.ID, Count: max(1, m.Count)})
		}
		return out, nil
	}
	return service.ParseMaterialSelection(r.Pick)
}

// ContractInfo 合成规则与可执行次数
// @Router /api/v1/me/contracts [get]
func (h *GachaHandler) ContractInfo(c *gin.Context) {
	userID, meta := identity(c)
	info, err := h.svc.GetContractInfo(c.Request.Context(), userID, meta)
	if err != nil {
		h.fail(c, "contract_info", err)
		return
	}
	web.Success(c, info)
}

// ExecuteContract 执行合成
// @Router /api/v1/me/contracts [post]
func (h *GachaHandler) ExecuteContract(c *gin.Context) {
	var req ContractRequest
	if !web.BindAndValidate(c, &req) {
		return
	}
	selection, err := req.selection()
	if err != nil {
		h.fail(c, "contract", err)
		return
	}

	userID, meta := identity(c)
	result, err := h.svc.ExecuteContract(c.Request.Context(), userID, req.From, max(1, req.Count), meta, selection)
	if err != nil {
		h.fail(c, "contract", err)
		return
	}
	web.Success(c, result)
}
