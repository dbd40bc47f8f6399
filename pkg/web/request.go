package web

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// BindAndValidate 绑定请求参数并校验，失败时已写出响应
func BindAndValidate(c *gin.Context, obj any) bool {
	if err := c.ShouldBind(obj); err != nil {
		var errs validator.ValidationErrors
		if stderrors.As(err, &errs) {
			Error(c, errors.CodeInvalidParams, errs.Error(), nil)
			return false
		}
		Error(c, errors.CodeInvalidParams, "invalid request parameters: "+err.Error(), nil)
		return false
	}
	return true
}
