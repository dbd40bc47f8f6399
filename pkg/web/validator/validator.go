package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var characterIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Init 注册 json tag 命名与自定义校验规则
//
// character_id：角色 ID，只允许小写字母、数字、下划线与连字符
func Init() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("character_id", func(fl validator.FieldLevel) bool {
		return characterIDPattern.MatchString(fl.Field().String())
	})
}
