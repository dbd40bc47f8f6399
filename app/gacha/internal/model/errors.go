package model

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind 领域错误分类
type ErrorKind string

const (
	KindInsufficientResource ErrorKind = "insufficient_resource"
	KindNotFound             ErrorKind = "not_found"
	KindAuthorization        ErrorKind = "authorization"
	KindStaleState           ErrorKind = "stale_state"
	KindValidation           ErrorKind = "validation"
	KindConflict             ErrorKind = "conflict"
	KindCooldown             ErrorKind = "cooldown"
	KindProviderDegraded     ErrorKind = "provider_degraded"
	KindInternal             ErrorKind = "internal"
)

// 每种 Kind 对应的哨兵错误，GachaError 通过 Unwrap 暴露，便于 errors.Is
var (
	ErrInsufficientResource = errors.New("insufficient resource")
	ErrNotFound             = errors.New("not found")
	ErrAuthorization        = errors.New("not authorized")
	ErrStaleState           = errors.New("stale state")
	ErrValidation           = errors.New("validation failed")
	ErrConflict             = errors.New("conflict")
	ErrCooldown             = errors.New("cooldown")
	ErrProviderDegraded     = errors.New("provider degraded")
	ErrInternal             = errors.New("internal error")
)

var kindSentinels = map[ErrorKind]error{
	KindInsufficientResource: ErrInsufficientResource,
	KindNotFound:             ErrNotFound,
	KindAuthorization:        ErrAuthorization,
	KindStaleState:           ErrStaleState,
	KindValidation:           ErrValidation,
	KindConflict:             ErrConflict,
	KindCooldown:             ErrCooldown,
	KindProviderDegraded:     ErrProviderDegraded,
	KindInternal:             ErrInternal,
}

// GachaError 带上下文字段的领域错误
type GachaError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	cause   error
}

// NewError 创建领域错误，kv 为成对的键值
func NewError(kind ErrorKind, message string, kv ...any) *GachaError {
	e := &GachaError{Kind: kind, Message: message}
	if len(kv) > 0 {
		e.Details = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			e.Details[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return e
}

// Errorf 格式化消息
func Errorf(kind ErrorKind, format string, args ...any) *GachaError {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// Internal 包装持久化等基础设施错误
func Internal(err error, message string) *GachaError {
	return &GachaError{
		Kind:    KindInternal,
		Message: message,
		cause:   errors.Wrap(err, message),
	}
}

// With 追加上下文字段
func (e *GachaError) With(key string, value any) *GachaError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *GachaError) Error() string {
	if e.cause != nil {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 同时暴露原因与 Kind 哨兵
func (e *GachaError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	if sentinel, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, sentinel)
	}
	return errs
}

// KindOf 非领域错误视为 internal
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ge *GachaError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return KindInternal
}
