package sentry

import (
	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// LoggerHook 把不低于 min 级别的日志转发到 Sentry
//
// 日志字段写入 extras；带 error 字段时按异常上报，否则按消息上报。
func (c *Client) LoggerHook(min zapcore.Level) logger.Hook {
	return logger.LevelHook(min, func(entry zapcore.Entry, fields []zapcore.Field) {
		if !c.Enabled() {
			return
		}

		enc := zapcore.NewMapObjectEncoder()
		var cause error
		for _, f := range fields {
			if f.Type == zapcore.ErrorType && cause == nil {
				if err, ok := f.Interface.(error); ok {
					cause = err
				}
			}
			f.AddTo(enc)
		}
		extras := enc.Fields
		extras["message"] = entry.Message
		if entry.Caller.Defined {
			extras["caller"] = entry.Caller.TrimmedPath()
		}

		tags := map[string]string{"logger": entry.LoggerName}
		if cause != nil {
			c.CaptureException(cause, tags, extras)
			return
		}
		c.CaptureMessage(entry.Message, levelFromZap(entry.Level), tags, extras)
	})
}

func levelFromZap(level zapcore.Level) Level {
	switch {
	case level >= zapcore.DPanicLevel:
		return LevelFatal
	case level >= zapcore.ErrorLevel:
		return LevelError
	case level >= zapcore.WarnLevel:
		return LevelWarning
	default:
		return LevelInfo
	}
}
