package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	weberrors "github.com/lk2023060901/xdooria-gacha/pkg/web/errors"
)

// PanicReporter 上报 panic，*sentry.Client 满足该接口
type PanicReporter interface {
	RecoverWithContext(ctx context.Context, recovered interface{}) *sentry.EventID
}

// Recovery 捕获 panic，写日志并上报，reporter 可为 nil
func Recovery(l logger.Logger, reporter PanicReporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			httpRequest, _ := httputil.DumpRequest(c.Request, false)
			if isBrokenPipe(recovered) {
				l.WarnContext(c.Request.Context(), "http broken pipe",
					"error", recovered,
					"request", string(httpRequest),
				)
				c.Abort()
				return
			}

			l.ErrorContext(c.Request.Context(), "http recovery from panic",
				"error", recovered,
				"request", string(httpRequest),
			)
			if reporter != nil {
				reporter.RecoverWithContext(c.Request.Context(), recovered)
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    weberrors.CodeInternalError,
				"message": "internal server error",
				"data":    nil,
			})
		}()
		c.Next()
	}
}

func isBrokenPipe(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	var ne *net.OpError
	if !errors.As(err, &ne) {
		return false
	}
	var se *os.SyscallError
	if !errors.As(ne.Err, &se) {
		return false
	}
	msg := strings.ToLower(se.Error())
	return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
}
