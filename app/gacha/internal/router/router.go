package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/handler"
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/metrics"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/validator"
)

const (
	APIPrefix   = "/api/v1"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// Deps 路由依赖，Limiter、HTTPMetrics、Prometheus 可以为空
type Deps struct {
	Handler     *handler.GachaHandler
	JWT         *security.JWTManager
	Limiter     *middleware.RateLimiter
	HTTPMetrics *metrics.HTTPMetrics
	Prometheus  *prometheus.Client
}

// Register 在 r 上挂载健康检查、指标与业务接口
//
// 业务接口依次经过 JWT 认证与按用户限流，限流键依赖认证写入的 Claims。
func Register(r *gin.Engine, d Deps) {
	validator.Init()

	if d.HTTPMetrics != nil {
		r.Use(middleware.Metrics(d.HTTPMetrics))
	}

	r.GET(HealthPath, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Prometheus != nil {
		r.GET(MetricsPath, gin.WrapH(d.Prometheus.Handler()))
	}

	api := r.Group(APIPrefix)
	api.Use(middleware.Auth(&middleware.AuthConfig{JWTManager: d.JWT}))
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter))
	}
	d.Handler.Register(api)
}
