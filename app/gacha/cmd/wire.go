//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/handler"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/router"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/app"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	"github.com/lk2023060901/xdooria-gacha/pkg/sentry"
	webmetrics "github.com/lk2023060901/xdooria-gacha/pkg/web/metrics"
)

func InitApp(cfg *Config, mgr config.Manager, reporter *sentry.Client, l logger.Logger) (app.Application, func(), error) {
	panic(wire.Build(
		// 1. 基础框架 (BaseApp)
		provideAppOptions,
		app.ProviderSet,

		// 2. 游戏规则（热更新）
		provideGachaConfig,

		// 3. 指标
		providePrometheusConfig,
		prometheus.New,
		metrics.New,
		webmetrics.NewHTTPMetrics,

		// 4. 存储
		provideRedis,
		providePostgres,
		provideStore,
		provideLocker,

		// 5. 外部角色目录
		provideCatalog,
		wire.Bind(new(provider.Catalog), new(*provider.CatalogService)),

		// 6. 引擎
		provideIDGenerator,
		provideEngine,
		wire.Bind(new(handler.Service), new(*service.Engine)),

		// 7. HTTP 接口
		provideJWTConfig,
		security.NewJWTManager,
		provideRateLimiter,
		handler.NewGachaHandler,
		wire.Struct(new(router.Deps), "*"),
		provideWebServer,

		// 8. 维护任务
		provideScheduler,
		provideAnnouncer,
		provideMaintenance,

		// 9. 组装
		provideAppComponents,
		provideApplication,
	))
}
