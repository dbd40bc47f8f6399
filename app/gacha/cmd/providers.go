package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/job"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/router"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/service"
	"github.com/lk2023060901/xdooria-gacha/pkg/app"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/notify"
	"github.com/lk2023060901/xdooria-gacha/pkg/notify/feishu"
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	"github.com/lk2023060901/xdooria-gacha/pkg/scheduler"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	"github.com/lk2023060901/xdooria-gacha/pkg/sentry"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
)

const (
	driverRedis    = "redis"
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// bootstrapTimeout 启动时加载状态、生成首个看板的时限
const bootstrapTimeout = time.Minute

// webLogger HTTP 层使用的具名日志，loggers.web 未配置时从主日志派生
const webLogger = "web"

// sensitiveLogKeys 写出前脱敏的日志字段
var sensitiveLogKeys = []string{"token", "authorization", "secret_key", "password", "webhook_url"}

// logHooks 先脱敏，error 及以上再上报 sentry
func logHooks(reporter *sentry.Client) logger.Option {
	return logger.WithHooks(
		logger.SensitiveDataHook(sensitiveLogKeys...),
		reporter.LoggerHook(zapcore.ErrorLevel),
	)
}

// provideAppOptions 主日志已在 main 中创建，具名日志挂同样的 hook
func provideAppOptions(cfg *Config, reporter *sentry.Client, l logger.Logger) []app.Option {
	return []app.Option{
		app.WithName(app.AppName),
		app.WithLogger(l),
		app.WithLogOptions(logHooks(reporter)),
		app.WithNamedLoggers(cfg.Loggers),
	}
}

// provideGachaConfig 监听 gacha 节点，文件变更后新规则对之后的请求生效
func provideGachaConfig(mgr config.Manager, l logger.Logger) (gachaconfig.Source, error) {
	log := l.Named("gachaconfig")
	w, err := config.NewWatcher(mgr, gachaKey, gachaconfig.DefaultConfig, func(err error) {
		log.Warn("gacha config reload rejected, keeping previous rules", "error", err)
	})
	if err != nil {
		return nil, fmt.Errorf("load gacha config: %w", err)
	}
	w.OnChange(func(c *gachaconfig.Config) {
		log.Info("gacha config reloaded",
			"board_size", c.BoardSize,
			"rolls_per_day", c.RollsPerDay,
		)
	})
	return w, nil
}

func providePrometheusConfig(cfg *Config) *prometheus.Config {
	return &cfg.Prometheus
}

// provideRedis redis 驱动或配置了地址时才连接
func provideRedis(cfg *Config) (*redis.Client, func(), error) {
	if cfg.Store.Driver != driverRedis && len(cfg.Redis.Addrs) == 0 {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func providePostgres(cfg *Config) (*postgres.Client, func(), error) {
	if cfg.Store.Driver != driverPostgres {
		return nil, func() {}, nil
	}
	client, err := postgres.New(context.Background(), &cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	return client, client.Close, nil
}

func provideStore(
	cfg *Config,
	rdb *redis.Client,
	pg *postgres.Client,
	m *metrics.GachaMetrics,
	l logger.Logger,
) (repository.Store, error) {
	switch cfg.Store.Driver {
	case driverRedis:
		return repository.NewRedisStore(rdb, l, m), nil
	case driverPostgres:
		return repository.NewPostgresStore(pg, l, m), nil
	case driverMemory:
		l.Warn("using in-memory store, state is lost on restart")
		return repository.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// provideLocker 多实例共享 redis 时使用分布式锁
func provideLocker(cfg *Config, rdb *redis.Client, l logger.Logger) repository.Locker {
	if rdb == nil {
		return repository.NoopLocker{}
	}
	return repository.NewRedisLocker(rdb, &cfg.Store, l)
}

func provideCatalog(cfg *Config, m *metrics.GachaMetrics, l logger.Logger) (*provider.CatalogService, func()) {
	catalog := provider.NewCatalogService(&cfg.Provider, m, l)
	return catalog, func() { _ = catalog.Close() }
}

func provideIDGenerator(cfg *Config) (idgen.Generator, error) {
	return idgen.NewFromConfig(&cfg.IDGen)
}

// provideEngine 创建引擎并加载状态，失败时中止启动
func provideEngine(
	src gachaconfig.Source,
	store repository.Store,
	catalog provider.Catalog,
	locker repository.Locker,
	m *metrics.GachaMetrics,
	ids idgen.Generator,
	l logger.Logger,
) (*service.Engine, error) {
	engine := service.NewEngine(src, store, catalog, l,
		service.WithLocker(locker),
		service.WithMetrics(m),
		service.WithIDGenerator(ids),
	)

	ctx, cancel := context.WithTimeout(context.Background(), bootstrapTimeout)
	defer cancel()
	if err := engine.Bootstrap(ctx); err != nil {
		_ = engine.Close()
		return nil, fmt.Errorf("bootstrap engine: %w", err)
	}
	return engine, nil
}

func provideJWTConfig(cfg *Config) *security.JWTConfig {
	return &cfg.JWT
}

// provideRateLimiter 未启用时返回 nil，路由不挂载限流中间件
func provideRateLimiter(cfg *Config, l logger.Logger) (*middleware.RateLimiter, func(), error) {
	if !cfg.Web.RateLimit.Enabled {
		return nil, func() {}, nil
	}
	merged, err := config.MergeConfig(middleware.DefaultRateLimitConfig(), &cfg.Web.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("merge rate limit config: %w", err)
	}
	limiter := middleware.NewRateLimiter(l.Named("web.ratelimit"), merged)
	return limiter, func() { _ = limiter.Close() }, nil
}

func provideWebServer(cfg *Config, reporter *sentry.Client, deps router.Deps, base *app.BaseApp) (*web.Server, error) {
	srv, err := web.NewServer(&cfg.Web, base.Logger(webLogger), reporter)
	if err != nil {
		return nil, err
	}
	router.Register(srv.Router(), deps)
	return srv, nil
}

func provideScheduler(cfg *Config, l logger.Logger) (*scheduler.Scheduler, error) {
	return scheduler.New(&cfg.Scheduler, l)
}

// provideAnnouncer 按配置组合看板公告渠道，全部未配置时返回 nil
func provideAnnouncer(cfg *Config, rdb *redis.Client) (job.Announcer, error) {
	var announcers job.Announcers
	if rdb != nil {
		announcers = append(announcers, job.NewRedisAnnouncer(rdb, cfg.Maintenance.Channel))
	}

	var notifiers []notify.Notifier
	if cfg.Feishu.WebhookURL != "" {
		adapter, err := feishu.NewAdapter(&cfg.Feishu)
		if err != nil {
			return nil, fmt.Errorf("create feishu adapter: %w", err)
		}
		notifiers = append(notifiers, adapter)
	}
	if len(notifiers) > 0 {
		announcers = append(announcers, job.NewNotifyAnnouncer(notify.NewMulti(notifiers...)))
	}

	if len(announcers) == 0 {
		return nil, nil
	}
	return announcers, nil
}

func provideMaintenance(
	cfg *Config,
	engine *service.Engine,
	sched *scheduler.Scheduler,
	announcer job.Announcer,
	l logger.Logger,
) (*job.Maintenance, error) {
	return job.New(&cfg.Maintenance, engine, sched, announcer, l)
}

// provideAppComponents 服务按顺序启动；关闭时 Closer 逆序执行，引擎先于存储连接释放
func provideAppComponents(
	srv *web.Server,
	sched *scheduler.Scheduler,
	promClient *prometheus.Client,
	engine *service.Engine,
	_ *job.Maintenance,
) app.Components {
	return app.Components{
		Servers: []app.Server{
			sched,
			promClient,
			srv,
		},
		Closers: []app.Closer{
			engine,
		},
	}
}

func provideApplication(base *app.BaseApp, comps app.Components) app.Application {
	return app.Assemble(base, comps)
}

// issueToken 签发运维令牌并写到 w，不启动服务
func issueToken(w io.Writer, cfg *security.JWTConfig, userID string, roles []string) error {
	jm, err := security.NewJWTManager(cfg)
	if err != nil {
		return fmt.Errorf("create jwt manager: %w", err)
	}
	token, err := jm.GenerateToken(&security.Claims{UserID: userID, Username: userID, Roles: roles})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, token)
	return err
}
