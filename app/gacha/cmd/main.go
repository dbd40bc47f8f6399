package main

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/job"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/app"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/postgres"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/notify/feishu"
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
	"github.com/lk2023060901/xdooria-gacha/pkg/scheduler"
	"github.com/lk2023060901/xdooria-gacha/pkg/security"
	"github.com/lk2023060901/xdooria-gacha/pkg/sentry"
	"github.com/lk2023060901/xdooria-gacha/pkg/web"
)

const (
	// gachaKey 游戏规则在配置文件中的节点，支持热更新
	gachaKey = "gacha"

	serviceName = "gacha"
)

// Config 定义 Gacha 服务的完整配置结构
//
// gacha 节点不在此结构中，由 config.Watcher 单独监听。
type Config struct {
	Log     logger.Config             `mapstructure:"log"`
	Loggers map[string]*logger.Config `mapstructure:"loggers"`

	// HTTP 服务配置，限流参数在 web.rate_limit
	Web web.Config `mapstructure:"web"`

	// JWT 配置
	JWT security.JWTConfig `mapstructure:"jwt"`

	// 存储配置
	Store    repository.Config `mapstructure:"store"`
	Redis    redis.Config      `mapstructure:"redis"`
	Postgres postgres.Config   `mapstructure:"postgres"`

	// 外部角色目录
	Provider provider.Config `mapstructure:"provider"`

	// 交易 ID 生成
	IDGen idgen.Config `mapstructure:"idgen"`

	// 维护任务
	Scheduler   scheduler.Config `mapstructure:"scheduler"`
	Maintenance job.Config       `mapstructure:"maintenance"`
	Feishu      feishu.Config    `mapstructure:"feishu"`

	Prometheus prometheus.Config `mapstructure:"prometheus"`
	Sentry     sentry.Config     `mapstructure:"sentry"`
}

var (
	tokenUser  = pflag.String("issue-token", "", "sign a jwt for the given user id and exit")
	tokenRoles = pflag.StringSlice("token-roles", nil, "roles carried by --issue-token")
)

func main() {
	var cfg Config

	// 1. 加载配置
	mgr, err := app.LoadConfig(&cfg)
	if err != nil {
		panic(err)
	}

	// 2. 初始化错误上报，DSN 为空时不上报
	reporter, err := sentry.New(&cfg.Sentry)
	if err != nil {
		panic(err)
	}
	defer reporter.Close()

	// 3. 初始化主日志，error 级别同步到 sentry
	l, err := logger.New(&cfg.Log, logHooks(reporter), logger.WithGlobalFields("service", serviceName))
	if err != nil {
		panic(err)
	}
	logger.SetDefault(l)
	l.Info("config loaded", "path", app.GetConfigPath())

	if *tokenUser != "" {
		if err := issueToken(os.Stdout, &cfg.JWT, *tokenUser, *tokenRoles); err != nil {
			l.Error("failed to issue token", "user_id", *tokenUser, "error", err)
		}
		return
	}

	// 4. 通过 Wire 初始化应用
	application, cleanup, err := InitApp(&cfg, mgr, reporter, l)
	if err != nil {
		l.Error("failed to initialize application", "error", err)
		return
	}
	defer cleanup()

	// 5. 运行服务
	if err := application.Run(); err != nil {
		l.Error("application exited with error", "error", err)
	}
}
