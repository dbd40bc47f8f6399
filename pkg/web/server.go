package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/util/conc"
	"github.com/lk2023060901/xdooria-gacha/pkg/web/middleware"
)

// Server Web 服务，实现 app.Server
type Server struct {
	engine  *gin.Engine
	config  *Config
	logger  logger.Logger
	server  *http.Server
	serve   *conc.Future[struct{}]
	addr    atomic.Value
	started atomic.Bool
}

// NewServer 创建 Web 服务，默认挂载 RequestID、Logger、Recovery，
// 其余中间件（CORS、限流、指标、认证）由调用方按需传入
func NewServer(cfg *Config, l logger.Logger, reporter middleware.PanicReporter, mws ...gin.HandlerFunc) (*Server, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	if l == nil {
		l = logger.Default()
	}

	gin.SetMode(merged.Mode)
	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Logger(l.Named("web.access")))
	engine.Use(middleware.Recovery(l.Named("web.recovery"), reporter))
	if merged.CORS.Enabled {
		engine.Use(middleware.CORS(merged.CORS.AllowOrigins))
	}
	engine.Use(mws...)

	return &Server{
		engine: engine,
		config: merged,
		logger: l.Named("web.server"),
	}, nil
}

// Router 返回 Gin 引擎，用于注册路由
func (s *Server) Router() *gin.Engine {
	return s.engine
}

// Handler 返回 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Config 生效的配置
func (s *Server) Config() *Config {
	return s.config
}

// Addr 实际监听地址，Start 之前为空
func (s *Server) Addr() string {
	if v, ok := s.addr.Load().(string); ok {
		return v
	}
	return ""
}

// Start 监听端口并在后台处理请求
func (s *Server) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerAlreadyStarted
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.started.Store(false)
		return fmt.Errorf("listen %s failed: %w", s.config.Addr, err)
	}
	s.addr.Store(ln.Addr().String())

	s.server = &http.Server{
		Handler:        s.engine,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	srv := s.server
	s.serve = conc.Go(func() (struct{}, error) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", "addr", ln.Addr().String(), "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	})

	s.logger.Info("http server started", "addr", ln.Addr().String(), "mode", s.config.Mode)
	return nil
}

// Stop 优雅关闭，超过 ShutdownTimeout 后强制断开
func (s *Server) Stop() error {
	if !s.started.Load() || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		_ = s.server.Close()
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if _, err := s.serve.Await(); err != nil {
		return err
	}

	s.logger.Info("http server exited")
	return nil
}
