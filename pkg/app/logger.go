package app

import (
	"errors"
	"fmt"
	"sync"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// loggerRegistry 按名称保存独立配置的日志对象，如写入单独文件的 web 访问日志
type loggerRegistry struct {
	mu      sync.RWMutex
	loggers map[string]logger.Logger
}

func newLoggerRegistry() *loggerRegistry {
	return &loggerRegistry{loggers: make(map[string]logger.Logger)}
}

func (r *loggerRegistry) set(name string, l logger.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loggers[name] = l
}

func (r *loggerRegistry) get(name string) (logger.Logger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loggers[name]
	return l, ok
}

func (r *loggerRegistry) syncAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loggers {
		_ = l.Sync()
	}
}

// build 创建配置中的全部具名日志，单个失败不影响其余
func (r *loggerRegistry) build(configs map[string]*logger.Config, opts ...logger.Option) error {
	var errs []error
	for name, cfg := range configs {
		if cfg == nil {
			continue
		}
		l, err := logger.New(cfg, opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("logger %q: %w", name, err))
			continue
		}
		r.set(name, l.Named(name))
	}
	return errors.Join(errs...)
}
