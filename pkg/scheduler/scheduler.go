package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lk2023060901/xdooria-gacha/pkg/config"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/robfig/cron/v3"
)

// ErrDuplicateJob 任务名重复
var ErrDuplicateJob = errors.New("scheduler: duplicate job name")

// JobFunc 定时任务，ctx 在调度器停止时取消
type JobFunc func(ctx context.Context) error

// Scheduler 基于 cron 的定时任务调度器，实现 app.Server
//
// 同一任务上一次执行未结束时跳过本次触发；失败按 RetryConfig 退避重试。
type Scheduler struct {
	cron   *cron.Cron
	config *Config
	logger logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New 创建调度器
func New(cfg *Config, l logger.Logger) (*Scheduler, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	loc := time.Local
	if merged.Location != "" {
		loc, err = time.LoadLocation(merged.Location)
		if err != nil {
			return nil, fmt.Errorf("invalid location %q: %w", merged.Location, err)
		}
	}

	named := l.Named("scheduler")
	opts := []cron.Option{
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{named}), cron.Recover(cronLogger{named})),
	}
	if merged.WithSeconds {
		opts = append(opts, cron.WithSeconds())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(opts...),
		config: merged,
		logger: named,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]cron.EntryID),
	}, nil
}

// AddJob 注册任务，spec 为 cron 表达式或 "@every 10m" 形式
func (s *Scheduler) AddJob(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	id, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return fmt.Errorf("add job %s failed: %w", name, err)
	}
	s.jobs[name] = id
	s.logger.Info("job registered", "job", name, "spec", spec)
	return nil
}

// AddInterval 以固定间隔注册任务
func (s *Scheduler) AddInterval(name string, every time.Duration, fn JobFunc) error {
	return s.AddJob(name, "@every "+every.String(), fn)
}

// RemoveJob 移除任务
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
	}
}

// RunNow 立即同步执行一次任务（带重试），不影响调度计划
func (s *Scheduler) RunNow(name string, fn JobFunc) error {
	return s.runWithRetry(name, fn)
}

// NextRun 任务下次触发时间
func (s *Scheduler) NextRun(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Next, true
}

func (s *Scheduler) run(name string, fn JobFunc) {
	if err := s.runWithRetry(name, fn); err != nil {
		s.logger.Error("job failed", "job", name, "error", err)
	}
}

func (s *Scheduler) runWithRetry(name string, fn JobFunc) error {
	start := time.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.Retry.InitialInterval
	b.MaxInterval = s.config.Retry.MaxInterval
	b.MaxElapsedTime = 0

	attempt := 0
	operation := func() error {
		attempt++
		return fn(s.ctx)
	}
	notify := func(err error, next time.Duration) {
		s.logger.Warn("job attempt failed, retrying",
			"job", name,
			"attempt", attempt,
			"next_retry_in", next.String(),
			"error", err,
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.config.Retry.MaxRetries), s.ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return fmt.Errorf("job %s failed after %d attempts: %w", name, attempt, err)
	}

	s.logger.Debug("job finished", "job", name, "attempts", attempt, "elapsed", time.Since(start).String())
	return nil
}

// Start 启动调度
func (s *Scheduler) Start() error {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	return nil
}

// Stop 取消运行中任务的 ctx 并等待它们退出
func (s *Scheduler) Stop() error {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// cronLogger 把 cron 内部日志转到 logger.Logger
type cronLogger struct {
	l logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
