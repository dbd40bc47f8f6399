package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/gachaconfig"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/metrics"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/provider"
	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/repository"
	"github.com/lk2023060901/xdooria-gacha/pkg/idgen"
	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
	"github.com/lk2023060901/xdooria-gacha/pkg/util/conc"
)

const (
	flightPool     = "pool"
	flightMythic   = "mythic"
	flightBoard    = "board"
	flightPrefetch = "prefetch"

	backgroundWorkers = 4

	// stateLockKey 全局状态的跨进程锁，与用户锁 "user:<id>" 不冲突
	stateLockKey = "state"
)

// Engine 抽卡经济引擎
//
// 全局状态以只读快照的形式缓存在进程内，任何修改都先作用于副本，持久化成功后再替换快照。
// 单用户操作由分段用户锁串行化；修改全局状态的操作在用户锁之后通过 lockState 获取写锁，
// 并在最新的持久化状态上修改，多个实例共享存储时不会互相覆盖。
type Engine struct {
	store   repository.Store
	catalog provider.Catalog
	config  gachaconfig.Source
	locker  repository.Locker
	ids     idgen.Generator
	metrics *metrics.GachaMetrics
	logger  logger.Logger

	rand *lockedRand
	now  func() time.Time

	stateMu sync.RWMutex
	snap    *snapshot
	writeMu sync.Mutex

	users *userLocks
	group singleflight.Group

	prefetchMu  sync.Mutex
	prefetched  *prefetchedBoard
	prefetching bool

	workers *conc.Pool[struct{}]
	tasks   sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// Option 引擎选项
type Option func(*Engine)

// WithLocker 多实例部署时的跨进程用户锁
func WithLocker(l repository.Locker) Option {
	return func(e *Engine) {
		if l != nil {
			e.locker = l
		}
	}
}

func WithMetrics(m *metrics.GachaMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithIDGenerator 交易单 id 生成器
func WithIDGenerator(g idgen.Generator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithRand 替换随机源，测试中用于得到确定的结果
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.rand = newLockedRand(r)
		}
	}
}

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine 创建引擎，调用方需要随后执行 Bootstrap
func NewEngine(
	cfg gachaconfig.Source,
	store repository.Store,
	catalog provider.Catalog,
	l logger.Logger,
	opts ...Option,
) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		store:   store,
		catalog: catalog,
		config:  cfg,
		locker:  repository.NoopLocker{},
		ids:     idgen.NewSequence(1),
		logger:  l.Named("service.engine"),
		rand:    newLockedRand(rand.New(rand.NewSource(time.Now().UnixNano()))),
		now:     time.Now,
		snap:    newSnapshot(model.NewGachaState()),
		users:   &userLocks{},
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.workers = conc.NewPool[struct{}](backgroundWorkers,
		conc.WithNonBlocking(true),
		conc.WithPanicHandler(func(p any) {
			e.logger.Error("background task panicked", "panic", p)
		}),
	)
	return e
}

// Bootstrap 初始化存储并加载状态；没有看板时立即生成，神话目录在后台预热
func (e *Engine) Bootstrap(ctx context.Context) error {
	// 1. 初始化存储
	if err := e.store.Init(ctx); err != nil {
		return model.Internal(err, "failed to init store")
	}

	// 2. 加载全局状态
	state, err := e.store.GetGachaState(ctx)
	if err != nil {
		return model.Internal(err, "failed to load gacha state")
	}
	e.replace(state.Normalize())

	// 3. 确保看板存在
	if len(e.current().state.BoardCharacters) == 0 {
		if _, err := e.EnsureBoard(ctx, true); err != nil {
			return err
		}
	}

	// 4. 后台预热神话目录
	e.background("mythic catalog warmup", func(ctx context.Context) error {
		_, err := e.EnsureMythicCatalog(ctx, false)
		return err
	})

	e.logger.Info("gacha engine bootstrapped",
		"board_size", len(e.current().state.BoardCharacters),
		"pool_size", len(e.current().state.PoolCharacters),
	)
	return nil
}

// Close 停止后台任务
func (e *Engine) Close() error {
	e.cancel()
	e.tasks.Wait()
	e.workers.Release()
	return nil
}

func (e *Engine) cfg() *gachaconfig.Config {
	if c := e.config.Current(); c != nil {
		return c
	}
	return gachaconfig.DefaultConfig()
}

// background 提交后台任务，协程池已满时丢弃并返回 false
func (e *Engine) background(name string, fn func(ctx context.Context) error) bool {
	e.tasks.Add(1)
	future := e.workers.Submit(func() (struct{}, error) {
		defer e.tasks.Done()
		if err := fn(e.ctx); err != nil {
			e.logger.Warn("background task failed", "task", name, "error", err)
		}
		return struct{}{}, nil
	})
	// 任务本身总是返回 nil，此处的错误只可能来自提交失败
	if future.Done() {
		if err := future.Err(); err != nil {
			e.tasks.Done()
			e.logger.Warn("background task rejected", "task", name, "error", err)
			return false
		}
	}
	return true
}

// Wait 等待已提交的后台任务结束
func (e *Engine) Wait() {
	e.tasks.Wait()
}

// snapshot 只读的全局状态与角色池索引
type snapshot struct {
	state    *model.GachaState
	poolByID map[string]model.Character
}

func newSnapshot(state *model.GachaState) *snapshot {
	if state == nil {
		state = model.NewGachaState()
	}
	index := make(map[string]model.Character, len(state.PoolCharacters))
	for _, c := range state.PoolCharacters {
		index[c.ID] = c
	}
	return &snapshot{state: state, poolByID: index}
}

func (e *Engine) current() *snapshot {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.snap
}

func (e *Engine) replace(state *model.GachaState) {
	next := newSnapshot(state)
	e.stateMu.Lock()
	e.snap = next
	e.stateMu.Unlock()
}

// lockState 获取全局状态写锁（进程内 writeMu 与跨进程锁），并从存储重新加载状态
func (e *Engine) lockState(ctx context.Context) (func(), error) {
	e.writeMu.Lock()
	unlock, err := e.locker.Lock(ctx, stateLockKey)
	if err != nil {
		e.writeMu.Unlock()
		e.logger.Warn("failed to lock gacha state", "error", err)
		return nil, model.NewError(model.KindConflict, "gacha state is busy, try again")
	}
	release := func() {
		unlock()
		e.writeMu.Unlock()
	}

	state, err := e.store.GetGachaState(ctx)
	if err != nil {
		release()
		return nil, model.Internal(err, "failed to reload gacha state")
	}
	e.replace(state.Normalize())
	return release, nil
}

// saveState 持久化新状态并替换快照，调用方必须持有 lockState
func (e *Engine) saveState(ctx context.Context, next *model.GachaState) error {
	if err := e.store.SaveGachaState(ctx, next); err != nil {
		return model.Internal(err, "failed to save gacha state")
	}
	e.replace(next)
	return nil
}

// commit 原子写入用户与全局状态，state 为 nil 时只写用户；调用方必须持有 lockState
func (e *Engine) commit(ctx context.Context, users map[string]*model.User, next *model.GachaState) error {
	if err := e.store.Commit(ctx, users, next); err != nil {
		return model.Internal(err, "failed to commit gacha changes")
	}
	if next != nil {
		e.replace(next)
	}
	return nil
}

func (e *Engine) saveUser(ctx context.Context, userID string, user *model.User) error {
	if err := e.store.SaveUser(ctx, userID, user); err != nil {
		return model.Internal(err, "failed to save user").With("user_id", userID)
	}
	return nil
}

// lockedRand 并发安全的随机源
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand(r *rand.Rand) *lockedRand {
	return &lockedRand{r: r}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

func (l *lockedRand) Shuffle(n int, swap func(i, j int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.r.Shuffle(n, swap)
}
