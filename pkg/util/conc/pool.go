package conc

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// ErrPoolClosed 协程池已释放
var ErrPoolClosed = ants.ErrPoolClosed

// Pool 基于 ants 的泛型协程池，提交任务返回 Future
type Pool[T any] struct {
	inner *ants.Pool
}

// PoolOption 协程池选项
type PoolOption func(*[]ants.Option)

// WithPreAlloc 预分配 worker 队列
func WithPreAlloc(preAlloc bool) PoolOption {
	return func(opts *[]ants.Option) {
		*opts = append(*opts, ants.WithPreAlloc(preAlloc))
	}
}

// WithNonBlocking 池满时 Submit 立即返回 ants.ErrPoolOverload
func WithNonBlocking(nonBlocking bool) PoolOption {
	return func(opts *[]ants.Option) {
		*opts = append(*opts, ants.WithNonblocking(nonBlocking))
	}
}

// WithPanicHandler 设置任务 panic 处理函数
func WithPanicHandler(handler func(any)) PoolOption {
	return func(opts *[]ants.Option) {
		*opts = append(*opts, ants.WithPanicHandler(handler))
	}
}

// NewPool 创建容量为 cap 的协程池，cap 非法时 panic
func NewPool[T any](cap int, opts ...PoolOption) *Pool[T] {
	antsOpts := make([]ants.Option, 0, len(opts))
	for _, opt := range opts {
		opt(&antsOpts)
	}
	pool, err := ants.NewPool(cap, antsOpts...)
	if err != nil {
		panic(fmt.Sprintf("conc: failed to create pool: %v", err))
	}
	return &Pool[T]{inner: pool}
}

// Submit 提交任务；提交失败时返回的 Future 立即完成并携带错误
func (p *Pool[T]) Submit(fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	err := p.inner.Submit(func() {
		defer close(future.ch)
		future.value, future.err = fn()
	})
	if err != nil {
		future.err = err
		close(future.ch)
	}
	return future
}

// Running 正在运行的 worker 数
func (p *Pool[T]) Running() int {
	return p.inner.Running()
}

// Cap 池容量
func (p *Pool[T]) Cap() int {
	return p.inner.Cap()
}

// Free 空闲 worker 数
func (p *Pool[T]) Free() int {
	return p.inner.Free()
}

// Release 释放协程池，已提交的任务继续执行
func (p *Pool[T]) Release() {
	p.inner.Release()
}
