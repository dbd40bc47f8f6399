package config

import (
	"sync"
)

// Watcher 监听 Manager 中某个 key 的热更新
//
// 每次文件变化都会重新解析 key 对应的配置，与默认值合并并通过校验后，
// 才替换当前值并通知订阅者；解析或校验失败时保留旧值并调用 onError。
type Watcher[T any] struct {
	mgr       Manager
	key       string
	defaults  func() *T
	validator *Validator
	onError   func(error)

	mu        sync.RWMutex
	current   *T
	callbacks []func(*T)
}

// NewWatcher 创建监听器并立即加载一次当前值
func NewWatcher[T any](mgr Manager, key string, defaults func() *T, onError func(error)) (*Watcher[T], error) {
	w := &Watcher[T]{
		mgr:       mgr,
		key:       key,
		defaults:  defaults,
		validator: NewValidator(),
		onError:   onError,
	}

	cfg, err := w.load()
	if err != nil {
		return nil, err
	}
	w.current = cfg

	if err := mgr.Watch(w.reload); err != nil && err != ErrNoConfigFile {
		return nil, err
	}
	return w, nil
}

// Current 返回当前生效的配置
func (w *Watcher[T]) Current() *T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange 注册变更回调
func (w *Watcher[T]) OnChange(callback func(*T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

func (w *Watcher[T]) load() (*T, error) {
	loaded := new(T)
	if err := w.mgr.UnmarshalKey(w.key, loaded); err != nil {
		return nil, err
	}

	var base *T
	if w.defaults != nil {
		base = w.defaults()
	}
	merged, err := MergeConfig(base, loaded)
	if err != nil {
		return nil, err
	}
	if err := w.validator.Validate(merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func (w *Watcher[T]) reload() {
	cfg, err := w.load()
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}

	w.mu.Lock()
	w.current = cfg
	callbacks := append([]func(*T){}, w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}
