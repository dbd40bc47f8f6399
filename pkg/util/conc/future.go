package conc

// Future 异步任务结果
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{ch: make(chan struct{})}
}

// Go 在新的 goroutine 中执行 fn 并返回其 Future
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	go func() {
		future.value, future.err = fn()
		close(future.ch)
	}()
	return future
}

// Await 阻塞直到任务完成
func (f *Future[T]) Await() (T, error) {
	<-f.ch
	return f.value, f.err
}

// Value 阻塞并返回结果值
func (f *Future[T]) Value() T {
	<-f.ch
	return f.value
}

// Err 阻塞并返回错误
func (f *Future[T]) Err() error {
	<-f.ch
	return f.err
}

// Done 非阻塞判断任务是否完成
func (f *Future[T]) Done() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Inner 返回完成信号通道，用于 select
func (f *Future[T]) Inner() <-chan struct{} {
	return f.ch
}

// AwaitAll 等待所有任务完成，返回第一个错误
func AwaitAll[T any](futures ...*Future[T]) error {
	var firstErr error
	for _, future := range futures {
		if err := future.Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
