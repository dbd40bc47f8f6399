package app

import (
	"github.com/google/wire"
)

// Components wire 收集的服务与资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// ProviderSet wire 提供者集合
var ProviderSet = wire.NewSet(
	NewBaseApp,
)

// Assemble 把 wire 注入的组件挂到 BaseApp 上
func Assemble(app *BaseApp, comps Components) *BaseApp {
	app.AppendServer(comps.Servers...)
	app.AppendCloser(comps.Closers...)
	return app
}

// CloserFunc 函数式 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error {
	return f()
}
