package config

import "errors"

var (
	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = errors.New("config validation failed")

	// ErrNilConfig 配置为 nil
	ErrNilConfig = errors.New("config cannot be nil")

	// ErrNoConfigFile 未设置配置文件，无法监听
	ErrNoConfigFile = errors.New("config file is not set")
)
