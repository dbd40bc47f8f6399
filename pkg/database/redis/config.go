package redis

import "time"

// Config Redis 配置
//
// Addrs 只有一个地址时为单机模式；多个地址时为集群模式；
// 配置 MasterName 时按哨兵模式连接 Addrs 中的哨兵。
type Config struct {
	Addrs      []string `mapstructure:"addrs" json:"addrs"`
	MasterName string   `mapstructure:"master_name" json:"master_name"`
	Username   string   `mapstructure:"username" json:"username"`
	Password   string   `mapstructure:"password" json:"password"`
	// DB 仅单机/哨兵模式有效
	DB int `mapstructure:"db" json:"db"`

	// KeyPrefix 所有业务 key 的前缀，便于多环境共用一个实例
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`

	Pool PoolConfig `mapstructure:"pool" json:"pool"`
}

// PoolConfig 连接池配置
type PoolConfig struct {
	PoolSize        int           `mapstructure:"pool_size" json:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns" json:"min_idle_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" json:"conn_max_idle_time"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" json:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout" json:"pool_timeout"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Addrs:     []string{"127.0.0.1:6379"},
		KeyPrefix: "gacha:",
		Pool: PoolConfig{
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		},
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if len(c.Addrs) == 0 {
		return ErrInvalidConfig
	}
	return nil
}
