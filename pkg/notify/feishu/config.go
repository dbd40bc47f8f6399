package feishu

import (
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/notify"
)

// Config 自定义机器人配置
type Config struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`

	// Secret 为空时不签名
	Secret string `mapstructure:"secret" json:"secret"`

	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

func DefaultConfig() *Config {
	return &Config{Timeout: 5 * time.Second}
}

// Validate WebhookURL 必须是 http(s) 地址
func (c *Config) Validate() error {
	switch {
	case c.WebhookURL == "":
		return fmt.Errorf("%w: webhook_url is required", notify.ErrInvalidConfig)
	case !strings.HasPrefix(c.WebhookURL, "https://") && !strings.HasPrefix(c.WebhookURL, "http://"):
		return fmt.Errorf("%w: webhook_url must be an http(s) url", notify.ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", notify.ErrInvalidConfig)
	}
	return nil
}
