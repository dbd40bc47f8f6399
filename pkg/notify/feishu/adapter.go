package feishu

import (
	"context"
	"fmt"

	"github.com/lk2023060901/xdooria-gacha/pkg/notify"
)

// Adapter 实现 notify.Notifier
type Adapter struct {
	client *Client
}

// NewAdapter 创建飞书渠道
func NewAdapter(cfg *Config) (*Adapter, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client}, nil
}

func (a *Adapter) Send(ctx context.Context, notice *notify.Notice) error {
	return a.client.Send(ctx, toPost(notice))
}

func (a *Adapter) Name() string {
	return "feishu"
}

// toPost 转换为富文本：标题、摘要、字段逐行、链接、@所有人
func toPost(notice *notify.Notice) *Post {
	msg := NewPost(fmt.Sprintf("%s %s", levelEmoji(notice.Level), notice.Title))

	if notice.Summary != "" {
		msg.AddLine(Text(notice.Summary))
	}
	for _, f := range notice.Fields {
		msg.AddLine(Text(fmt.Sprintf("%s: %s", f.Key, f.Value)))
	}
	if !notice.Timestamp.IsZero() {
		msg.AddLine(Text(fmt.Sprintf("时间: %s", notice.Timestamp.Format("2006-01-02 15:04:05"))))
	}
	for _, l := range notice.Links {
		msg.AddLine(Link(l.Text, l.URL))
	}
	if notice.AtAll {
		msg.AddLine(AtAll())
	}
	return msg
}

func levelEmoji(level notify.Level) string {
	switch level {
	case notify.LevelCritical:
		return "🔴"
	case notify.LevelWarning:
		return "🟡"
	default:
		return "🟢"
	}
}
