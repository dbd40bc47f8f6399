package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-gacha/app/gacha/internal/model"
	"github.com/lk2023060901/xdooria-gacha/pkg/database/redis"
	"github.com/lk2023060901/xdooria-gacha/pkg/notify"
)

// DefaultChannel 看板公告的 Pub/Sub 频道
const DefaultChannel = "gacha:board"

// maxListedCharacters 通知正文中列出的角色数
const maxListedCharacters = 5

// BoardAnnouncement 新看板上线公告
type BoardAnnouncement struct {
	UpdatedAt     time.Time         `json:"updatedAt"`
	NextRefreshAt *time.Time        `json:"nextRefreshAt,omitempty"`
	Characters    []model.Character `json:"characters"`
}

// Announcer 看板公告渠道
type Announcer interface {
	AnnounceBoard(ctx context.Context, a *BoardAnnouncement) error
}

// RedisAnnouncer 通过 redis Pub/Sub 广播公告，命令层进程订阅后转发给玩家
type RedisAnnouncer struct {
	client  *redis.Client
	channel string
}

func NewRedisAnnouncer(client *redis.Client, channel string) *RedisAnnouncer {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisAnnouncer{client: client, channel: channel}
}

func (r *RedisAnnouncer) AnnounceBoard(ctx context.Context, a *BoardAnnouncement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal announcement failed: %w", err)
	}
	_, err = r.client.Publish(ctx, r.channel, payload)
	return err
}

// NotifyAnnouncer 通过通知渠道（飞书等）推送公告
type NotifyAnnouncer struct {
	notifier notify.Notifier
}

func NewNotifyAnnouncer(n notify.Notifier) *NotifyAnnouncer {
	return &NotifyAnnouncer{notifier: n}
}

func (n *NotifyAnnouncer) AnnounceBoard(ctx context.Context, a *BoardAnnouncement) error {
	return n.notifier.Send(ctx, boardNotice(a))
}

// boardNotice 稀有度最高的几个角色列在正文中
func boardNotice(a *BoardAnnouncement) *notify.Notice {
	board := model.CloneCharacters(a.Characters)
	model.SortBoard(board)

	names := make([]string, 0, maxListedCharacters)
	for _, c := range board[:min(len(board), maxListedCharacters)] {
		names = append(names, fmt.Sprintf("%s (%s)", c.Name, c.Rarity))
	}

	notice := &notify.Notice{
		Level:     notify.LevelInfo,
		Title:     "New gacha board is live",
		Summary:   strings.Join(names, ", "),
		Timestamp: a.UpdatedAt,
	}
	notice.AddField("characters", strconv.Itoa(len(a.Characters)))
	if a.NextRefreshAt != nil {
		notice.AddField("next_refresh_at", a.NextRefreshAt.Format(time.RFC3339))
	}
	return notice
}

// Announcers 依次投递到全部渠道
type Announcers []Announcer

func (as Announcers) AnnounceBoard(ctx context.Context, a *BoardAnnouncement) error {
	var errs []error
	for _, an := range as {
		if an == nil {
			continue
		}
		if err := an.AnnounceBoard(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
