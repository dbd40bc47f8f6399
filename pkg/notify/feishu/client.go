package feishu

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/config"
)

// Client 飞书自定义机器人客户端
type Client struct {
	config *Config
	client *http.Client
	now    func() time.Time
}

// NewClient 创建客户端
func NewClient(cfg *Config) (*Client, error) {
	merged, err := config.MergeConfig(DefaultConfig(), cfg)
	if err != nil {
		return nil, err
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		config: merged,
		client: &http.Client{Timeout: merged.Timeout},
		now:    time.Now,
	}, nil
}

type webhookRequest struct {
	MsgType   string `json:"msg_type"`
	Content   any    `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
	Sign      string `json:"sign,omitempty"`
}

// Send 发送消息，飞书返回非零 code 时报 ErrAPIError
func (c *Client) Send(ctx context.Context, msg Message) error {
	payload := webhookRequest{MsgType: msg.MsgType(), Content: msg.Body()}
	if c.config.Secret != "" {
		timestamp := c.now().Unix()
		payload.Timestamp = strconv.FormatInt(timestamp, 10)
		payload.Sign = c.genSign(timestamp)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}

	var result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("%w: status=%d: %v", ErrResponseInvalid, resp.StatusCode, err)
	}
	if result.Code != 0 {
		return fmt.Errorf("%w: %s (code=%d)", ErrAPIError, result.Msg, result.Code)
	}
	return nil
}

// genSign 签名：以 "timestamp\nsecret" 为 HmacSHA256 密钥对空串签名后 Base64
func (c *Client) genSign(timestamp int64) string {
	stringToSign := fmt.Sprintf("%d\n%s", timestamp, c.config.Secret)
	h := hmac.New(sha256.New, []byte(stringToSign))
	h.Write([]byte{})
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
