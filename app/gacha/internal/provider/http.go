package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lk2023060901/xdooria-gacha/pkg/logger"
)

// retryPolicy 指数退避参数
type retryPolicy struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
}

// statusError 非 2xx 响应
type statusError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.status == http.StatusTooManyRequests || e.status >= 500
}

// retryAfterBackOff 上游返回 Retry-After 时优先使用该等待时间
type retryAfterBackOff struct {
	backoff.BackOff
	next time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	d := b.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	if b.next > 0 {
		d, b.next = b.next, 0
	}
	return d
}

// httpClient 带重试的 JSON 客户端
type httpClient struct {
	client    *http.Client
	policy    retryPolicy
	userAgent string
	logger    logger.Logger
}

func newHTTPClient(timeout time.Duration, policy retryPolicy, userAgent string, l logger.Logger) *httpClient {
	if policy.maxAttempts < 1 {
		policy.maxAttempts = 1
	}
	return &httpClient{
		client:    &http.Client{Timeout: timeout},
		policy:    policy,
		userAgent: userAgent,
		logger:    l,
	}
}

// do 发送请求并把响应解码到 out；decode 返回 ErrRetryable 包装的错误时同样重试
func (c *httpClient) do(ctx context.Context, method, url string, payload any, out any, check func() error) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = data
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.policy.base
	exp.MaxInterval = c.policy.max
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	b := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(c.policy.maxAttempts-1))}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to perform request: %w", err)
		}
		defer func() {
			if err := resp.Body.Close(); err != nil {
				c.logger.Warn("failed to close response body", "url", url, "error", err)
			}
		}()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			se := &statusError{status: resp.StatusCode, body: string(data), retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
			if !se.retryable() {
				return backoff.Permanent(se)
			}
			b.next = se.retryAfter
			c.logger.Warn("upstream throttled, retrying", "url", url, "status", resp.StatusCode)
			return se
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		if check != nil {
			return check()
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("request %s failed: %w", url, err)
	}
	return nil
}

func permanent(err error) error {
	return backoff.Permanent(err)
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// sleepCtx 可被 ctx 打断的等待
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
