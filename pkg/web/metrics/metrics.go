package metrics

import (
	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
)

// HTTPMetrics HTTP 请求指标
type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewHTTPMetrics 在给定客户端上注册 HTTP 指标
func NewHTTPMetrics(c *prometheus.Client) (*HTTPMetrics, error) {
	total, err := c.NewCounter("http_requests_total", "HTTP 请求总数", []string{"path", "method", "status"})
	if err != nil {
		return nil, err
	}
	duration, err := c.NewHistogram("http_request_duration_seconds", "HTTP 请求耗时（秒）", []string{"path", "method"}, nil)
	if err != nil {
		return nil, err
	}
	return &HTTPMetrics{RequestsTotal: total, RequestDuration: duration}, nil
}
