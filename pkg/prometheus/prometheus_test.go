package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.EnableGoCollector = false
	cfg.EnableProcessCollector = false
	c, err := New(cfg, nil)
	require.NoError(t, err)
	return c
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "default", cfg: *DefaultConfig()},
		{name: "empty namespace", cfg: Config{}, wantErr: true},
		{name: "enabled without addr", cfg: Config{Namespace: "gacha", HTTPServer: HTTPServerConfig{Enabled: true}}, wantErr: true},
		{name: "enabled fills defaults", cfg: Config{Namespace: "gacha", HTTPServer: HTTPServerConfig{Enabled: true, Addr: ":0"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			if tt.cfg.HTTPServer.Enabled {
				assert.Equal(t, "/metrics", tt.cfg.HTTPServer.Path)
			}
		})
	}
}

func TestRegisterVectors(t *testing.T) {
	c := newTestClient(t)

	rolls, err := c.NewCounter("rolls_total", "抽卡次数", []string{"rarity"})
	require.NoError(t, err)
	rolls.WithLabelValues("mythic").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(rolls.WithLabelValues("mythic")))

	_, err = c.NewCounter("rolls_total", "dup", nil)
	assert.ErrorIs(t, err, ErrMetricExists)

	pending, err := c.NewGauge("pending_trades", "待处理交易", nil)
	require.NoError(t, err)
	pending.WithLabelValues().Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(pending.WithLabelValues()))

	latency, err := c.NewHistogram("store_seconds", "存储耗时", []string{"op"}, nil)
	require.NoError(t, err)
	latency.WithLabelValues("save_user").Observe(0.01)

	_, err = c.NewGauge("store_seconds", "dup", nil)
	assert.ErrorIs(t, err, ErrMetricExists)
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := newTestClient(t)
	contracts, err := c.NewCounter("contracts_total", "合成次数", []string{"from"})
	require.NoError(t, err)
	contracts.WithLabelValues("common").Add(2)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `gacha_contracts_total{from="common"} 2`))
}

func TestStartStop(t *testing.T) {
	c := newTestClient(t)
	require.NoError(t, c.Start())
	require.NoError(t, c.Stop())
	assert.ErrorIs(t, c.Stop(), ErrClientClosed)

	_, err := c.NewCounter("late", "closed", nil)
	assert.ErrorIs(t, err, ErrClientClosed)
}
