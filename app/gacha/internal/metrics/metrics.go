package metrics

import (
	"time"

	"github.com/lk2023060901/xdooria-gacha/pkg/prometheus"
)

// GachaMetrics 抽卡服务指标
//
// 所有 Record 方法允许 nil 接收者，测试中可以不注册指标。
type GachaMetrics struct {
	// 抽卡指标
	RollsTotal      *prometheus.CounterVec // 抽卡次数（按稀有度）
	PityTotal       *prometheus.CounterVec // 保底触发（按类型 soft/hard）
	ContractsTotal  *prometheus.CounterVec // 合成次数（按来源稀有度、结果）
	TradesTotal     *prometheus.CounterVec // 交易单状态变化（按状态）
	BoardRefreshes  *prometheus.CounterVec // 卡池刷新（按来源 fresh/prefetch/seeded）
	ProviderErrors  *prometheus.CounterVec // 外部目录请求失败（按提供方、操作）
	StoreOps        *prometheus.CounterVec // 存储操作（按操作、结果）
	StoreOpDuration *prometheus.HistogramVec
	PoolSize        *prometheus.GaugeVec // 角色池与神话目录大小
}

// New 在客户端上注册全部指标
func New(c *prometheus.Client) (*GachaMetrics, error) {
	m := &GachaMetrics{}
	var err error

	if m.RollsTotal, err = c.NewCounter("rolls_total", "抽卡次数", []string{"rarity"}); err != nil {
		return nil, err
	}
	if m.PityTotal, err = c.NewCounter("pity_triggers_total", "保底触发次数", []string{"kind"}); err != nil {
		return nil, err
	}
	if m.ContractsTotal, err = c.NewCounter("contracts_total", "合成执行次数", []string{"from", "result"}); err != nil {
		return nil, err
	}
	if m.TradesTotal, err = c.NewCounter("trade_offers_total", "交易单状态变化", []string{"status"}); err != nil {
		return nil, err
	}
	if m.BoardRefreshes, err = c.NewCounter("board_refreshes_total", "卡池刷新次数", []string{"origin"}); err != nil {
		return nil, err
	}
	if m.ProviderErrors, err = c.NewCounter("provider_errors_total", "外部目录请求失败次数", []string{"provider", "operation"}); err != nil {
		return nil, err
	}
	if m.StoreOps, err = c.NewCounter("store_operations_total", "存储操作次数", []string{"operation", "result"}); err != nil {
		return nil, err
	}
	if m.StoreOpDuration, err = c.NewHistogram("store_operation_duration_seconds", "存储操作耗时（秒）",
		[]string{"operation"}, []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}); err != nil {
		return nil, err
	}
	if m.PoolSize, err = c.NewGauge("catalog_size", "角色池与神话目录大小", []string{"catalog"}); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *GachaMetrics) RecordRoll(rarity string) {
	if m == nil {
		return
	}
	m.RollsTotal.WithLabelValues(rarity).Inc()
}

// RecordPity kind 为 soft 或 hard
func (m *GachaMetrics) RecordPity(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PityTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *GachaMetrics) RecordContract(from string, success bool) {
	if m == nil {
		return
	}
	m.ContractsTotal.WithLabelValues(from, result(success)).Inc()
}

func (m *GachaMetrics) RecordTrade(status string) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(status).Inc()
}

func (m *GachaMetrics) RecordBoardRefresh(origin string) {
	if m == nil {
		return
	}
	m.BoardRefreshes.WithLabelValues(origin).Inc()
}

func (m *GachaMetrics) RecordProviderError(provider, operation string) {
	if m == nil {
		return
	}
	m.ProviderErrors.WithLabelValues(provider, operation).Inc()
}

// RecordStoreOp 记录一次存储操作
func (m *GachaMetrics) RecordStoreOp(operation string, success bool, start time.Time) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(operation, result(success)).Inc()
	m.StoreOpDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *GachaMetrics) SetCatalogSize(catalog string, n int) {
	if m == nil {
		return
	}
	m.PoolSize.WithLabelValues(catalog).Set(float64(n))
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
