package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/life2you_mini/pnlwatch/internal/events"
)

const namespace = "pnlwatch"

// Collector 刷新过程与账户指标的 Prometheus 导出
// 同时作为刷新器的 Recorder 和事件总线的订阅者
type Collector struct {
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	RefreshSkipped  prometheus.Counter

	WalletBalance   prometheus.Gauge
	TotalProfit     prometheus.Gauge
	TotalProfitRate prometheus.Gauge
	Unrealized      prometheus.Gauge
	ActivePositions prometheus.Gauge
	LastSuccess     prometheus.Gauge
}

// NewCollector 创建并注册指标，reg 为 nil 时使用默认注册表
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh cycles by result.",
		}, []string{"result"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Refresh cycle latency in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		RefreshSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_skipped_total",
			Help:      "Refresh triggers ignored because a cycle was in flight.",
		}),
		WalletBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_balance",
			Help:      "Futures wallet balance.",
		}),
		TotalProfit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_profit",
			Help:      "Wallet balance minus baseline asset value.",
		}),
		TotalProfitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_profit_rate_percent",
			Help:      "Total profit relative to baseline, in percent.",
		}),
		Unrealized: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unrealized_profit",
			Help:      "Account unrealized PnL.",
		}),
		ActivePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_positions",
			Help:      "Number of positions with a non-zero amount.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
	}

	reg.MustRegister(
		c.RefreshTotal,
		c.RefreshDuration,
		c.RefreshSkipped,
		c.WalletBalance,
		c.TotalProfit,
		c.TotalProfitRate,
		c.Unrealized,
		c.ActivePositions,
		c.LastSuccess,
	)
	return c
}

// ObserveRefresh 记录一次刷新结果
func (c *Collector) ObserveRefresh(result string, duration time.Duration) {
	c.RefreshTotal.WithLabelValues(result).Inc()
	c.RefreshDuration.Observe(duration.Seconds())
}

// IncSkipped 记录被忽略的触发
func (c *Collector) IncSkipped() {
	c.RefreshSkipped.Inc()
}

// Handle 订阅回调，快照事件更新账户指标，错误事件不改变上次的值
func (c *Collector) Handle(ev events.Event) {
	if ev.Type != events.EventSnapshot || ev.Snapshot == nil {
		return
	}

	account := ev.Snapshot.Account
	c.WalletBalance.Set(account.WalletBalance.InexactFloat64())
	c.TotalProfit.Set(account.TotalProfit.InexactFloat64())
	c.TotalProfitRate.Set(account.TotalProfitRate.InexactFloat64())
	c.Unrealized.Set(account.UnrealizedProfit.InexactFloat64())
	c.ActivePositions.Set(float64(len(ev.Snapshot.ActivePositions)))
	c.LastSuccess.Set(float64(ev.Snapshot.FetchedAt.Unix()))
}
