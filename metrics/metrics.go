// Package metrics 提供监控循环的 Prometheus 指标。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector 收集抓取、检测与循环层面的指标。
// 指针为 nil 时所有方法都是空操作，方便测试与关闭监控的部署。
type Collector struct {
	registry *prometheus.Registry

	fetchesTotal  *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchLatency  *prometheus.HistogramVec
	cyclesTotal   prometheus.Counter
	cycleDuration prometheus.Histogram
	opportunities *prometheus.CounterVec
	spreadPercent *prometheus.GaugeVec
	snapshots     *prometheus.GaugeVec
}

// Config 指标配置
type Config struct {
	Namespace string
	Subsystem string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Namespace: "obm", Subsystem: "monitor"}
}

// New 创建新的 Collector
func New(cfg Config) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fetches_total",
			Help:      "订单簿抓取总次数",
		}, []string{"exchange"}),
		fetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fetch_errors_total",
			Help:      "按原因分类的抓取失败次数",
		}, []string{"exchange", "reason"}),
		fetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fetch_latency_seconds",
			Help:      "订单簿抓取延迟分布（秒）",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"exchange"}),
		cyclesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycles_total",
			Help:      "完成的监控循环次数",
		}),
		cycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_duration_seconds",
			Help:      "单次监控循环耗时分布（秒）",
			Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		}),
		opportunities: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "opportunities_total",
			Help:      "检出的套利机会次数",
		}, []string{"symbol"}),
		spreadPercent: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "last_spread_percent",
			Help:      "最近一次检出机会的价差百分比",
		}, []string{"symbol"}),
		snapshots: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "cycle_snapshots",
			Help:      "本轮每个交易对拿到的有效快照数",
		}, []string{"symbol"}),
	}
}

// ObserveFetch 记录一次抓取结果。reason 为空表示成功。
func (c *Collector) ObserveFetch(exchange string, elapsed time.Duration, reason string) {
	if c == nil {
		return
	}
	c.fetchesTotal.WithLabelValues(exchange).Inc()
	c.fetchLatency.WithLabelValues(exchange).Observe(elapsed.Seconds())
	if reason != "" {
		c.fetchErrors.WithLabelValues(exchange, reason).Inc()
	}
}

// ObserveCycle 记录一轮循环耗时。
func (c *Collector) ObserveCycle(elapsed time.Duration) {
	if c == nil {
		return
	}
	c.cyclesTotal.Inc()
	c.cycleDuration.Observe(elapsed.Seconds())
}

// ObserveSnapshots 记录某交易对本轮有效快照数。
func (c *Collector) ObserveSnapshots(symbol string, count int) {
	if c == nil {
		return
	}
	c.snapshots.WithLabelValues(symbol).Set(float64(count))
}

// ObserveOpportunity 记录一次检出的机会。
func (c *Collector) ObserveOpportunity(symbol string, spreadPercent float64) {
	if c == nil {
		return
	}
	c.opportunities.WithLabelValues(symbol).Inc()
	c.spreadPercent.WithLabelValues(symbol).Set(spreadPercent)
}

// Handler 返回指标抓取端点。
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry 暴露底层 registry，便于测试断言。
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
