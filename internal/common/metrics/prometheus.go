// Package metrics 提供 Prometheus 指标收集
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标收集器
// 所有 Record 方法允许 nil 接收者，未启用监控时直接忽略
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge
	cacheHitsTotal       *prometheus.CounterVec
	cacheMissesTotal     *prometheus.CounterVec
	mqttMessagesTotal    *prometheus.CounterVec

	receiptsTotal          *prometheus.CounterVec
	settlementRunsTotal    *prometheus.CounterVec
	settlementEntriesTotal *prometheus.CounterVec
	settlementDuration     prometheus.Histogram
	profitReleasedTotal    prometheus.Counter
	commissionAccrued      prometheus.Counter
	outboxDispatchTotal    *prometheus.CounterVec
}

// Init 初始化指标收集器，每次调用使用独立的 Registry
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tkshop"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
			[]string{"cache"},
		),
		mqttMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mqtt_messages_total",
				Help:      "Total number of MQTT messages",
			},
			[]string{"topic", "status"},
		),
		receiptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "receipts_total",
				Help:      "Receipts by payment method and review action",
			},
			[]string{"method", "action"},
		),
		settlementRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_runs_total",
				Help:      "Settlement runs by final settlement status",
			},
			[]string{"status"},
		),
		settlementEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_entries_total",
				Help:      "Deposit entries visited by settlement, by outcome",
			},
			[]string{"outcome"},
		),
		settlementDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_duration_seconds",
				Help:      "Duration of one receipt settlement run",
				Buckets:   prometheus.DefBuckets,
			},
		),
		profitReleasedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "profit_released_amount_total",
				Help:      "Sum of profit credited to seller wallets",
			},
		),
		commissionAccrued: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commission_accrued_amount_total",
				Help:      "Sum of commission accrued to referrer admins",
			},
		),
		outboxDispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlement_events_dispatch_total",
				Help:      "Settlement event dispatch attempts by status",
			},
			[]string{"status"},
		),
	}
}

// Registry 返回底层 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware 返回 Gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 跳过 metrics 端点本身
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		m.httpRequestsInFlight.Inc()

		c.Next()

		m.httpRequestsInFlight.Dec()
		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(duration)
	}
}

// Handler 返回 Prometheus HTTP 处理器
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHitsTotal.WithLabelValues(cache).Inc()
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordMQTTMessage 记录 MQTT 消息
func (m *Metrics) RecordMQTTMessage(topic, status string) {
	if m == nil {
		return
	}
	m.mqttMessagesTotal.WithLabelValues(topic, status).Inc()
}

// RecordReceipt 记录凭证动作（submit/approve/reject）
func (m *Metrics) RecordReceipt(method, action string) {
	if m == nil {
		return
	}
	m.receiptsTotal.WithLabelValues(method, action).Inc()
}

// RecordSettlement 记录一次结算
func (m *Metrics) RecordSettlement(status string, outcomes map[string]int, duration time.Duration) {
	if m == nil {
		return
	}
	m.settlementRunsTotal.WithLabelValues(status).Inc()
	for outcome, n := range outcomes {
		if n > 0 {
			m.settlementEntriesTotal.WithLabelValues(outcome).Add(float64(n))
		}
	}
	m.settlementDuration.Observe(duration.Seconds())
}

// AddProfitReleased 累计释放给卖家的利润
func (m *Metrics) AddProfitReleased(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.profitReleasedTotal.Add(amount)
}

// AddCommissionAccrued 累计管理员佣金
func (m *Metrics) AddCommissionAccrued(amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.commissionAccrued.Add(amount)
}

// RecordDispatch 记录结算事件投递
func (m *Metrics) RecordDispatch(status string) {
	if m == nil {
		return
	}
	m.outboxDispatchTotal.WithLabelValues(status).Inc()
}
