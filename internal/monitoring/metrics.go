package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 分享读取指标
	ShareConsumed prometheus.Counter
	ShareRejected *prometheus.CounterVec

	// 上游网关指标
	GatewayRequestDuration *prometheus.HistogramVec
	GatewayErrors          *prometheus.CounterVec

	// 批量生成指标
	BatchTasksTotal    prometheus.Counter
	BatchAccountsTotal *prometheus.CounterVec

	// 限流指标
	RateLimitBlocks prometheus.Counter

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildash_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildash_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ShareConsumed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maildash_share_consumed_total",
				Help: "Total number of share reads that consumed quota",
			},
		),

		ShareRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildash_share_rejected_total",
				Help: "Total number of share reads rejected by the gate",
			},
			[]string{"reason"},
		),

		GatewayRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maildash_gateway_request_duration_seconds",
				Help:    "Upstream gateway request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		GatewayErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildash_gateway_errors_total",
				Help: "Total number of upstream gateway errors",
			},
			[]string{"operation"},
		),

		BatchTasksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maildash_batch_tasks_total",
				Help: "Total number of batch generation tasks",
			},
		),

		BatchAccountsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maildash_batch_accounts_total",
				Help: "Total number of batch generated accounts by outcome",
			},
			[]string{"status"},
		),

		RateLimitBlocks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maildash_rate_limit_blocks_total",
				Help: "Total number of requests blocked by rate limiting",
			},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maildash_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// Handler 返回 Prometheus 指标的 HTTP 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
