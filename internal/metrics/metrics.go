// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// APIクライアントやニュースフェッチャーから利用する。
type MetricsCollector interface {
	RecordUpstreamSuccess(operation string)
	RecordUpstreamFailure(operation string, reason string)
	RecordUpstreamLatency(operation string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordNewsFetchSuccess()
	RecordNewsFetchFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	upstreamSuccess  *prometheus.CounterVec
	upstreamFail     *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	httpStatus       *prometheus.CounterVec
	newsFetchSuccess prometheus.Counter
	newsFetchFail    prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		upstreamSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runquest_upstream_success_total",
			Help: "上流API呼び出し成功の合計数（操作別）",
		}, []string{"operation"}),
		upstreamFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runquest_upstream_fail_total",
			Help: "上流API呼び出し失敗の合計数（操作別・理由別）",
		}, []string{"operation", "reason"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "runquest_upstream_latency_seconds",
			Help:    "上流API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runquest_upstream_http_status_total",
			Help: "上流APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		newsFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runquest_news_fetch_success_total",
			Help: "ニュースフィード取得成功の合計数",
		}),
		newsFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runquest_news_fetch_fail_total",
			Help: "ニュースフィード取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.upstreamSuccess,
		c.upstreamFail,
		c.upstreamLatency,
		c.httpStatus,
		c.newsFetchSuccess,
		c.newsFetchFail,
	)

	return c
}

// RecordUpstreamSuccess は上流API呼び出し成功を記録する。
func (c *Collector) RecordUpstreamSuccess(operation string) {
	c.upstreamSuccess.WithLabelValues(operation).Inc()
}

// RecordUpstreamFailure は上流API呼び出し失敗を記録する。
func (c *Collector) RecordUpstreamFailure(operation string, reason string) {
	c.upstreamFail.WithLabelValues(operation, reason).Inc()
}

// RecordUpstreamLatency は上流API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(operation string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPStatus は上流APIのHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNewsFetchSuccess はニュースフィード取得成功を記録する。
func (c *Collector) RecordNewsFetchSuccess() {
	c.newsFetchSuccess.Inc()
}

// RecordNewsFetchFailure はニュースフィード取得失敗を記録する。
func (c *Collector) RecordNewsFetchFailure() {
	c.newsFetchFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// NopCollector は何も記録しないコレクター。テストで使用する。
type NopCollector struct{}

func (NopCollector) RecordUpstreamSuccess(string)                {}
func (NopCollector) RecordUpstreamFailure(string, string)        {}
func (NopCollector) RecordUpstreamLatency(string, time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                        {}
func (NopCollector) RecordNewsFetchSuccess()                     {}
func (NopCollector) RecordNewsFetchFailure()                     {}

var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}
