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
// サービス層・外部クライアント・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordRecommendation(outcome string)
	RecordFeedback(sign string)
	RecordResolverFailure()
	RecordResolverLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	SetActiveSessions(n int)
	RecordBreakerState(name string, state string)
	RecordReconcile(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	recommendations  *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	resolverFailures prometheus.Counter
	resolverLatency  prometheus.Histogram
	httpStatus       *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	breakerState     *prometheus.GaugeVec
	reconcile        *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wearly_recommendations_total",
			Help: "結果別のおすすめリクエスト数",
		}, []string{"outcome"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wearly_feedback_total",
			Help: "符号別の反映済みフィードバック数",
		}, []string{"sign"}),
		resolverFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wearly_resolver_failures_total",
			Help: "カテゴリ判定サービス呼び出し失敗の合計数",
		}),
		resolverLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wearly_resolver_latency_seconds",
			Help:    "カテゴリ判定サービス呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wearly_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wearly_active_sessions",
			Help: "メモリ上で保持しているおすすめセッション数",
		}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wearly_circuit_breaker_state",
			Help: "サーキットブレーカーの状態（0=closed, 1=half-open, 2=open）",
		}, []string{"name"}),
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wearly_style_reconcile_total",
			Help: "結果別のスタイル別スコア再計算数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.recommendations,
		c.feedback,
		c.resolverFailures,
		c.resolverLatency,
		c.httpStatus,
		c.activeSessions,
		c.breakerState,
		c.reconcile,
	)

	return c
}

// RecordRecommendation はおすすめリクエストの結果を記録する。
func (c *Collector) RecordRecommendation(outcome string) {
	c.recommendations.WithLabelValues(outcome).Inc()
}

// RecordFeedback は反映済みフィードバックを記録する。
func (c *Collector) RecordFeedback(sign string) {
	c.feedback.WithLabelValues(sign).Inc()
}

// RecordResolverFailure はカテゴリ判定の失敗を記録する。
func (c *Collector) RecordResolverFailure() {
	c.resolverFailures.Inc()
}

// RecordResolverLatency はカテゴリ判定のレイテンシを記録する。
func (c *Collector) RecordResolverLatency(duration time.Duration) {
	c.resolverLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveSessions は保持中のセッション数を設定する。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// RecordBreakerState はサーキットブレーカーの状態遷移を記録する。
func (c *Collector) RecordBreakerState(name string, state string) {
	c.breakerState.WithLabelValues(name).Set(breakerStateValue(state))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}

// RecordReconcile はスタイル別スコア再計算の結果を記録する。
func (c *Collector) RecordReconcile(result string) {
	c.reconcile.WithLabelValues(result).Inc()
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordRecommendation(string)         {}
func (NopCollector) RecordFeedback(string)               {}
func (NopCollector) RecordResolverFailure()              {}
func (NopCollector) RecordResolverLatency(time.Duration) {}
func (NopCollector) RecordHTTPStatus(int)                {}
func (NopCollector) SetActiveSessions(int)               {}
func (NopCollector) RecordBreakerState(string, string)   {}
func (NopCollector) RecordReconcile(string)              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}
