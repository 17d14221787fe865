// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// unmatchedRoute はルートに一致しなかったリクエストのrouteラベル。
const unmatchedRoute = "unmatched"

// MetricsCollector はメトリクス収集のインターフェース。
// リクエストパイプラインと認証層から利用する。
type MetricsCollector interface {
	RecordRequest(method, route string, status int, duration time.Duration)
	RecordDomainError(kind string)
	ObserveCertRefresh(result string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	domainErrors *prometheus.CounterVec
	certRefresh  *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choretracker_http_requests_total",
			Help: "ルート・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "choretracker_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		domainErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choretracker_domain_errors_total",
			Help: "種別ごとのドメインエラー数",
		}, []string{"kind"}),
		certRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "choretracker_google_certs_refresh_total",
			Help: "Google証明書リフレッシュの結果別回数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.domainErrors,
		c.certRefresh,
	)

	return c
}

// RecordRequest はHTTPリクエストの結果と処理時間を記録する。
func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordDomainError はドメインエラーの発生を記録する。
func (c *Collector) RecordDomainError(kind string) {
	c.domainErrors.WithLabelValues(kind).Inc()
}

// ObserveCertRefresh は証明書リフレッシュの結果を記録する。
func (c *Collector) ObserveCertRefresh(result string) {
	c.certRefresh.WithLabelValues(result).Inc()
}

// Middleware はリクエストごとにルートパターン単位でメトリクスを記録するミドルウェアを返す。
// パスの具体値ではなくchiのルートパターンをラベルに使う。
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.RecordRequest(r.Method, RoutePattern(r), status, time.Since(start))
	})
}

// RoutePattern はリクエストに一致したchiのルートパターンを返す。
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedRoute
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
