// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/learnhub/internal/model"
)

// Recorder はドメインイベントの計測インターフェース。
// サービス層から利用する。
type Recorder interface {
	RecordEnrollmentCreated()
	RecordEnrollmentRejected(reason string)
	RecordStatusTransition(to model.EnrollmentStatus)
	RecordCertificateIssued()
	RecordContactSubmitted()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	enrollmentsCreated  prometheus.Counter
	enrollmentsRejected *prometheus.CounterVec
	statusTransitions   *prometheus.CounterVec
	certificatesIssued  prometheus.Counter
	contactSubmissions  prometheus.Counter
	httpResponses       *prometheus.CounterVec
	httpLatency         *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		enrollmentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_enrollments_created_total",
			Help: "作成された受講登録の合計数",
		}),
		enrollmentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_enrollments_rejected_total",
			Help: "拒否された受講登録の理由別件数",
		}, []string{"reason"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_enrollment_transitions_total",
			Help: "遷移先ステータス別の受講登録状態遷移数",
		}, []string{"to"}),
		certificatesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_certificates_issued_total",
			Help: "承認された修了証の合計数",
		}),
		contactSubmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnhub_contact_submissions_total",
			Help: "受け付けた問い合わせの合計数",
		}),
		httpResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnhub_http_responses_total",
			Help: "ルートとステータスコード別のHTTPレスポンス数",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnhub_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		c.enrollmentsCreated,
		c.enrollmentsRejected,
		c.statusTransitions,
		c.certificatesIssued,
		c.contactSubmissions,
		c.httpResponses,
		c.httpLatency,
	)

	return c
}

func (c *Collector) RecordEnrollmentCreated() {
	c.enrollmentsCreated.Inc()
}

// RecordEnrollmentRejected は拒否理由（エラーコード）別に記録する。
func (c *Collector) RecordEnrollmentRejected(reason string) {
	c.enrollmentsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordStatusTransition(to model.EnrollmentStatus) {
	c.statusTransitions.WithLabelValues(string(to)).Inc()
}

func (c *Collector) RecordCertificateIssued() {
	c.certificatesIssued.Inc()
}

func (c *Collector) RecordContactSubmitted() {
	c.contactSubmissions.Inc()
}

// RecordHTTPResponse はHTTPレスポンスのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPResponse(method, route string, statusCode int, duration time.Duration) {
	c.httpResponses.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

// HTTPMiddleware はレスポンスのステータスとレイテンシを記録するミドルウェアを返す。
// routeラベルにはパスではなくchiのルートパターンを使う。
func (c *Collector) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		c.RecordHTTPResponse(r.Method, route, rec.statusCode, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NopRecorder は何も記録しないRecorder。テストや計測不要な構成で使う。
type NopRecorder struct{}

func (NopRecorder) RecordEnrollmentCreated()                       {}
func (NopRecorder) RecordEnrollmentRejected(string)                {}
func (NopRecorder) RecordStatusTransition(model.EnrollmentStatus) {}
func (NopRecorder) RecordCertificateIssued()                       {}
func (NopRecorder) RecordContactSubmitted()                        {}

// compile-time interface check
var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = NopRecorder{}
)
