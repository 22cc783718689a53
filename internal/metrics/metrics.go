// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPミドルウェア、認可ゲート、ストアのデコレータから利用する。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authDenials  *prometheus.CounterVec
	duplicates   *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourist_guide_http_requests_total",
			Help: "メソッド・ルート・ステータス別のHTTPリクエスト数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tourist_guide_http_request_duration_seconds",
			Help:    "ルート別のHTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		authDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourist_guide_auth_denials_total",
			Help: "認可ゲートの段階・理由別の拒否数",
		}, []string{"stage", "reason"}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourist_guide_duplicates_total",
			Help: "重複判定キーにより拒否された書き込み数",
		}, []string{"collection"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authDenials,
		c.duplicates,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストの件数と処理時間を記録する。
// routeにはchiのルートパターン（例: /booking/{email}）を渡し、ラベルの爆発を防ぐ。
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordAuthDenial は認可ゲートでの拒否を記録する。
func (c *Collector) RecordAuthDenial(stage, reason string) {
	c.authDenials.WithLabelValues(stage, reason).Inc()
}

// RecordDuplicate は重複による書き込み拒否を記録する。
func (c *Collector) RecordDuplicate(collection string) {
	c.duplicates.WithLabelValues(collection).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
