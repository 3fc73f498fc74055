// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する。
type Collector struct {
	httpStatus   *prometheus.CounterVec
	cacheHit     prometheus.Counter
	cacheMiss    prometheus.Counter
	loginSuccess prometheus.Counter
	loginFailure prometheus.Counter
	tokensIssued prometheus.Counter
	tokensPruned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapi_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cacheHit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_list_cache_hit_total",
			Help: "記事一覧キャッシュのヒット数",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_list_cache_miss_total",
			Help: "記事一覧キャッシュのミス数",
		}),
		loginSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_login_success_total",
			Help: "ログイン成功の合計数",
		}),
		loginFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_login_failure_total",
			Help: "ログイン失敗の合計数",
		}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_tokens_issued_total",
			Help: "発行されたトークンの合計数",
		}),
		tokensPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogapi_tokens_pruned_total",
			Help: "プルーニングで削除されたトークンの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.cacheHit,
		c.cacheMiss,
		c.loginSuccess,
		c.loginFailure,
		c.tokensIssued,
		c.tokensPruned,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCacheHit は一覧キャッシュのヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHit.Inc()
}

// RecordCacheMiss は一覧キャッシュのミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMiss.Inc()
}

// RecordLoginSuccess はログイン成功を記録する。
func (c *Collector) RecordLoginSuccess() {
	c.loginSuccess.Inc()
}

// RecordLoginFailure はログイン失敗を記録する。
func (c *Collector) RecordLoginFailure() {
	c.loginFailure.Inc()
}

// RecordTokenIssued はトークン発行を記録する。
func (c *Collector) RecordTokenIssued() {
	c.tokensIssued.Inc()
}

// RecordTokensPruned はプルーニングで削除されたトークン数を記録する。
func (c *Collector) RecordTokensPruned(count int64) {
	c.tokensPruned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
