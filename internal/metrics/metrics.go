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
// フィード取得とレポート生成パイプラインから利用する。
type MetricsCollector interface {
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordParseFailure()
	RecordHTTPStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordItemSkipped(reason string)
	RecordIdentifierMissing()
	RecordMatches(count int)
	RecordReportWriteFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	fetchSuccess      prometheus.Counter
	fetchFail         *prometheus.CounterVec
	parseFail         prometheus.Counter
	httpStatus        *prometheus.CounterVec
	fetchLatency      prometheus.Histogram
	itemsSkipped      *prometheus.CounterVec
	identifierMissing prometheus.Counter
	matches           prometheus.Counter
	reportWriteFail   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelwatch_fetch_success_total",
			Help: "フィード取得成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelwatch_fetch_fail_total",
			Help: "フィード取得失敗の合計数",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelwatch_parse_fail_total",
			Help: "フィード解析失敗の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelwatch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "labelwatch_fetch_latency_seconds",
			Help:    "フィード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		itemsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labelwatch_items_skipped_total",
			Help: "必須項目の欠落によりスキップしたフィード記事数",
		}, []string{"reason"}),
		identifierMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelwatch_identifier_missing_total",
			Help: "リンクからsetidを抽出できなかった記事数",
		}),
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelwatch_matches_total",
			Help: "レポートに掲載したウォッチリスト一致件数の合計",
		}),
		reportWriteFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labelwatch_report_write_fail_total",
			Help: "レポートファイル書き込み失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.httpStatus,
		c.fetchLatency,
		c.itemsSkipped,
		c.identifierMissing,
		c.matches,
		c.reportWriteFail,
	)

	return c
}

// RecordFetchSuccess はフィード取得成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフィード取得失敗を理由別に記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure は解析失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordFetchLatency は取得のレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordItemSkipped はスキップした記事を理由別に記録する。
func (c *Collector) RecordItemSkipped(reason string) {
	c.itemsSkipped.WithLabelValues(reason).Inc()
}

// RecordIdentifierMissing はsetid抽出失敗を記録する。
func (c *Collector) RecordIdentifierMissing() {
	c.identifierMissing.Inc()
}

// RecordMatches はレポートに掲載した一致件数を加算する。
func (c *Collector) RecordMatches(count int) {
	c.matches.Add(float64(count))
}

// RecordReportWriteFailure はレポート書き込み失敗を記録する。
func (c *Collector) RecordReportWriteFailure() {
	c.reportWriteFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
