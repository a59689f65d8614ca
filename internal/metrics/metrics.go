// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// Appwriteクライアントおよびサービス層から利用する。
type Recorder interface {
	RecordRemoteRequest(service string, statusCode int)
	RecordRemoteFailure(service string, reason string)
	RecordRemoteLatency(duration time.Duration)
	RecordTransition(to string)
	RecordRollback()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	remoteRequests *prometheus.CounterVec
	remoteFailures *prometheus.CounterVec
	remoteLatency  prometheus.Histogram
	transitions    *prometheus.CounterVec
	rollbacks      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		remoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitacoach_remote_request_total",
			Help: "リモートAPI呼び出しの合計数（サービス・ステータスコード別）",
		}, []string{"service", "status_code"}),
		remoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitacoach_remote_failure_total",
			Help: "リモートAPI呼び出し失敗の合計数（サービス・原因別）",
		}, []string{"service", "reason"}),
		remoteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "vitacoach_remote_latency_seconds",
			Help:    "リモートAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vitacoach_relationship_transition_total",
			Help: "Relationshipの状態遷移の合計数（遷移先別）",
		}, []string{"to"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vitacoach_optimistic_rollback_total",
			Help: "楽観的更新のロールバック発生数",
		}),
	}

	reg.MustRegister(
		c.remoteRequests,
		c.remoteFailures,
		c.remoteLatency,
		c.transitions,
		c.rollbacks,
	)

	return c
}

// RecordRemoteRequest はリモート呼び出しの完了を記録する。
func (c *Collector) RecordRemoteRequest(service string, statusCode int) {
	c.remoteRequests.WithLabelValues(service, strconv.Itoa(statusCode)).Inc()
}

// RecordRemoteFailure はリモート呼び出しの失敗を記録する。
func (c *Collector) RecordRemoteFailure(service string, reason string) {
	c.remoteFailures.WithLabelValues(service, reason).Inc()
}

// RecordRemoteLatency はリモート呼び出しのレイテンシを記録する。
func (c *Collector) RecordRemoteLatency(duration time.Duration) {
	c.remoteLatency.Observe(duration.Seconds())
}

// RecordTransition はRelationshipの状態遷移を記録する。
func (c *Collector) RecordTransition(to string) {
	c.transitions.WithLabelValues(to).Inc()
}

// RecordRollback は楽観的更新のロールバックを記録する。
func (c *Collector) RecordRollback() {
	c.rollbacks.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 組み込み先アプリケーションが任意のパスにマウントすることを想定している。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
