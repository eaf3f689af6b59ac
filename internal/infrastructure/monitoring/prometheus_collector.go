package monitoring

import (
	"livegate/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder on top of the
// default Prometheus registry.
type PrometheusCollector struct {
	credentialsIssuedTotal *prometheus.CounterVec
	rateLimitRejectedTotal *prometheus.CounterVec
	livesActiveTotal       prometheus.Gauge
	livesStartedTotal      prometheus.Counter
	messagesPostedTotal    prometheus.Counter
	liveViewerCount        *prometheus.GaugeVec
	wsConnectionsActive    prometheus.Gauge
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		credentialsIssuedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_credentials_issued_total",
			Help: "Total number of media credentials issued",
		}, []string{"role"}),

		rateLimitRejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "livegate_rate_limit_rejected_total",
			Help: "Total number of requests rejected by rate limiting",
		}, []string{"policy"}),

		livesActiveTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livegate_lives_active_total",
			Help: "Number of currently active live sessions",
		}),

		livesStartedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livegate_lives_started_total",
			Help: "Total number of live sessions started",
		}),

		messagesPostedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "livegate_messages_posted_total",
			Help: "Total number of chat messages posted",
		}),

		liveViewerCount: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "livegate_live_viewer_count",
			Help: "Current viewer count per live session",
		}, []string{"live_id"}),

		wsConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "livegate_ws_connections_active",
			Help: "Number of active chat websocket connections",
		}),
	}
}

func (p *PrometheusCollector) CredentialIssued(role domain.Role) {
	p.credentialsIssuedTotal.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) RateLimitRejected(policy string) {
	p.rateLimitRejectedTotal.WithLabelValues(policy).Inc()
}

func (p *PrometheusCollector) ViewerCount(liveID domain.LiveID, count int64) {
	p.liveViewerCount.WithLabelValues(string(liveID)).Set(float64(count))
}

func (p *PrometheusCollector) MessagePosted() {
	p.messagesPostedTotal.Inc()
}

func (p *PrometheusCollector) LiveStarted() {
	p.livesActiveTotal.Inc()
	p.livesStartedTotal.Inc()
}

func (p *PrometheusCollector) LiveEnded() {
	p.livesActiveTotal.Dec()
}

// LiveMetricsCleared drops the per-live gauge once a session ends so the
// label set does not grow without bound.
func (p *PrometheusCollector) LiveMetricsCleared(liveID domain.LiveID) {
	p.liveViewerCount.DeleteLabelValues(string(liveID))
}

func (p *PrometheusCollector) WSConnectionOpened() {
	p.wsConnectionsActive.Inc()
}

func (p *PrometheusCollector) WSConnectionClosed() {
	p.wsConnectionsActive.Dec()
}
