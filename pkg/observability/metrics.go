package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turnpike_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Provider dispatch metrics
	providerCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_provider_calls_total",
			Help: "Total number of provider completion calls",
		},
		[]string{"provider", "outcome"},
	)

	providerCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turnpike_provider_call_duration_seconds",
			Help:    "Provider completion call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_provider_tokens_total",
			Help: "Total tokens exchanged with providers",
		},
		[]string{"provider", "direction"},
	)

	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_turns_total",
			Help: "Total number of turn dispatches by terminal outcome",
		},
		[]string{"outcome"},
	)

	idempotentReplaysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "turnpike_idempotent_replays_total",
			Help: "Total number of turns answered from the idempotency store",
		},
	)

	usageCostTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_usage_cost_usd_total",
			Help: "Accumulated metered cost in USD",
		},
		[]string{"provider"},
	)

	// Voice metrics
	voiceTurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turnpike_voice_turns_total",
			Help: "Total number of voice turns by outcome",
		},
		[]string{"outcome"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			providerCallsTotal,
			providerCallDuration,
			providerTokensTotal,
			turnsTotal,
			idempotentReplaysTotal,
			usageCostTotal,
			voiceTurnsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordProviderCall records one provider completion attempt.
// Outcome is "success" or the terminal error kind.
func RecordProviderCall(provider, outcome string, duration time.Duration, tokensIn, tokensOut int) {
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
	providerCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if tokensIn > 0 {
		providerTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	}
	if tokensOut > 0 {
		providerTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
	}
}

// RecordTurn records a terminal turn outcome ("completed", "replayed", "failed")
func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
	if outcome == "replayed" {
		idempotentReplaysTotal.Inc()
	}
}

// RecordUsageCost accumulates metered cost for a provider
func RecordUsageCost(provider string, cost float64) {
	usageCostTotal.WithLabelValues(provider).Add(cost)
}

// RecordVoiceTurn records a voice turn outcome ("completed", "short_circuit", "failed")
func RecordVoiceTurn(outcome string) {
	voiceTurnsTotal.WithLabelValues(outcome).Inc()
}
