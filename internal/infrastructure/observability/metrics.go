package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// AuthAttempts counts login/register/refresh/logout outcomes.
	AuthAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of authentication operations by outcome",
		},
		[]string{"operation", "status"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
		[]string{"operation"},
	)

	TokenReuseDetections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auth_token_reuse_detected_total",
			Help: "Total number of refresh token reuse detections",
		},
	)

	AuthDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "auth_operation_duration_seconds",
			Help:    "Duration of authentication operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(AuthAttempts, RateLimitRejections, TokenReuseDetections, AuthDuration)
}
