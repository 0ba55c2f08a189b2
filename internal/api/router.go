package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hirewire/auth-service/internal/handler"
	"github.com/hirewire/auth-service/internal/security"
	service "github.com/hirewire/auth-service/internal/services"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		endpoint := r.URL.Path
		RequestCounter.WithLabelValues(r.Method, endpoint, fmt.Sprintf("%d", recorder.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func SetupRouter(svc service.AuthService, events security.Sink, metricsHandler http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Use(metricsMiddleware)
	router.Handle("/metrics", metricsHandler).Methods("GET")

	h := handler.NewHandler(svc)
	h.RegisterPublicRoutes(router)

	protected := router.NewRoute().Subrouter()
	protected.Use(handler.AuthMiddleware(svc, events))
	h.RegisterProtectedRoutes(protected)

	return router
}
