package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Invocation outcomes.
const (
	OutcomeChallenged = "challenged"
	OutcomeRejected   = "rejected"
	OutcomeFulfilled  = "fulfilled"
	OutcomeFailed     = "failed"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clawmart_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	SkillInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_skill_invocations_total",
			Help: "Skill invocations by outcome",
		},
		[]string{"skill", "outcome"},
	)

	Revenue = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_revenue_usdc_total",
			Help: "Settled payment volume in USDC",
		},
		[]string{"skill"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_events_total",
			Help: "Marketplace events by type",
		},
		[]string{"type"},
	)

	ListingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_listing_cache_total",
			Help: "Public listing cache lookups by result",
		},
		[]string{"result"},
	)

	PushDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clawmart_push_deliveries_total",
			Help: "Web push deliveries by result",
		},
		[]string{"result"},
	)
)

// Middleware records request counts and latency keyed by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
