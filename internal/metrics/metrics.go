// Package metrics exposes Prometheus instrumentation for settlement flows.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PaymentsTotal counts payment outcomes by entity (ticket, order, wallet) and result.
	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_payments_total",
		Help: "Payment confirmations and failures",
	}, []string{"entity", "result"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_refunds_total",
		Help: "Refunds processed",
	}, []string{"entity"})

	// RefundAmount sums refunded money in major currency units.
	RefundAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_refund_amount_total",
		Help: "Refunded amount in major units",
	}, []string{"entity"})

	EscrowReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourmart_escrow_released_total",
		Help: "Orders whose escrow was released to the vendor",
	})

	PointsAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourmart_reward_points_awarded_total",
		Help: "Reward points credited to wallets",
	})

	PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourmart_reward_points_redeemed_total",
		Help: "Reward points converted to wallet balance",
	})

	TicketsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tourmart_tickets_expired_total",
		Help: "Tickets moved to expired by the sweeper",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_webhook_events_total",
		Help: "Gateway webhook deliveries by event and outcome",
	}, []string{"event", "outcome"})

	AnalyticsEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_analytics_events_total",
		Help: "Analytics events by type and publish status",
	}, []string{"type", "status"})

	GatewayRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tourmart_gateway_request_duration_seconds",
		Help:    "Payment gateway call latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tourmart_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tourmart_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency labelled by the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
