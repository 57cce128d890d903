package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "checkout"

type CheckoutMetrics struct {
	Operations       *prometheus.CounterVec
	GatewayCalls     *prometheus.CounterVec
	OrdersPublished  *prometheus.CounterVec
	Requests         *prometheus.CounterVec
	RequestLatencyMS *prometheus.HistogramVec
	gatherer         prometheus.Gatherer
}

// NewCheckoutMetrics registers the collectors on reg. A nil reg uses a fresh
// private registry, which keeps tests independent.
func NewCheckoutMetrics(reg *prometheus.Registry) *CheckoutMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &CheckoutMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Checkout operations by outcome.",
		}, []string{"operation", "outcome"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_calls_total",
			Help:      "Payment gateway calls by method and result.",
		}, []string{"method", "result"}),
		OrdersPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_published_total",
			Help:      "Order events handed to the bus, by source.",
		}, []string{"source", "result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		RequestLatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Operations, m.GatewayCalls, m.OrdersPublished, m.Requests, m.RequestLatencyMS)
	return m
}

func (m *CheckoutMetrics) Outcome(operation, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *CheckoutMetrics) GatewayCall(method string, err error) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(method, result(err)).Inc()
}

func (m *CheckoutMetrics) Published(source string, err error) {
	if m == nil {
		return
	}
	m.OrdersPublished.WithLabelValues(source, result(err)).Inc()
}

// Middleware records request counts and latency per chi route pattern.
func (m *CheckoutMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.RequestLatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

func (m *CheckoutMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
