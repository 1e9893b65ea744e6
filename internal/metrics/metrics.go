// Package metrics holds the Prometheus collectors of the shop services.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Checkouts           *prometheus.CounterVec // outcome
	StockRejections     prometheus.Counter
	TxConflicts         prometheus.Counter
	CascadeDeactivated  *prometheus.CounterVec // kind of the rows switched off
	OrderTransitions    *prometheus.CounterVec // to
	ImageDeleteFailures prometheus.Counter
}

func New(namespace string) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkouts_total", Help: "Order placements by outcome.",
		}, []string{"outcome"}),
		StockRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stock_rejections_total", Help: "Stock checks or decrements refused for insufficient stock.",
		}),
		TxConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tx_conflicts_total", Help: "Transactions aborted by the store.",
		}),
		CascadeDeactivated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cascade_deactivated_total", Help: "Rows deactivated by cascades.",
		}, []string{"kind"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "order_transitions_total", Help: "Order status transitions by target status.",
		}, []string{"to"}),
		ImageDeleteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "image_delete_failures_total", Help: "Best-effort image deletions that failed.",
		}),
	}
	m.reg.MustRegister(
		m.HTTPRequests, m.HTTPRequestDuration, m.Checkouts, m.StockRejections, m.TxConflicts,
		m.CascadeDeactivated, m.OrderTransitions, m.ImageDeleteFailures,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ObserveCheckout records the outcome of one placement attempt. Nil-safe.
func (m *Metrics) ObserveCheckout(err error) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(Outcome(err)).Inc()
	m.ObserveError(err)
}

// ObserveError counts the store and stock failures carried by err. Nil-safe.
func (m *Metrics) ObserveError(err error) {
	if m == nil || err == nil {
		return
	}
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		m.StockRejections.Inc()
	case errors.Is(err, domain.ErrConcurrencyConflict):
		m.TxConflicts.Inc()
	}
}

func (m *Metrics) ObserveCascade(subcategories, products int64) {
	if m == nil {
		return
	}
	m.CascadeDeactivated.WithLabelValues(string(domain.KindSubcategory)).Add(float64(subcategories))
	m.CascadeDeactivated.WithLabelValues(string(domain.KindProduct)).Add(float64(products))
}

func (m *Metrics) ObserveTransition(to domain.Status) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) ObserveImageDeleteFailure() {
	if m == nil {
		return
	}
	m.ImageDeleteFailures.Inc()
}

// Outcome is the checkout label for err.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrProductNotPurchasable):
		return "not_purchasable"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "error"
	}
}

// Middleware records count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
