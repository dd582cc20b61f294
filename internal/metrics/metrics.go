package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	Orders        *prometheus.CounterVec
	OrderLatency  *prometheus.HistogramVec
	CartRowsPurge prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"handler", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"handler"}),
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Order placement attempts by outcome.",
		}, []string{"outcome"}),
		OrderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "transaction_duration_ms",
			Help:      "Order transaction latency in milliseconds, including lock waits.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"outcome"}),
		CartRowsPurge: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "cart_rows_purged_total",
			Help:      "Cart entries removed because their product was ordered.",
		}),
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.Orders, m.OrderLatency, m.CartRowsPurge)
	return m
}

func (m *Metrics) ObserveRequest(handler string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(d.Milliseconds()))
}

// ObserveOrder records one order attempt. outcome is "success" or the
// failure kind.
func (m *Metrics) ObserveOrder(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(outcome).Inc()
	m.OrderLatency.WithLabelValues(outcome).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) AddCartRowsPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CartRowsPurge.Add(float64(n))
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
