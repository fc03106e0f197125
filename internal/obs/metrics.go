package obs

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics groups Prometheus collectors for HTTP observability.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics registers and returns HTTP metrics collectors.
func NewHTTPMetrics(namespace string, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTPMetrics{
		ReqTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		ReqDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency distribution in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
	}
	reg.MustRegister(m.ReqTotal, m.ReqDur, m.InFlight)
	return m
}

// Middleware instruments request handling with the registered collectors.
func (m *HTTPMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		m.InFlight.Inc()
		defer m.InFlight.Dec()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.ReqDur.WithLabelValues(r.Method, route).Observe(float64(time.Since(start).Milliseconds()))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

var (
	domainOnce sync.Once

	// OrderMutationsTotal counts pricing engine mutations by operation and outcome.
	OrderMutationsTotal *prometheus.CounterVec
	// PaymentsRecordedTotal counts recorded payments by kind and method.
	PaymentsRecordedTotal *prometheus.CounterVec
	// ReturnsCreatedTotal counts return creation outcomes.
	ReturnsCreatedTotal *prometheus.CounterVec
	// HeldOrdersSwept counts held orders voided by the sweep job.
	HeldOrdersSwept prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		OrderMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_mutations_total",
			Help:      "Count of order pricing mutations by operation and result.",
		}, []string{"op", "result"})
		PaymentsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of recorded payments by kind and method.",
		}, []string{"kind", "method"})
		ReturnsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "returns_created_total",
			Help:      "Count of return creation outcomes.",
		}, []string{"result"})
		HeldOrdersSwept = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "held_orders_swept_total",
			Help:      "Count of held orders voided by the expiry sweep.",
		})
		reg.MustRegister(OrderMutationsTotal, PaymentsRecordedTotal, ReturnsCreatedTotal, HeldOrdersSwept)
	})
}

// CountSwept adds voided held orders to the sweep counter when metrics are
// enabled.
func CountSwept(n int) {
	if HeldOrdersSwept == nil || n <= 0 {
		return
	}
	HeldOrdersSwept.Add(float64(n))
}

// CountPayment increments the payment counter when metrics are enabled.
func CountPayment(kind, method string) {
	if PaymentsRecordedTotal == nil {
		return
	}
	PaymentsRecordedTotal.WithLabelValues(kind, method).Inc()
}

// CountReturn increments the return outcome counter when metrics are enabled.
func CountReturn(err error) {
	if ReturnsCreatedTotal == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "rejected"
	}
	ReturnsCreatedTotal.WithLabelValues(result).Inc()
}

// CountOrderMutation increments the order mutation counter when metrics are enabled.
func CountOrderMutation(op string, err error) {
	if OrderMutationsTotal == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	OrderMutationsTotal.WithLabelValues(op, result).Inc()
}
