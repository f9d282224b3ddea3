package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight *prometheus.GaugeVec
	size     *prometheus.HistogramVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &httpMetrics{
		requests: registerOrReuse(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "pairflow_http_requests_total", Help: "HTTP requests by route and status"},
			[]string{"route", "method", "status"},
		)),
		duration: registerOrReuse(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairflow_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "method", "class"},
		)),
		inFlight: registerOrReuse(reg, prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "pairflow_http_in_flight_requests", Help: "HTTP requests being served"},
			[]string{"route"},
		)),
		size: registerOrReuse(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairflow_http_response_size_bytes",
				Help:    "HTTP response body size",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"route", "class"},
		)),
	}
}

// registerOrReuse returns the collector already registered under the same
// descriptor, so several servers can share one registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// Metrics records request counts, latency and response size labelled by the
// matched route template. Websocket upgrades are counted but their lifetime
// is not observed as latency.
func Metrics(reg prometheus.Registerer) echo.MiddlewareFunc {
	m := newHTTPMetrics(reg)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := routeOf(c)
			m.inFlight.WithLabelValues(route).Inc()
			defer m.inFlight.WithLabelValues(route).Dec()

			start := time.Now()
			err := next(c)
			status := statusOf(c, err)
			class := statusClass(status)
			method := c.Request().Method

			m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			if isUpgrade(c.Request()) {
				return err
			}
			m.duration.WithLabelValues(route, method, class).Observe(time.Since(start).Seconds())
			m.size.WithLabelValues(route, class).Observe(float64(c.Response().Size))
			return err
		}
	}
}

// routeOf keeps label cardinality bounded: unmatched paths share one label.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

// statusOf predicts the status the error handler will write when a handler
// returned an error without committing a response.
func statusOf(c echo.Context, err error) int {
	res := c.Response()
	if err == nil || res.Committed {
		return res.Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get(echo.HeaderUpgrade), "websocket")
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return strconv.Itoa(code/100) + "xx"
}
