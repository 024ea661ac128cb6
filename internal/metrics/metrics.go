package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timebank/internal/apperr"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timebank",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "timebank",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	engineOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "timebank",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by name and outcome.",
		},
		[]string{"op", "outcome"},
	)

	creditMinutes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "timebank",
			Subsystem: "engine",
			Name:      "credit_minutes_total",
			Help:      "Credit-minutes earned by providers on completed transactions.",
		},
	)

	notifications = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "timebank",
			Subsystem: "notifications",
			Name:      "delivered_total",
			Help:      "Notifications handed to the outbound channel.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpRequests,
		httpDuration,
		engineOps,
		creditMinutes,
		notifications,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apperr.HTTPStatus(err)
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Method())
		httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordOp counts one engine operation. A nil err counts as "ok".
func RecordOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	engineOps.WithLabelValues(op, outcome).Inc()
}

func RecordCredit(minutes float64) {
	if minutes > 0 {
		creditMinutes.Add(minutes)
	}
}

func RecordNotification() { notifications.Inc() }
