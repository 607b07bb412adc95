package http

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finanze",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route pattern and status code.",
	}, []string{"method", "route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "finanze",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	rateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finanze",
		Subsystem: "http",
		Name:      "rate_limit_rejections_total",
		Help:      "Requests rejected by the per-IP rate limiter.",
	})

	sessionsConverted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finanze",
		Name:      "sessions_converted_total",
		Help:      "Bill sessions successfully converted into transactions.",
	})

	insightsCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finanze",
		Subsystem: "http",
		Name:      "insights_cache_requests_total",
		Help:      "Insights cache lookups by outcome (hit or miss).",
	}, []string{"outcome"})
)

func observeRequest(method, route string, status int, elapsed time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
