package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	OrderActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_actions_total",
			Help: "Order actions executed, by action and result",
		},
		[]string{"action", "result"},
	)

	OrderEventsInsertedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_events_inserted_total",
			Help: "Audit events appended, by canonical event type",
		},
		[]string{"event_type"},
	)

	RefundsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "refunds_total",
			Help: "Refunds processed",
		},
	)

	ReturnsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "returns_total",
			Help: "Returns processed",
		},
	)

	OrderListCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_list_cache_hits_total",
			Help: "Order list pages served from cache",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		OrderActionsTotal,
		OrderEventsInsertedTotal,
		RefundsTotal,
		ReturnsTotal,
		OrderListCacheHitsTotal,
		HTTPRequestDuration,
	)
}

// Instrument records request duration labelled by the matched route.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
