package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emi_http_requests_total",
			Help: "Total number of HTTP requests processed by the service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "emi_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	messagesSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emi_messages_sent_total",
			Help: "Total number of chat messages stored.",
		},
		[]string{"chat_type"},
	)
	postsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emi_posts_created_total",
			Help: "Total number of channel posts created.",
		},
	)
	reactionsToggledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emi_reactions_toggled_total",
			Help: "Reaction toggles by outcome.",
		},
		[]string{"outcome"},
	)
	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emi_wallet_logins_total",
			Help: "Wallet login attempts by network and result.",
		},
		[]string{"network", "result"},
	)
	expiredMessagesPurged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emi_expired_messages_purged_total",
			Help: "Secret messages removed by the expiry sweeper.",
		},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "emi_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		messagesSentTotal,
		postsCreatedTotal,
		reactionsToggledTotal,
		logins,
		expiredMessagesPurged,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncMessageSent(chatType string) {
	messagesSentTotal.WithLabelValues(chatType).Inc()
}

func IncPostCreated() {
	postsCreatedTotal.Inc()
}

// IncReaction records a toggle outcome: added, removed or rejected.
func IncReaction(outcome string) {
	reactionsToggledTotal.WithLabelValues(outcome).Inc()
}

func IncLogin(network, result string) {
	logins.WithLabelValues(network, result).Inc()
}

func AddExpiredPurged(n int64) {
	if n > 0 {
		expiredMessagesPurged.Add(float64(n))
	}
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
