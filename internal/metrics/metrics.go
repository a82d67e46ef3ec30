package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsim_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Conversation metrics
	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_messages_appended_total",
			Help: "Total messages appended to the conversation log",
		},
		[]string{"sender", "kind"},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsim_messages_deleted_total",
			Help: "Total messages deleted by position",
		},
	)

	ReactionsAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsim_reactions_added_total",
			Help: "Total reactions added",
		},
	)

	LogClears = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chatsim_log_clears_total",
			Help: "Total conversation clears",
		},
	)

	RejectedCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_rejected_commands_total",
			Help: "Commands rejected without changing the log",
		},
		[]string{"reason"},
	)

	// Responder metrics
	RepliesScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_replies_scheduled_total",
			Help: "Bot replies scheduled",
		},
		[]string{"persona"},
	)

	RepliesDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_replies_delivered_total",
			Help: "Bot replies appended to the log",
		},
		[]string{"persona"},
	)

	RepliesPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsim_replies_pending",
			Help: "Bot replies waiting on their timer",
		},
	)

	// Persistence metrics
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_persistence_failures_total",
			Help: "Durable reads or writes that failed",
		},
		[]string{"op"},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatsim_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
		[]string{"op"},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatsim_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatsim_websocket_clients",
			Help: "Connected WebSocket clients",
		},
	)
)
