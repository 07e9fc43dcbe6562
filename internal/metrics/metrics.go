// Package metrics defines the Prometheus instruments exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// BroadcasterActiveConnections tracks live connections across all users
	BroadcasterActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_active_connections",
			Help: "Number of live connections in the registry",
		},
	)

	// BroadcasterConnectedUsers tracks distinct users with at least one connection
	BroadcasterConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_users",
			Help: "Number of distinct users with at least one live connection",
		},
	)

	// BroadcasterEventsDeliveredTotal counts successful event pushes by scope (user/all/heartbeat)
	BroadcasterEventsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_events_delivered_total",
			Help: "Events successfully pushed to a connection sink, by broadcast scope",
		},
		[]string{"scope"},
	)

	// BroadcasterEventsFailedTotal counts failed event pushes by scope
	BroadcasterEventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_events_failed_total",
			Help: "Event pushes that failed (closed sink or full buffer), by broadcast scope",
		},
		[]string{"scope"},
	)

	// BroadcasterAdmissionRejectionsTotal counts rejected subscriptions by reason
	BroadcasterAdmissionRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_admission_rejections_total",
			Help: "Subscriptions rejected by admission control, by reason",
		},
		[]string{"reason"},
	)

	// BroadcasterSessionsPrunedTotal counts connections removed after failed delivery
	BroadcasterSessionsPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcaster_sessions_pruned_total",
			Help: "Connections pruned after a failed push, by trigger (broadcast/heartbeat)",
		},
		[]string{"trigger"},
	)

	// BroadcasterCommandChannelDepth tracks the actor command queue depth
	BroadcasterCommandChannelDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_command_channel_depth",
			Help: "Current depth of the broadcaster command channel",
		},
	)

	// BroadcasterStopTimeoutsTotal counts shutdowns that exceeded the stop timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Broadcaster shutdowns that exceeded the stop timeout",
		},
	)

	// BroadcasterPanicsTotal counts recovered panics in the broadcaster goroutine
	BroadcasterPanicsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_panics_total",
			Help: "Panics recovered in the broadcaster goroutine",
		},
	)
)

// WebSocket edge metrics
var (
	// WebSocketConnectionsRejectedTotal counts upgrades refused at the socket edge
	WebSocketConnectionsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "WebSocket connections rejected before upgrade, by reason",
		},
		[]string{"reason"},
	)

	// WebSocketMessageSendDuration tracks wire write latency in seconds
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "Time to write one event frame to a WebSocket client",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)

// Coordination metrics
var (
	// InstanceHeartbeatFailuresTotal counts failed instance-registry writes
	InstanceHeartbeatFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "instance_heartbeat_failures_total",
			Help: "Failed instance registry heartbeat writes to Redis",
		},
	)
)
