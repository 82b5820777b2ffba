// Package observability provides Prometheus metrics and OpenTelemetry tracing.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ActiveWebSockets is the gauge of currently open WebSocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_events_total",
		Help: "Total inbound WebSocket events by type",
	}, []string{"event"})

	// BroadcastRelayedTotal counts post events relayed to other connections.
	BroadcastRelayedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_broadcast_relayed_total",
		Help: "Total post events relayed to peer connections",
	}, []string{"event"})

	// BroadcastDroppedTotal counts malformed event payloads dropped by the
	// hub. Drops are deliberate fire-and-forget behavior, but they must stay
	// observable for operability.
	BroadcastDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_broadcast_dropped_total",
		Help: "Total event payloads dropped by the hub, by reason",
	}, []string{"reason"})

	// WebSocketBackpressureDrops counts messages dropped because a client's
	// send buffer was full or its channel already closed.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_backpressure_drops_total",
		Help: "Total WebSocket messages dropped due to backpressure",
	}, []string{"reason"})

	// MediaStoreOperations counts media store calls by operation and outcome.
	MediaStoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_media_store_operations_total",
		Help: "Total media store operations by type and outcome",
	}, []string{"operation", "outcome"})
)
