package realtime

import "time"

// Event kinds emitted by the broadcaster itself. Producers use their own
// kinds (tenant_updated, payment_status_changed, ...) on top of these.
const (
	KindConnected = "connected"
	KindHeartbeat = "heartbeat"
)

// Event is a single notification pushed to subscribed clients. Events are
// immutable once constructed; the same value is handed to every interested
// connection.
type Event struct {
	Kind          string         `json:"kind"`
	Timestamp     time.Time      `json:"timestamp"`
	Payload       map[string]any `json:"payload,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}
