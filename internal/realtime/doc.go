// Package realtime implements the in-process event broadcaster: a connection
// registry keyed by session and user, admission control over per-user and
// global quotas, heartbeat-driven liveness pruning, and isolated fan-out
// delivery to many long-lived subscribers.
package realtime
