// Package coordination tracks the fleet of running instances in Redis. Each
// process heartbeats its identity and connection counts into a shared hash;
// instances without a recent heartbeat are considered inactive. This is
// fleet observability only — events are never relayed between processes.
package coordination

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/hudsor01/tenant-flow-sub013/internal/metrics"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

const (
	instancesKey       = "tenantflow:instances"
	instanceStaleAfter = 60 * time.Second
)

// StatsSource supplies the connection counts reported in heartbeats.
type StatsSource interface {
	Stats() realtime.Stats
}

// InstanceInfo is one instance's heartbeat record.
type InstanceInfo struct {
	InstanceID  string `json:"instance_id"`
	Timestamp   int64  `json:"timestamp"`
	Version     string `json:"version"`
	Connections int    `json:"connections"`
	Users       int    `json:"users"`
}

// InstanceRegistry periodically writes this instance's heartbeat to Redis.
// Writes run through a circuit breaker so a Redis outage degrades fleet
// visibility without touching the broadcaster.
type InstanceRegistry struct {
	redis      *redis.Client
	instanceID string
	version    string
	interval   time.Duration
	stats      StatsSource
	clock      clockwork.Clock
	breaker    *gobreaker.CircuitBreaker
}

// NewInstanceRegistry creates an instance registry. instanceID must be
// unique per process (e.g. hostname or a UUID).
func NewInstanceRegistry(redisClient *redis.Client, instanceID, version string, interval time.Duration, stats StatsSource, clock clockwork.Clock) *InstanceRegistry {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "instance-registry",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Instance registry circuit state changed", "from", from.String(), "to", to.String())
		},
	})

	return &InstanceRegistry{
		redis:      redisClient,
		instanceID: instanceID,
		version:    version,
		interval:   interval,
		stats:      stats,
		clock:      clock,
		breaker:    breaker,
	}
}

// Start registers immediately, then heartbeats on the interval. Blocks until
// ctx is cancelled, then unregisters and returns.
func (r *InstanceRegistry) Start(ctx context.Context) {
	r.register(ctx)

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			r.register(ctx)
		case <-ctx.Done():
			r.unregister()
			return
		}
	}
}

func (r *InstanceRegistry) register(ctx context.Context) {
	stats := realtime.Stats{}
	if r.stats != nil {
		stats = r.stats.Stats()
	}

	info := InstanceInfo{
		InstanceID:  r.instanceID,
		Timestamp:   r.clock.Now().Unix(),
		Version:     r.version,
		Connections: stats.TotalConnections,
		Users:       stats.UniqueUsers,
	}

	data, err := json.Marshal(info)
	if err != nil {
		slog.Error("Failed to marshal instance heartbeat", "error", err)
		return
	}

	_, err = r.breaker.Execute(func() (any, error) {
		return nil, r.redis.HSet(ctx, instancesKey, r.instanceID, data).Err()
	})
	if err != nil {
		metrics.InstanceHeartbeatFailuresTotal.Inc()
		slog.Warn("Instance heartbeat failed", "instance_id", r.instanceID, "error", err)
	}
}

func (r *InstanceRegistry) unregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := r.redis.HDel(ctx, instancesKey, r.instanceID).Err(); err != nil {
		slog.Warn("Failed to unregister instance", "instance_id", r.instanceID, "error", err)
	}
}

// GetActiveInstances returns heartbeat records written within the last 60
// seconds, stale entries excluded.
func (r *InstanceRegistry) GetActiveInstances(ctx context.Context) ([]InstanceInfo, error) {
	entries, err := r.redis.HGetAll(ctx, instancesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read instance registry: %w", err)
	}

	now := r.clock.Now().Unix()
	active := []InstanceInfo{}
	for _, data := range entries {
		var info InstanceInfo
		if err := json.Unmarshal([]byte(data), &info); err != nil {
			continue
		}
		if now-info.Timestamp < int64(instanceStaleAfter.Seconds()) {
			active = append(active, info)
		}
	}

	return active, nil
}
