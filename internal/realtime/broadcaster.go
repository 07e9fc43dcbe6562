package realtime

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hudsor01/tenant-flow-sub013/internal/metrics"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second

	// DefaultHeartbeatInterval is how often the liveness sweep runs.
	DefaultHeartbeatInterval = 30 * time.Second
)

// ErrStopped is returned by Subscribe once the broadcaster has shut down.
var ErrStopped = errors.New("broadcaster stopped")

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type subscribeCmd struct {
	baseBroadcasterCmd
	userID       string
	sessionID    string
	replyChannel chan subscribeReply
}

type subscribeReply struct {
	stream <-chan Event
	err    error
}

type unsubscribeCmd struct {
	baseBroadcasterCmd
	sessionID string
	stream    <-chan Event
}

type broadcastCmd struct {
	baseBroadcasterCmd
	userID       string
	toAll        bool
	event        Event
	replyChannel chan DeliveryReport
}

type statsCmd struct {
	baseBroadcasterCmd
	replyChannel chan Stats
}

type isUserConnectedCmd struct {
	baseBroadcasterCmd
	userID       string
	replyChannel chan bool
}

type stopCmd struct {
	baseBroadcasterCmd
}

// DeliveryReport counts the outcome of one fan-out. Failed is advisory: the
// failing connections have already been pruned by the time it is returned.
type DeliveryReport struct {
	Delivered int
	Failed    int
}

// Stats is a point-in-time snapshot of the registry.
type Stats struct {
	TotalConnections int `json:"total_connections"`
	UniqueUsers      int `json:"unique_users"`
}

// Options configures a Broadcaster. Zero fields fall back to defaults.
type Options struct {
	Admission         AdmissionPolicy
	HeartbeatInterval time.Duration
	SinkBuffer        int
}

// Broadcaster fans out server-originated events to connected sessions. All
// registry state is owned by a single actor goroutine fed by a command
// channel, so subscribe, unsubscribe, broadcast, and the heartbeat sweep
// serialize naturally without locks.
type Broadcaster struct {
	cmdCh             chan broadcasterCmd
	clock             clockwork.Clock
	registry          *registry
	admission         AdmissionPolicy
	heartbeatInterval time.Duration
	done              chan struct{}
}

// NewBroadcaster creates a broadcaster and starts its actor goroutine.
func NewBroadcaster(opts Options, clock clockwork.Clock) *Broadcaster {
	if opts.Admission.MaxTotal <= 0 {
		opts.Admission.MaxTotal = DefaultMaxTotalConnections
	}
	if opts.Admission.MaxPerUser <= 0 {
		opts.Admission.MaxPerUser = DefaultMaxConnectionsPerUser
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.SinkBuffer <= 0 {
		opts.SinkBuffer = defaultSinkBuffer
	}

	b := &Broadcaster{
		cmdCh:             make(chan broadcasterCmd, 256),
		clock:             clock,
		registry:          newRegistry(clock, opts.SinkBuffer),
		admission:         opts.Admission,
		heartbeatInterval: opts.HeartbeatInterval,
		done:              make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe admits a new session for userID and returns its event stream.
// The first event on the stream is always a synthetic "connected" event.
// Repeated calls with the same session ID replace the previous connection;
// distinct session IDs count against the user's quota. Admission failures
// are returned as ErrGlobalCapacityExceeded or ErrPerUserCapacityExceeded.
func (b *Broadcaster) Subscribe(userID, sessionID string) (<-chan Event, error) {
	replyCh := make(chan subscribeReply, 1)
	if !b.send(subscribeCmd{userID: userID, sessionID: sessionID, replyChannel: replyCh}) {
		return nil, ErrStopped
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply.stream, reply.err
	case <-timer.Chan():
		return nil, fmt.Errorf("subscribe command timed out after %v", commandTimeout)
	}
}

// Unsubscribe closes the session's stream and removes it from the registry.
// stream identifies which subscription the caller owns: when the session ID
// has since been rebound to a replacement connection, the call is a no-op,
// so a stale caller can never tear down its successor. A nil stream removes
// whatever connection currently holds the session ID. Safe to call multiple
// times or with an unknown session ID.
func (b *Broadcaster) Unsubscribe(sessionID string, stream <-chan Event) {
	b.send(unsubscribeCmd{sessionID: sessionID, stream: stream})
}

// Broadcast pushes an event to every connection held by userID. Connections
// whose push fails are pruned; the producer only sees the counts. A user
// with zero connections yields an empty report, not an error.
func (b *Broadcaster) Broadcast(userID string, event Event) DeliveryReport {
	return b.deliver(broadcastCmd{userID: userID, event: event})
}

// BroadcastToAll pushes an event to every connection in the registry with
// the same per-connection failure isolation as Broadcast.
func (b *Broadcaster) BroadcastToAll(event Event) DeliveryReport {
	return b.deliver(broadcastCmd{toAll: true, event: event})
}

func (b *Broadcaster) deliver(cmd broadcastCmd) DeliveryReport {
	cmd.replyChannel = make(chan DeliveryReport, 1)
	if !b.send(cmd) {
		return DeliveryReport{}
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case report := <-cmd.replyChannel:
		return report
	case <-timer.Chan():
		slog.Warn("Broadcast command timed out", "timeout", commandTimeout)
		return DeliveryReport{}
	}
}

// Stats returns the current connection and user counts.
func (b *Broadcaster) Stats() Stats {
	replyCh := make(chan Stats, 1)
	if !b.send(statsCmd{replyChannel: replyCh}) {
		return Stats{}
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case stats := <-replyCh:
		return stats
	case <-timer.Chan():
		slog.Warn("Stats command timed out", "timeout", commandTimeout)
		return Stats{}
	}
}

// IsUserConnected reports whether userID holds at least one live connection.
func (b *Broadcaster) IsUserConnected(userID string) bool {
	replyCh := make(chan bool, 1)
	if !b.send(isUserConnectedCmd{userID: userID, replyChannel: replyCh}) {
		return false
	}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case connected := <-replyCh:
		return connected
	case <-timer.Chan():
		return false
	}
}

// Stop closes every connection and terminates the actor goroutine. Blocks
// until the goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	if !b.send(stopCmd{}) {
		return
	}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.done:
		slog.Info("Broadcaster stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
	}
}

// send enqueues a command unless the actor has already exited, so callers
// never block on a dead command channel. done is checked first: a closed
// done and a free buffer slot are both ready, and enqueueing onto a dead
// actor would leave the caller waiting out its command timeout.
func (b *Broadcaster) send(cmd broadcasterCmd) bool {
	select {
	case <-b.done:
		return false
	default:
	}

	select {
	case b.cmdCh <- cmd:
		return true
	case <-b.done:
		return false
	}
}

func (b *Broadcaster) run() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Broadcaster panic recovered", "panic", r)
			metrics.BroadcasterPanicsTotal.Inc()
			b.closeAll()
		}
	}()

	ticker := b.clock.NewTicker(b.heartbeatInterval)
	defer ticker.Stop()
	defer close(b.done)

	for {
		select {
		case cmd := <-b.cmdCh:
			metrics.BroadcasterCommandChannelDepth.Set(float64(len(b.cmdCh)))

			switch c := cmd.(type) {
			case subscribeCmd:
				b.handleSubscribe(c)
			case unsubscribeCmd:
				b.registry.removeMatching(c.sessionID, c.stream)
				b.syncGauges()
			case broadcastCmd:
				c.replyChannel <- b.handleBroadcast(c)
			case statsCmd:
				c.replyChannel <- Stats{
					TotalConnections: b.registry.count(),
					UniqueUsers:      b.registry.userCount(),
				}
			case isUserConnectedCmd:
				c.replyChannel <- b.registry.hasUser(c.userID)
			case stopCmd:
				b.handleStop()
				return
			default:
				slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-ticker.Chan():
			b.handleHeartbeat()
		}
	}
}

func (b *Broadcaster) handleSubscribe(c subscribeCmd) {
	// A reconnect under a known session ID replaces the old connection and
	// cannot change either quota, so admission is skipped for it.
	if !b.registry.has(c.sessionID) {
		if err := b.admission.check(c.userID, b.registry); err != nil {
			metrics.BroadcasterAdmissionRejectionsTotal.WithLabelValues(rejectionReason(err)).Inc()
			slog.Warn("Rejecting subscription",
				"user_id", c.userID,
				"session_id", c.sessionID,
				"reason", err,
			)
			c.replyChannel <- subscribeReply{err: err}
			return
		}
	}

	sink := b.registry.add(c.userID, c.sessionID)

	// The connected event is pushed before the stream is handed out, so
	// subscribers always observe a deterministic first event.
	sink.tryPush(Event{
		Kind:      KindConnected,
		Timestamp: b.clock.Now(),
		Payload:   map[string]any{"session_id": c.sessionID},
	})

	b.syncGauges()
	slog.Debug("Session subscribed",
		"user_id", c.userID,
		"session_id", c.sessionID,
		"user_sessions", b.registry.sessionCount(c.userID),
	)
	c.replyChannel <- subscribeReply{stream: sink.ch}
}

func (b *Broadcaster) handleBroadcast(c broadcastCmd) DeliveryReport {
	var report DeliveryReport
	var dead []string

	push := func(conn *connection) {
		if conn.sink.tryPush(c.event) {
			report.Delivered++
		} else {
			report.Failed++
			dead = append(dead, conn.sessionID)
		}
	}

	if c.toAll {
		b.registry.forEach(push)
	} else {
		b.registry.forUser(c.userID, push)
	}

	// Failed connections are collected during iteration and removed after
	// the sweep so the maps are never mutated while being iterated.
	for _, sessionID := range dead {
		slog.Warn("Pruning session after failed delivery", "session_id", sessionID, "kind", c.event.Kind)
		b.registry.remove(sessionID)
		metrics.BroadcasterSessionsPrunedTotal.WithLabelValues("broadcast").Inc()
	}

	scope := "user"
	if c.toAll {
		scope = "all"
	}
	metrics.BroadcasterEventsDeliveredTotal.WithLabelValues(scope).Add(float64(report.Delivered))
	metrics.BroadcasterEventsFailedTotal.WithLabelValues(scope).Add(float64(report.Failed))
	b.syncGauges()

	return report
}

// handleHeartbeat pushes a heartbeat event to every connection. The
// heartbeat doubles as the liveness probe: a failed push is itself the
// detection signal, so dead peers are reclaimed without a ping/pong
// handshake, at the cost of up to one interval of detection latency.
func (b *Broadcaster) handleHeartbeat() {
	ev := Event{
		Kind:      KindHeartbeat,
		Timestamp: b.clock.Now(),
	}

	var delivered int
	var dead []string
	b.registry.forEach(func(conn *connection) {
		if conn.sink.tryPush(ev) {
			delivered++
		} else {
			dead = append(dead, conn.sessionID)
		}
	})

	for _, sessionID := range dead {
		slog.Info("Pruning dead session on heartbeat", "session_id", sessionID)
		b.registry.remove(sessionID)
		metrics.BroadcasterSessionsPrunedTotal.WithLabelValues("heartbeat").Inc()
	}

	metrics.BroadcasterEventsDeliveredTotal.WithLabelValues("heartbeat").Add(float64(delivered))
	metrics.BroadcasterEventsFailedTotal.WithLabelValues("heartbeat").Add(float64(len(dead)))
	b.syncGauges()
}

func (b *Broadcaster) handleStop() {
	total := b.registry.count()
	slog.Info("Broadcaster shutting down", "connections", total, "users", b.registry.userCount())
	b.closeAll()
	slog.Info("Broadcaster shutdown complete", "disconnected", total)
}

func (b *Broadcaster) closeAll() {
	var sessions []string
	b.registry.forEach(func(conn *connection) {
		sessions = append(sessions, conn.sessionID)
	})
	for _, sessionID := range sessions {
		b.registry.remove(sessionID)
	}
	b.syncGauges()
}

func (b *Broadcaster) syncGauges() {
	metrics.BroadcasterActiveConnections.Set(float64(b.registry.count()))
	metrics.BroadcasterConnectedUsers.Set(float64(b.registry.userCount()))
}

func rejectionReason(err error) string {
	switch err {
	case ErrGlobalCapacityExceeded:
		return "global_capacity"
	case ErrPerUserCapacityExceeded:
		return "per_user_capacity"
	default:
		return "unknown"
	}
}
