package realtime

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// connection is one live subscription. The registry exclusively owns these
// records; callers only ever hold the read side of the sink.
type connection struct {
	sessionID   string
	userID      string
	connectedAt time.Time
	sink        *eventSink
}

// registry is the authoritative store of live connections. Invariants:
// sessionID -> connection is 1:1, every connection appears in exactly one
// user set, and a user key exists iff its session set is non-empty. The
// registry is owned by the broadcaster goroutine and must never be touched
// from outside it, so all operations are lock-free total functions.
type registry struct {
	sessions   map[string]*connection
	users      map[string]map[string]struct{}
	clock      clockwork.Clock
	sinkBuffer int
}

func newRegistry(clock clockwork.Clock, sinkBuffer int) *registry {
	return &registry{
		sessions:   make(map[string]*connection),
		users:      make(map[string]map[string]struct{}),
		clock:      clock,
		sinkBuffer: sinkBuffer,
	}
}

// add registers a new connection and returns its sink. A session ID that is
// already present is replaced: the old sink is closed and its bookkeeping
// removed first, so at most one live connection exists per session ID.
func (r *registry) add(userID, sessionID string) *eventSink {
	r.remove(sessionID)

	sink := newEventSink(r.sinkBuffer)
	r.sessions[sessionID] = &connection{
		sessionID:   sessionID,
		userID:      userID,
		connectedAt: r.clock.Now(),
		sink:        sink,
	}

	set, ok := r.users[userID]
	if !ok {
		set = make(map[string]struct{})
		r.users[userID] = set
	}
	set[sessionID] = struct{}{}

	return sink
}

// remove closes the connection's sink and deletes all bookkeeping. Unknown
// session IDs are a no-op. Empty user sets are deleted eagerly so quota
// checks and stats stay O(1).
func (r *registry) remove(sessionID string) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	conn.sink.close()
	delete(r.sessions, sessionID)

	if set, ok := r.users[conn.userID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.users, conn.userID)
		}
	}
}

// removeMatching removes sessionID only when stream is the registered
// connection's sink (nil matches any). A replace-on-reconnect rebinds the
// session ID to a fresh sink, so the previous owner's remove must not hit
// the replacement.
func (r *registry) removeMatching(sessionID string, stream <-chan Event) {
	conn, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	if stream != nil && stream != (<-chan Event)(conn.sink.ch) {
		return
	}
	r.remove(sessionID)
}

func (r *registry) has(sessionID string) bool {
	_, ok := r.sessions[sessionID]
	return ok
}

// forUser calls fn for every connection belonging to userID. fn must not
// mutate the registry; collect and remove after iteration instead.
func (r *registry) forUser(userID string, fn func(*connection)) {
	for sessionID := range r.users[userID] {
		if conn, ok := r.sessions[sessionID]; ok {
			fn(conn)
		}
	}
}

// forEach calls fn for every live connection.
func (r *registry) forEach(fn func(*connection)) {
	for _, conn := range r.sessions {
		fn(conn)
	}
}

func (r *registry) count() int { return len(r.sessions) }

func (r *registry) userCount() int { return len(r.users) }

func (r *registry) hasUser(userID string) bool {
	_, ok := r.users[userID]
	return ok
}

func (r *registry) sessionCount(userID string) int {
	return len(r.users[userID])
}
