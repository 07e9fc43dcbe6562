package realtime

import "errors"

// Default capacity limits. The env overrides live in internal/config.
const (
	DefaultMaxTotalConnections   = 1000
	DefaultMaxConnectionsPerUser = 5
)

var (
	// ErrGlobalCapacityExceeded rejects a subscribe when the process-wide
	// connection limit is reached. Callers should answer with
	// service-unavailable semantics upstream.
	ErrGlobalCapacityExceeded = errors.New("global connection capacity exceeded")

	// ErrPerUserCapacityExceeded rejects a subscribe when a single user
	// already holds the maximum number of concurrent sessions.
	ErrPerUserCapacityExceeded = errors.New("per-user connection capacity exceeded")
)

// AdmissionPolicy decides whether a new subscription may be admitted. It
// protects the process from unbounded connection growth and a single user
// from monopolizing capacity.
type AdmissionPolicy struct {
	MaxTotal   int
	MaxPerUser int
}

// DefaultAdmissionPolicy returns the stock limits: 1000 total, 5 per user.
func DefaultAdmissionPolicy() AdmissionPolicy {
	return AdmissionPolicy{
		MaxTotal:   DefaultMaxTotalConnections,
		MaxPerUser: DefaultMaxConnectionsPerUser,
	}
}

// check reports whether a new connection for userID may be admitted. The
// global limit is checked first so a saturated process reports the
// distinguishing error even when the user is also over quota. Checking
// never mutates registry state.
func (p AdmissionPolicy) check(userID string, reg *registry) error {
	if reg.count() >= p.MaxTotal {
		return ErrGlobalCapacityExceeded
	}
	if reg.sessionCount(userID) >= p.MaxPerUser {
		return ErrPerUserCapacityExceeded
	}
	return nil
}
