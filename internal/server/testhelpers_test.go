package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/hudsor01/tenant-flow-sub013/internal/app"
	"github.com/hudsor01/tenant-flow-sub013/internal/config"
	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

// stubTenantRepo is an in-memory domain.TenantRepository for handler tests.
type stubTenantRepo struct {
	mu      sync.Mutex
	tenants map[uuid.UUID]*domain.Tenant
}

func newStubTenantRepo() *stubTenantRepo {
	return &stubTenantRepo{tenants: map[uuid.UUID]*domain.Tenant{}}
}

func (r *stubTenantRepo) seed(t *domain.Tenant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tenants[t.ID] = t
}

func (r *stubTenantRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, domain.ErrTenantNotFound
	}
	out := *t
	return &out, nil
}

func (r *stubTenantRepo) Update(_ context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[tenant.ID]; !ok {
		return nil, domain.ErrTenantNotFound
	}
	out := *tenant
	r.tenants[tenant.ID] = &out
	result := out
	return &result, nil
}

type stubPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*domain.Payment
}

func newStubPaymentRepo() *stubPaymentRepo {
	return &stubPaymentRepo{payments: map[uuid.UUID]*domain.Payment{}}
}

func (r *stubPaymentRepo) seed(p *domain.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments[p.ID] = p
}

func (r *stubPaymentRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	out := *p
	return &out, nil
}

func (r *stubPaymentRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrPaymentNotFound
	}
	p.Status = status
	out := *p
	return &out, nil
}

// testEnv bundles a server with the fakes behind it.
type testEnv struct {
	srv         *Server
	broadcaster *realtime.Broadcaster
	tenants     *stubTenantRepo
	payments    *stubPaymentRepo
}

type testServerOption func(*Server)

func withRedisHealthCheck(p redisPinger) testServerOption {
	return func(s *Server) { s.redisHealthCheck = p }
}

func withPostgresHealthCheck(p postgresPinger) testServerOption {
	return func(s *Server) { s.postgresHealthCheck = p }
}

func testConfig() *config.Config {
	return &config.Config{
		Port:                      "0",
		HeartbeatInterval:         time.Minute,
		MaxConnectionsPerUser:     5,
		MaxTotalConnections:       100,
		MaxConnectionsPerIP:       50,
		ConnectionRatePerSecond:   1000,
		ConnectionRateBurst:       1000,
		InstanceHeartbeatInterval: time.Minute,
	}
}

func newTestEnv(t *testing.T, cfg *config.Config, opts ...testServerOption) *testEnv {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}

	broadcaster := realtime.NewBroadcaster(realtime.Options{
		Admission: realtime.AdmissionPolicy{
			MaxTotal:   cfg.MaxTotalConnections,
			MaxPerUser: cfg.MaxConnectionsPerUser,
		},
		HeartbeatInterval: cfg.HeartbeatInterval,
	}, clockwork.NewRealClock())
	t.Cleanup(broadcaster.Stop)

	tenants := newStubTenantRepo()
	payments := newStubPaymentRepo()
	appService := app.NewService(tenants, payments, broadcaster, clockwork.NewRealClock())

	srv := NewServer(cfg, broadcaster, appService, nil, nil, nil)
	for _, opt := range opts {
		opt(srv)
	}

	return &testEnv{
		srv:         srv,
		broadcaster: broadcaster,
		tenants:     tenants,
		payments:    payments,
	}
}
