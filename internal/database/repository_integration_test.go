package database

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
)

var testDatabaseURL string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := pgcontainer.Run(ctx, "postgres:16-alpine",
		pgcontainer.WithDatabase("tenantflow_test"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	testDatabaseURL, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
	}
	os.Exit(code)
}

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, testDatabaseURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM payments; DELETE FROM tenants")
	})
	return pool
}

func seedTenant(t *testing.T, repo *TenantRepository, managerID string) *domain.Tenant {
	t.Helper()
	tenant, err := repo.Create(context.Background(), &domain.Tenant{
		ID:         uuid.New(),
		ManagerID:  managerID,
		PropertyID: uuid.New(),
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Status:     "active",
	})
	require.NoError(t, err)
	return tenant
}

func TestTenantRepository_CreateAndGet(t *testing.T) {
	pool := setupPool(t)
	repo := NewTenantRepository(pool)

	created := seedTenant(t, repo, "mgr-1")

	fetched, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "mgr-1", fetched.ManagerID)
	assert.Equal(t, "Ada Lovelace", fetched.Name)
}

func TestTenantRepository_GetMissing(t *testing.T) {
	pool := setupPool(t)
	repo := NewTenantRepository(pool)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
}

func TestTenantRepository_Update(t *testing.T) {
	pool := setupPool(t)
	repo := NewTenantRepository(pool)

	tenant := seedTenant(t, repo, "mgr-1")
	tenant.Name = "Ada King"
	tenant.Status = "ended"

	updated, err := repo.Update(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", updated.Name)
	assert.Equal(t, "ended", updated.Status)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt) || updated.UpdatedAt.Equal(updated.CreatedAt))
}

func TestPaymentRepository_StatusLifecycle(t *testing.T) {
	pool := setupPool(t)
	tenants := NewTenantRepository(pool)
	payments := NewPaymentRepository(pool)

	tenant := seedTenant(t, tenants, "mgr-1")

	created, err := payments.Create(context.Background(), &domain.Payment{
		ID:          uuid.New(),
		TenantID:    tenant.ID,
		ManagerID:   tenant.ManagerID,
		AmountCents: 125000,
		Status:      domain.PaymentPending,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPending, created.Status)

	updated, err := payments.UpdateStatus(context.Background(), created.ID, domain.PaymentSucceeded)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentSucceeded, updated.Status)
	assert.Equal(t, int64(125000), updated.AmountCents)
}

func TestPaymentRepository_UpdateMissing(t *testing.T) {
	pool := setupPool(t)
	payments := NewPaymentRepository(pool)

	_, err := payments.UpdateStatus(context.Background(), uuid.New(), domain.PaymentFailed)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}
