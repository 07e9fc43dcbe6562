package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
)

// TenantRepository is the Postgres implementation of domain.TenantRepository.
type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	const query = `
		SELECT id, manager_id, property_id, name, email, status, created_at, updated_at
		FROM tenants
		WHERE id = $1`

	var t domain.Tenant
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.ManagerID, &t.PropertyID, &t.Name, &t.Email, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// Update persists mutable tenant fields and returns the stored row.
func (r *TenantRepository) Update(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	const query = `
		UPDATE tenants
		SET name = $2, email = $3, status = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, manager_id, property_id, name, email, status, created_at, updated_at`

	var t domain.Tenant
	err := r.pool.QueryRow(ctx, query, tenant.ID, tenant.Name, tenant.Email, tenant.Status).Scan(
		&t.ID, &t.ManagerID, &t.PropertyID, &t.Name, &t.Email, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update tenant: %w", err)
	}
	return &t, nil
}

// Create inserts a new tenant row.
func (r *TenantRepository) Create(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, error) {
	const query = `
		INSERT INTO tenants (id, manager_id, property_id, name, email, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, manager_id, property_id, name, email, status, created_at, updated_at`

	var t domain.Tenant
	err := r.pool.QueryRow(ctx, query,
		tenant.ID, tenant.ManagerID, tenant.PropertyID, tenant.Name, tenant.Email, tenant.Status,
	).Scan(&t.ID, &t.ManagerID, &t.PropertyID, &t.Name, &t.Email, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	return &t, nil
}
