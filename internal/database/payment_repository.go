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

// PaymentRepository is the Postgres implementation of domain.PaymentRepository.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const query = `
		SELECT id, tenant_id, manager_id, amount_cents, status, created_at, updated_at
		FROM payments
		WHERE id = $1`

	var p domain.Payment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.TenantID, &p.ManagerID, &p.AmountCents, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &p, nil
}

// UpdateStatus transitions a payment to the given status and returns the row.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (*domain.Payment, error) {
	const query = `
		UPDATE payments
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, tenant_id, manager_id, amount_cents, status, created_at, updated_at`

	var p domain.Payment
	err := r.pool.QueryRow(ctx, query, id, status).Scan(
		&p.ID, &p.TenantID, &p.ManagerID, &p.AmountCents, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}
	return &p, nil
}

// Create inserts a new payment row.
func (r *PaymentRepository) Create(ctx context.Context, payment *domain.Payment) (*domain.Payment, error) {
	const query = `
		INSERT INTO payments (id, tenant_id, manager_id, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, tenant_id, manager_id, amount_cents, status, created_at, updated_at`

	var p domain.Payment
	err := r.pool.QueryRow(ctx, query,
		payment.ID, payment.TenantID, payment.ManagerID, payment.AmountCents, payment.Status,
	).Scan(&p.ID, &p.TenantID, &p.ManagerID, &p.AmountCents, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return &p, nil
}
