package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Model types ---

// Tenant is a renter managed by a property manager. ManagerID identifies
// the manager account that receives realtime notifications about it.
type Tenant struct {
	ID         uuid.UUID `db:"id"`
	ManagerID  string    `db:"manager_id"`
	PropertyID uuid.UUID `db:"property_id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Status     string    `db:"status"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// PaymentStatus is the lifecycle state of a rent payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentSucceeded, PaymentFailed:
		return true
	}
	return false
}

// Payment is one rent payment attempt.
type Payment struct {
	ID          uuid.UUID     `db:"id"`
	TenantID    uuid.UUID     `db:"tenant_id"`
	ManagerID   string        `db:"manager_id"`
	AmountCents int64         `db:"amount_cents"`
	Status      PaymentStatus `db:"status"`
	CreatedAt   time.Time     `db:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at"`
}

// --- Event kinds produced by the domain layer ---

const (
	EventTenantUpdated        = "tenant_updated"
	EventPaymentStatusChanged = "payment_status_changed"
	EventMaintenanceNotice    = "maintenance_notice"
)

// --- Repository contracts ---

type TenantRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) (*Tenant, error)
}

type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) (*Payment, error)
}
