// Package app is the application layer: it persists domain changes and
// produces the realtime events that notify connected clients.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
	"github.com/hudsor01/tenant-flow-sub013/internal/platform/correlation"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

// Publisher is the slice of the broadcaster the service needs.
type Publisher interface {
	Broadcast(userID string, event realtime.Event) realtime.DeliveryReport
	BroadcastToAll(event realtime.Event) realtime.DeliveryReport
}

// Service orchestrates the write-then-notify use cases. Events are produced
// after the write commits; delivery is best-effort and the report is
// returned to callers for observability only.
type Service struct {
	tenants     domain.TenantRepository
	payments    domain.PaymentRepository
	publisher   Publisher
	clock       clockwork.Clock
	lookupGroup singleflight.Group
}

func NewService(tenants domain.TenantRepository, payments domain.PaymentRepository, publisher Publisher, clock clockwork.Clock) *Service {
	return &Service{
		tenants:   tenants,
		payments:  payments,
		publisher: publisher,
		clock:     clock,
	}
}

// GetTenant retrieves a tenant. Concurrent lookups for the same ID are
// collapsed into one repository call.
func (s *Service) GetTenant(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	v, err, _ := s.lookupGroup.Do(id.String(), func() (any, error) {
		return s.tenants.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Tenant), nil
}

// UpdateTenant persists the change, then notifies the owning manager's
// sessions with a tenant_updated event.
func (s *Service) UpdateTenant(ctx context.Context, tenant *domain.Tenant) (*domain.Tenant, realtime.DeliveryReport, error) {
	updated, err := s.tenants.Update(ctx, tenant)
	if err != nil {
		return nil, realtime.DeliveryReport{}, fmt.Errorf("update tenant: %w", err)
	}

	event := s.newEvent(ctx, domain.EventTenantUpdated, map[string]any{
		"tenant_id":   updated.ID.String(),
		"property_id": updated.PropertyID.String(),
		"name":        updated.Name,
		"status":      updated.Status,
	})
	report := s.publisher.Broadcast(updated.ManagerID, event)

	slog.DebugContext(ctx, "Tenant update broadcast",
		"tenant_id", updated.ID.String(),
		"manager_id", updated.ManagerID,
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return updated, report, nil
}

// RecordPaymentStatus transitions a payment and notifies the owning
// manager's sessions with a payment_status_changed event.
func (s *Service) RecordPaymentStatus(ctx context.Context, paymentID uuid.UUID, status domain.PaymentStatus) (*domain.Payment, realtime.DeliveryReport, error) {
	if !status.Valid() {
		return nil, realtime.DeliveryReport{}, fmt.Errorf("invalid payment status %q", status)
	}

	payment, err := s.payments.UpdateStatus(ctx, paymentID, status)
	if err != nil {
		return nil, realtime.DeliveryReport{}, fmt.Errorf("record payment status: %w", err)
	}

	event := s.newEvent(ctx, domain.EventPaymentStatusChanged, map[string]any{
		"payment_id":   payment.ID.String(),
		"tenant_id":    payment.TenantID.String(),
		"amount_cents": payment.AmountCents,
		"status":       string(payment.Status),
	})
	report := s.publisher.Broadcast(payment.ManagerID, event)

	slog.DebugContext(ctx, "Payment status broadcast",
		"payment_id", payment.ID.String(),
		"status", string(payment.Status),
		"delivered", report.Delivered,
		"failed", report.Failed,
	)
	return payment, report, nil
}

// AnnounceMaintenance notifies every connected session.
func (s *Service) AnnounceMaintenance(ctx context.Context, message string) realtime.DeliveryReport {
	event := s.newEvent(ctx, domain.EventMaintenanceNotice, map[string]any{
		"message": message,
	})
	return s.publisher.BroadcastToAll(event)
}

func (s *Service) newEvent(ctx context.Context, kind string, payload map[string]any) realtime.Event {
	event := realtime.Event{
		Kind:      kind,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if id, ok := correlation.ID(ctx); ok {
		event.CorrelationID = id
	}
	return event
}
