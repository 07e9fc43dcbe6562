package server

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
	apperrors "github.com/hudsor01/tenant-flow-sub013/internal/errors"
	"github.com/hudsor01/tenant-flow-sub013/internal/realtime"
)

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(200, map[string]any{
		"connections": s.broadcaster.Stats(),
		"edge": map[string]any{
			"unique_ips":           s.limits.PerIP().UniqueIPs(),
			"active_rate_limiters": s.limits.Rate().ActiveLimiters(),
		},
	})
}

func (s *Server) handleInstances(c echo.Context) error {
	instances, err := s.instances.GetActiveInstances(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list instances", err)
	}

	return c.JSON(200, map[string]any{
		"instances": instances,
		"count":     len(instances),
	})
}

func (s *Server) handlePresence(c echo.Context) error {
	userID := c.Param("user_id")
	if userID == "" {
		return apperrors.ValidationError("user_id is required")
	}

	return c.JSON(200, map[string]any{
		"user_id":   userID,
		"connected": s.broadcaster.IsUserConnected(userID),
	})
}

// --- Tenant producers ---

type tenantResponse struct {
	ID         string `json:"id"`
	ManagerID  string `json:"manager_id"`
	PropertyID string `json:"property_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Status     string `json:"status"`
}

type deliveryResponse struct {
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

func toTenantResponse(t *domain.Tenant) tenantResponse {
	return tenantResponse{
		ID:         t.ID.String(),
		ManagerID:  t.ManagerID,
		PropertyID: t.PropertyID.String(),
		Name:       t.Name,
		Email:      t.Email,
		Status:     t.Status,
	}
}

func toDeliveryResponse(r realtime.DeliveryReport) deliveryResponse {
	return deliveryResponse{Delivered: r.Delivered, Failed: r.Failed}
}

func (s *Server) handleGetTenant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid tenant ID")
	}

	tenant, err := s.app.GetTenant(c.Request().Context(), id)
	if errors.Is(err, domain.ErrTenantNotFound) {
		return apperrors.NotFoundError("tenant not found").WithContext("tenant_id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load tenant", err)
	}

	return c.JSON(200, toTenantResponse(tenant))
}

type updateTenantRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

func (s *Server) handleUpdateTenant(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid tenant ID")
	}

	var req updateTenantRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return apperrors.ValidationError("name is required")
	}

	ctx := c.Request().Context()
	tenant, err := s.app.GetTenant(ctx, id)
	if errors.Is(err, domain.ErrTenantNotFound) {
		return apperrors.NotFoundError("tenant not found").WithContext("tenant_id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to load tenant", err)
	}

	tenant.Name = req.Name
	tenant.Email = req.Email
	if req.Status != "" {
		tenant.Status = req.Status
	}

	updated, report, err := s.app.UpdateTenant(ctx, tenant)
	if err != nil {
		return apperrors.InternalError("failed to update tenant", err)
	}

	return c.JSON(200, map[string]any{
		"tenant":   toTenantResponse(updated),
		"delivery": toDeliveryResponse(report),
	})
}

// --- Payment producer ---

type recordPaymentStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleRecordPaymentStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperrors.ValidationError("invalid payment ID")
	}

	var req recordPaymentStatusRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	status := domain.PaymentStatus(req.Status)
	if !status.Valid() {
		return apperrors.ValidationError("invalid payment status").WithContext("status", req.Status)
	}

	payment, report, err := s.app.RecordPaymentStatus(c.Request().Context(), id, status)
	if errors.Is(err, domain.ErrPaymentNotFound) {
		return apperrors.NotFoundError("payment not found").WithContext("payment_id", id.String())
	}
	if err != nil {
		return apperrors.InternalError("failed to record payment status", err)
	}

	return c.JSON(200, map[string]any{
		"payment": map[string]any{
			"id":           payment.ID.String(),
			"tenant_id":    payment.TenantID.String(),
			"amount_cents": payment.AmountCents,
			"status":       string(payment.Status),
		},
		"delivery": toDeliveryResponse(report),
	})
}

// --- Maintenance producer ---

type announceMaintenanceRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleAnnounceMaintenance(c echo.Context) error {
	var req announceMaintenanceRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return apperrors.ValidationError("message is required")
	}

	report := s.app.AnnounceMaintenance(c.Request().Context(), req.Message)
	return c.JSON(200, map[string]any{
		"delivery": toDeliveryResponse(report),
	})
}
