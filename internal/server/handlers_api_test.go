package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hudsor01/tenant-flow-sub013/internal/domain"
)

func doJSON(t *testing.T, ts *httptest.Server, method, path, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String()
}

func TestHandleStats(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	conn := dialWS(t, ts, "manager-1", "session-1")
	_ = readEvent(t, conn)

	resp := doJSON(t, ts, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"total_connections":1`)
	assert.Contains(t, body, `"unique_users":1`)
}

func TestHandlePresence(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	conn := dialWS(t, ts, "manager-1", "session-1")
	_ = readEvent(t, conn)

	resp := doJSON(t, ts, http.MethodGet, "/api/presence/manager-1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"connected":true`)

	resp = doJSON(t, ts, http.MethodGet, "/api/presence/manager-2", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"connected":false`)
}

func TestHandleGetTenant(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	tenant := &domain.Tenant{
		ID:         uuid.New(),
		ManagerID:  "manager-1",
		PropertyID: uuid.New(),
		Name:       "Ada Lovelace",
		Email:      "ada@example.com",
		Status:     "active",
	}
	env.tenants.seed(tenant)

	resp := doJSON(t, ts, http.MethodGet, "/api/tenants/"+tenant.ID.String(), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"name":"Ada Lovelace"`)
	assert.Contains(t, body, `"manager_id":"manager-1"`)
}

func TestHandleGetTenant_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodGet, "/api/tenants/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"type":"not_found"`)
}

func TestHandleGetTenant_InvalidID(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodGet, "/api/tenants/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"type":"validation"`)
}

func TestHandleUpdateTenant_NotifiesConnectedManager(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	tenant := &domain.Tenant{
		ID:         uuid.New(),
		ManagerID:  "manager-1",
		PropertyID: uuid.New(),
		Name:       "Ada Lovelace",
		Status:     "active",
	}
	env.tenants.seed(tenant)

	conn := dialWS(t, ts, "manager-1", "session-1")
	_ = readEvent(t, conn)

	resp := doJSON(t, ts, http.MethodPut, "/api/tenants/"+tenant.ID.String(),
		`{"name":"Ada King","email":"ada@example.com","status":"delinquent"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"name":"Ada King"`)
	assert.Contains(t, body, `"delivered":1`)

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventTenantUpdated, event.Kind)
	assert.Equal(t, tenant.ID.String(), event.Payload["tenant_id"])
	assert.Equal(t, "delinquent", event.Payload["status"])
	assert.NotEmpty(t, event.CorrelationID)
}

func TestHandleUpdateTenant_OfflineManagerStillPersists(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	tenant := &domain.Tenant{ID: uuid.New(), ManagerID: "manager-1", Name: "Ada Lovelace"}
	env.tenants.seed(tenant)

	resp := doJSON(t, ts, http.MethodPut, "/api/tenants/"+tenant.ID.String(), `{"name":"Ada King"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `"delivered":0`)

	stored, err := env.tenants.GetByID(context.Background(), tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", stored.Name)
}

func TestHandleUpdateTenant_RequiresName(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPut, "/api/tenants/"+uuid.NewString(), `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"type":"validation"`)
}

func TestHandleRecordPaymentStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	payment := &domain.Payment{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		ManagerID:   "manager-1",
		AmountCents: 95000,
		Status:      domain.PaymentPending,
	}
	env.payments.seed(payment)

	conn := dialWS(t, ts, "manager-1", "session-1")
	_ = readEvent(t, conn)

	resp := doJSON(t, ts, http.MethodPost, "/api/payments/"+payment.ID.String()+"/status",
		`{"status":"succeeded"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"status":"succeeded"`)

	event := readEvent(t, conn)
	assert.Equal(t, domain.EventPaymentStatusChanged, event.Kind)
	assert.Equal(t, "succeeded", event.Payload["status"])
}

func TestHandleRecordPaymentStatus_InvalidStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPost, "/api/payments/"+uuid.NewString()+"/status",
		`{"status":"refunded"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"type":"validation"`)
}

func TestHandleAnnounceMaintenance(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	first := dialWS(t, ts, "manager-1", "session-1")
	_ = readEvent(t, first)
	second := dialWS(t, ts, "manager-2", "session-2")
	_ = readEvent(t, second)

	resp := doJSON(t, ts, http.MethodPost, "/api/maintenance",
		`{"message":"water shutoff friday"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"delivered":2`)

	for _, conn := range []*websocket.Conn{first, second} {
		event := readEvent(t, conn)
		assert.Equal(t, domain.EventMaintenanceNotice, event.Kind)
		assert.Equal(t, "water shutoff friday", event.Payload["message"])
	}
}

func TestHandleAnnounceMaintenance_RequiresMessage(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	resp := doJSON(t, ts, http.MethodPost, "/api/maintenance", `{"message":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCorrelationHeaderEchoedBack(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.srv.echo)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/stats", nil)
	require.NoError(t, err)
	req.Header.Set(correlationHeader, "corr-123")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "corr-123", resp.Header.Get(correlationHeader))

	// Minted when absent.
	resp2 := doJSON(t, ts, http.MethodGet, "/api/stats", "")
	assert.NotEmpty(t, resp2.Header.Get(correlationHeader))
}
