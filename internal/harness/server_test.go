package harness

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pulacatraca/internal/services/gateway"
	"pulacatraca/services"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopPublisher struct{}

func (nopPublisher) Publish(channel string, message map[string]any) {}

func setupHarness(t *testing.T) (*Server, *gateway.Sandbox, context.CancelFunc) {
	t.Helper()

	db, _ := redismock.NewClientMock()
	ctx, cancel := context.WithCancel(context.Background())

	sandbox := gateway.NewSandbox()
	payments := services.NewPaymentService(ctx, db, nopPublisher{}, sandbox)

	return NewServer(payments, sandbox), sandbox, cancel
}

func TestSimulatePayment_MarksChargePaid(t *testing.T) {
	s, sandbox, cancel := setupHarness(t)
	defer cancel()

	pix, err := sandbox.CreatePixCharge(context.Background(), &gateway.ChargeRequest{
		Amount:   decimal.NewFromInt(10),
		Currency: "BRL",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/harness/charge/pay?charge_id="+pix.ChargeID, nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAID")

	charge, err := sandbox.CheckCharge(context.Background(), pix.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, "PAID", charge.Status)
}

func TestSimulatePayment_UnknownCharge(t *testing.T) {
	s, _, cancel := setupHarness(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/harness/charge/pay?charge_id=nope", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSimulatePayment_WithoutSandboxGateway(t *testing.T) {
	// Production runs against the real provider; there is nothing to
	// simulate.
	s := NewServer(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/harness/charge/pay?charge_id=x", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
