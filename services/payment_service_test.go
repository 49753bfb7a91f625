package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulacatraca/internal/services/gateway"
	"pulacatraca/internal/status"
	"pulacatraca/utils"

	"github.com/go-redis/redismock/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a deterministic PaymentGateway for service tests. The
// sandbox generates random charge ids, which Redis expectations cannot
// match against.
type fakeGateway struct {
	chargeID string
	checkErr error
	ch       chan *status.Charge
}

func (g *fakeGateway) GetProvider() gateway.Provider { return gateway.ProviderSandbox }

func (g *fakeGateway) CreatePixCharge(ctx context.Context, req *gateway.ChargeRequest) (*gateway.PixCharge, error) {
	return &gateway.PixCharge{
		ChargeID: g.chargeID,
		QRText:   "00020101021226-test-pix",
	}, nil
}

func (g *fakeGateway) CreateCardCharge(ctx context.Context, req *gateway.ChargeRequest) (*status.Charge, error) {
	return &status.Charge{ID: g.chargeID, Status: "PAID", Amount: req.Amount}, nil
}

func (g *fakeGateway) CheckCharge(ctx context.Context, chargeID string) (*status.Charge, error) {
	if g.checkErr != nil {
		return nil, g.checkErr
	}
	return &status.Charge{ID: chargeID, Status: "PAID", Amount: decimal.NewFromInt(50)}, nil
}

func (g *fakeGateway) SetNotifyChannel(ch chan *status.Charge) { g.ch = ch }

func (g *fakeGateway) Close(ctx context.Context) error { return nil }

// hsetOnKey matches any HSET on the expected key, regardless of field
// order (go-redis flattens maps in random order).
func hsetOnKey(key string) func(expected, actual []interface{}) error {
	return func(expected, actual []interface{}) error {
		if len(actual) < 2 {
			return errors.New("hset with no args")
		}
		if actual[0] != "hset" || actual[1] != key {
			return errors.New("unexpected command or key")
		}
		return nil
	}
}

func TestPaymentService_CreatePixCharge(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{chargeID: "ch_test"}
	svc := NewPaymentService(ctx, db, &fakePublisher{}, gw)

	// redismock requires the expected and actual arg counts to be equal
	// before it invokes the custom matcher, so pad with one placeholder
	// per flattened field/value of the 6-entry hash the service writes.
	mock.CustomMatch(hsetOnKey("charge:ch_test")).
		ExpectHSet("charge:ch_test",
			"any", "any", "any", "any", "any", "any",
			"any", "any", "any", "any", "any", "any").SetVal(6)
	mock.ExpectExpire("charge:ch_test", time.Hour).SetVal(true)

	pix, err := svc.CreatePixCharge(ctx, CreatePixRequest{
		OrganizerID: "org_1",
		Phone:       "+5511999990000",
		Description: "Gateway smoke test",
		Amount:      decimal.RequireFromString("49.90"),
	})

	require.NoError(t, err)
	assert.Equal(t, "ch_test", pix.ChargeID)
	assert.NotEmpty(t, pix.QRText)
	assert.Equal(t, "pending", pix.Status)
	assert.True(t, pix.ExpiresAt.After(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_CheckChargeStatus(t *testing.T) {
	db, _ := redismock.NewClientMock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{chargeID: "ch_test"}
	svc := NewPaymentService(ctx, db, &fakePublisher{}, gw)

	charge, err := svc.CheckChargeStatus(ctx, "ch_test")
	require.NoError(t, err)
	assert.Equal(t, "PAID", charge.Status)

	gw.checkErr = status.ErrChargeNotFound
	_, err = svc.CheckChargeStatus(ctx, "ch_missing")
	assert.ErrorIs(t, err, status.ErrChargeNotFound)
}

func TestPaymentService_NotificationPublishesStatus(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{chargeID: "ch_test"}
	pub := &fakePublisher{}
	_ = NewPaymentService(ctx, db, pub, gw)
	require.NotNil(t, gw.ch)

	mock.ExpectHGetAll("charge:ch_test").SetVal(map[string]string{
		"charge_id":    "ch_test",
		"organizer_id": "org_1",
		"status":       "pending",
	})
	mock.ExpectHSet("charge:ch_test", "status", "PAID").SetVal(0)

	gw.ch <- &status.Charge{ID: "ch_test", Status: "PAID", Amount: decimal.NewFromInt(50)}

	require.Eventually(t, func() bool {
		return len(pub.messages()) == 1
	}, time.Second, 10*time.Millisecond)

	msg := pub.messages()[0]
	assert.Equal(t, "organizer-org_1", msg.channel)
	assert.Equal(t, "payment_status", msg.message["type"])
	assert.Equal(t, "PAID", msg.message["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentService_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	db, _ := redismock.NewClientMock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gw := &fakeGateway{chargeID: "ch_test", checkErr: errors.New("gateway down")}
	svc := NewPaymentService(ctx, db, &fakePublisher{}, gw)

	for i := 0; i < 5; i++ {
		_, err := svc.CheckChargeStatus(ctx, "ch_test")
		assert.Error(t, err)
	}

	_, err := svc.CheckChargeStatus(ctx, "ch_test")
	assert.ErrorIs(t, err, utils.ErrBreakerOpen)
}
