package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pulacatraca/internal/services/gateway"
	"pulacatraca/internal/status"
	"pulacatraca/models"
	"pulacatraca/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// PaymentService fronts the payment gateway for the organizer portal's
// gateway test flows. Charge state is cached in Redis; async
// confirmations come in on the gateway's notify channel and are pushed
// to the requesting organizer over the Publisher.
type PaymentService struct {
	Redis   *redis.Client
	pub     Publisher
	gateway gateway.PaymentGateway
	breaker *utils.CircuitBreaker
}

func NewPaymentService(ctx context.Context, redisClient *redis.Client, pub Publisher, gw gateway.PaymentGateway) *PaymentService {
	service := &PaymentService{
		Redis:   redisClient,
		pub:     pub,
		gateway: gw,
		breaker: utils.NewCircuitBreaker(string(gw.GetProvider())),
	}

	notifyCh := make(chan *status.Charge, 1)
	gw.SetNotifyChannel(notifyCh)
	go service.consumeNotifications(ctx, notifyCh)

	return service
}

type CreatePixRequest struct {
	OrganizerID string          `json:"organizer_id"`
	Phone       string          `json:"phone"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CreatePixCharge creates a PIX charge through the gateway and caches
// it so status polls and webhooks can be tied back to the organizer.
func (s *PaymentService) CreatePixCharge(ctx context.Context, params CreatePixRequest) (*models.PixCharge, error) {
	reference := uuid.New().String()

	result, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.CreatePixCharge(ctx, &gateway.ChargeRequest{
			Amount:        params.Amount,
			Currency:      "BRL",
			UUID:          reference,
			Reference:     reference,
			Phone:         params.Phone,
			Description:   params.Description,
			ExpiryMinutes: 30,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("payment: create pix charge: %w", err)
	}
	pix := result.(*gateway.PixCharge)

	expiresAt := time.Now().Add(30 * time.Minute)

	chargeKey := fmt.Sprintf("charge:%s", pix.ChargeID)
	s.Redis.HSet(ctx, chargeKey, map[string]any{
		"charge_id":    pix.ChargeID,
		"reference":    reference,
		"organizer_id": params.OrganizerID,
		"amount":       params.Amount.String(),
		"status":       "pending",
		"created_at":   time.Now().Unix(),
	})
	s.Redis.Expire(ctx, chargeKey, time.Hour)

	return &models.PixCharge{
		ChargeID:  pix.ChargeID,
		QRText:    pix.QRText,
		QRImage:   pix.QRImage,
		Amount:    params.Amount,
		Status:    "pending",
		ExpiresAt: expiresAt,
	}, nil
}

// CheckChargeStatus asks the gateway for the live charge status.
func (s *PaymentService) CheckChargeStatus(ctx context.Context, chargeID string) (*status.Charge, error) {
	result, err := s.breaker.Execute(ctx, func() (any, error) {
		return s.gateway.CheckCharge(ctx, chargeID)
	})
	if err != nil {
		return nil, err
	}
	return result.(*status.Charge), nil
}

func (s *PaymentService) consumeNotifications(ctx context.Context, ch chan *status.Charge) {
	for {
		select {
		case charge := <-ch:
			s.handleNotification(charge)

		case <-ctx.Done():
			return
		}
	}
}

func (s *PaymentService) handleNotification(charge *status.Charge) {
	ctx := context.Background()

	chargeKey := fmt.Sprintf("charge:%s", charge.ID)
	cached := s.Redis.HGetAll(ctx, chargeKey).Val()
	if len(cached) == 0 {
		slog.Info("payment: notification for unknown charge", "chargeID", charge.ID)
		return
	}

	s.Redis.HSet(ctx, chargeKey, "status", charge.Status)

	organizerID := cached["organizer_id"]
	if s.pub == nil || organizerID == "" {
		return
	}

	s.pub.Publish(fmt.Sprintf("organizer-%s", organizerID), map[string]any{
		"type":      "payment_status",
		"charge_id": charge.ID,
		"status":    charge.Status,
		"amount":    charge.Amount.String(),
	})
}
