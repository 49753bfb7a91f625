package handlers

import (
	"errors"
	"io"
	"net/http"

	"pulacatraca/services"
	"pulacatraca/internal/status"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

// WebhookVerifier is implemented by gateways that accept signed HTTP
// webhooks (PagBank).
type WebhookVerifier interface {
	HandleWebhook(body []byte, signature string) (*status.Charge, error)
}

type PaymentHandler struct {
	app            *pocketbase.PocketBase
	paymentService *services.PaymentService
	webhooks       WebhookVerifier
}

func NewPaymentHandler(app *pocketbase.PocketBase, paymentService *services.PaymentService, webhooks WebhookVerifier) *PaymentHandler {
	return &PaymentHandler{
		app:            app,
		paymentService: paymentService,
		webhooks:       webhooks,
	}
}

// GenPixQr - create a PIX charge and return its QR payload
func (h *PaymentHandler) GenPixQr(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Phone       string          `json:"phone"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return apis.NewBadRequestError("Amount must be positive", nil)
	}

	ctx := e.Request.Context()

	charge, err := h.paymentService.CreatePixCharge(ctx, services.CreatePixRequest{
		OrganizerID: e.Auth.Id,
		Phone:       req.Phone,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		return apis.NewBadRequestError("Failed to create charge", err)
	}

	return e.JSON(http.StatusOK, charge)
}

// CheckChargeStatus - poll the gateway for the charge status
func (h *PaymentHandler) CheckChargeStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	chargeID := e.Request.PathValue("chargeId")
	if chargeID == "" {
		return apis.NewBadRequestError("chargeId is required", nil)
	}

	ctx := e.Request.Context()

	charge, err := h.paymentService.CheckChargeStatus(ctx, chargeID)
	if errors.Is(err, status.ErrChargeNotFound) {
		return apis.NewNotFoundError("Charge not found", err)
	}
	if err != nil {
		return apis.NewBadRequestError("Failed to check charge", err)
	}

	return e.JSON(http.StatusOK, charge)
}

// ReceiveWebhook - signed gateway webhook ingestion
func (h *PaymentHandler) ReceiveWebhook(e *core.RequestEvent) error {
	if h.webhooks == nil {
		return apis.NewNotFoundError("Webhooks not configured", nil)
	}

	body, err := io.ReadAll(e.Request.Body)
	if err != nil {
		return apis.NewBadRequestError("Invalid body", err)
	}

	signature := e.Request.Header.Get("X-Authenticity-Signature")
	charge, err := h.webhooks.HandleWebhook(body, signature)
	if err != nil {
		return apis.NewForbiddenError("Webhook rejected", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"charge_id": charge.ID,
		"status":    charge.Status,
	})
}
