package gateway

import (
	"context"

	"pulacatraca/internal/status"

	"github.com/shopspring/decimal"
)

// Provider identifies a payment gateway implementation.
type Provider string

const (
	ProviderPagBank Provider = "pagbank"
	ProviderSandbox Provider = "sandbox"
)

// ChargeRequest is a provider-neutral charge creation request.
type ChargeRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	UUID          string          `json:"uuid"`
	Reference     string          `json:"reference"`
	Phone         string          `json:"phone"`
	Description   string          `json:"description,omitempty"`
	ExpiryMinutes int             `json:"expiry_minutes,omitempty"`

	// Card fields, only for card charges
	CardToken    string `json:"card_token,omitempty"`
	Installments int    `json:"installments,omitempty"`
}

// PixCharge is the result of a PIX charge creation: the EMV text the
// buyer scans plus the provider's charge id.
type PixCharge struct {
	ChargeID string `json:"charge_id"`
	QRText   string `json:"qr_text"`
	QRImage  string `json:"qr_image,omitempty"`
}

// PaymentGateway is the common surface for all payment providers.
type PaymentGateway interface {
	// GetProvider returns the provider type.
	GetProvider() Provider

	// CreatePixCharge creates a PIX charge and returns its QR payload.
	CreatePixCharge(ctx context.Context, req *ChargeRequest) (*PixCharge, error)

	// CreateCardCharge charges a tokenized credit card.
	CreateCardCharge(ctx context.Context, req *ChargeRequest) (*status.Charge, error)

	// CheckCharge checks the status of a charge.
	CheckCharge(ctx context.Context, chargeID string) (*status.Charge, error)

	// SetNotifyChannel sets the channel receiving async payment
	// confirmations (webhooks).
	SetNotifyChannel(ch chan *status.Charge)

	// Close gracefully closes any connections.
	Close(ctx context.Context) error
}
