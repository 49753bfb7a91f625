package gateway

import (
	"context"
	"fmt"
	"time"

	"pulacatraca/config"
	"pulacatraca/internal/services/gateway/pagbank"
	"pulacatraca/internal/status"
)

// PagBankAdapter adapts the PagBank client to the PaymentGateway
// interface.
type PagBankAdapter struct {
	client *pagbank.PagBank
}

func NewPagBankAdapter(ctx context.Context, cfg *config.PagBankConfig) (*PagBankAdapter, error) {
	client, err := pagbank.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PagBank client: %w", err)
	}

	return &PagBankAdapter{client: client}, nil
}

func (a *PagBankAdapter) GetProvider() Provider {
	return ProviderPagBank
}

func (a *PagBankAdapter) CreatePixCharge(ctx context.Context, req *ChargeRequest) (*PixCharge, error) {
	f := &status.FormPix{
		UUID:        req.UUID,
		Phone:       req.Phone,
		Reference:   req.Reference,
		Description: req.Description,
		Amount:      req.Amount,
	}

	chargeID, qrText, err := a.client.CreatePix(ctx, f, time.Duration(req.ExpiryMinutes)*time.Minute)
	if err != nil {
		return nil, err
	}

	return &PixCharge{
		ChargeID: chargeID,
		QRText:   qrText,
	}, nil
}

func (a *PagBankAdapter) CreateCardCharge(ctx context.Context, req *ChargeRequest) (*status.Charge, error) {
	f := &status.FormPix{
		UUID:      req.UUID,
		Reference: req.Reference,
		Amount:    req.Amount,
	}
	return a.client.ChargeCard(ctx, req.Reference, req.CardToken, f, req.Installments)
}

func (a *PagBankAdapter) CheckCharge(ctx context.Context, chargeID string) (*status.Charge, error) {
	return a.client.CheckCharge(ctx, chargeID)
}

func (a *PagBankAdapter) SetNotifyChannel(ch chan *status.Charge) {
	a.client.SetNotifyChannel(ch)
}

// HandleWebhook exposes webhook verification for the HTTP layer.
func (a *PagBankAdapter) HandleWebhook(body []byte, signature string) (*status.Charge, error) {
	return a.client.HandleWebhook(body, signature)
}

func (a *PagBankAdapter) Close(ctx context.Context) error {
	return a.client.Close(ctx)
}
