package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PixCharge struct {
	ChargeID  string          `json:"charge_id"`
	QRText    string          `json:"qr_text"`
	QRImage   string          `json:"qr_image,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"` // pending, paid, expired, cancelled
	ExpiresAt time.Time       `json:"expires_at"`
}
