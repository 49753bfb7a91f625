package status

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrTicketNotFound = errors.New("ticket: ticket not found")
	ErrChargeNotFound = errors.New("charge: charge not found")

	// ErrNoCode is returned by a decoder for a frame that contains no
	// readable code. It is not an I/O failure and must not end a scan.
	ErrNoCode = errors.New("decoder: no code in frame")
)

// Charge is the gateway-neutral view of a payment charge.
type Charge struct {
	ID        string
	RefID     string
	Status    string
	Payer     string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}

// FormPix carries everything a provider needs to create a PIX charge.
type FormPix struct {
	UUID        string
	Payer       string
	Phone       string
	MerchantID  string
	Reference   string
	Description string
	Amount      decimal.Decimal
}
