package pagbank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pulacatraca/internal/status"

	"github.com/shopspring/decimal"
)

type ClientConfig struct {
	BaseURL string `json:"baseUrl" mapstructure:"base_url"`
	Token   string `json:"token" mapstructure:"token"`
}

type Client struct {
	// baseURL is the base url of the PagBank API.
	baseURL string

	// token is the bearer token issued for the merchant account.
	token string

	// hc is the http client.
	hc *http.Client
}

// newClient creates a new instance of the PagBank API client.
func newClient(_ context.Context, c *ClientConfig) *Client {
	return &Client{
		baseURL: c.BaseURL,
		token:   c.Token,

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type qrCodeReply struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Links []struct {
		Rel   string `json:"rel"`
		Href  string `json:"href"`
		Media string `json:"media"`
	} `json:"links"`
}

type chargeReply struct {
	ID           string `json:"id"`
	ReferenceID  string `json:"reference_id"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	PaidAt       string `json:"paid_at"`
	Amount       amount `json:"amount"`
	ErrorMessage string `json:"error_message"`
}

type amount struct {
	Value    int64  `json:"value"` // minor units (centavos)
	Currency string `json:"currency"`
}

// createPixOrder creates an order with a PIX QR code attached.
func (c *Client) createPixOrder(ctx context.Context, f *status.FormPix, expiresAt time.Time) (string, string, error) {
	body := map[string]any{
		"reference_id": f.Reference,
		"customer": map[string]any{
			"name":  f.Payer,
			"phone": f.Phone,
		},
		"qr_codes": []map[string]any{
			{
				"amount":          map[string]any{"value": toMinorUnits(f.Amount)},
				"expiration_date": expiresAt.Format(time.RFC3339),
			},
		},
	}

	var reply struct {
		ID      string        `json:"id"`
		QRCodes []qrCodeReply `json:"qr_codes"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", body, &reply); err != nil {
		return "", "", fmt.Errorf("createPixOrder: %w", err)
	}
	if len(reply.QRCodes) == 0 {
		return "", "", errors.New("createPixOrder: reply carries no qr code")
	}

	return reply.ID, reply.QRCodes[0].Text, nil
}

// createCardCharge charges a tokenized card.
func (c *Client) createCardCharge(ctx context.Context, reference, cardToken string, amt decimal.Decimal, installments int) (*status.Charge, error) {
	if installments <= 0 {
		installments = 1
	}

	body := map[string]any{
		"reference_id": reference,
		"amount":       map[string]any{"value": toMinorUnits(amt), "currency": "BRL"},
		"payment_method": map[string]any{
			"type":         "CREDIT_CARD",
			"installments": installments,
			"capture":      true,
			"card":         map[string]any{"encrypted": cardToken},
		},
	}

	var reply chargeReply
	if err := c.do(ctx, http.MethodPost, "/charges", body, &reply); err != nil {
		return nil, fmt.Errorf("createCardCharge: %w", err)
	}

	return reply.toDomain()
}

// checkCharge fetches the current status of a charge.
func (c *Client) checkCharge(ctx context.Context, chargeID string) (*status.Charge, error) {
	var reply chargeReply
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/charges/%s", url.PathEscape(chargeID)), nil, &reply)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.statusCode == http.StatusNotFound {
			return nil, status.ErrChargeNotFound
		}
		return nil, fmt.Errorf("checkCharge: %w", err)
	}

	return reply.toDomain()
}

type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("pagbank: http %d: %s", e.statusCode, e.body)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json.Marshal: %v", err)
		}
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	_baseURL, _ := url.Parse(c.baseURL)
	req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", _baseURL.String(), path), bodyReader)
	if err != nil {
		return fmt.Errorf("http.NewReq: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var buf bytes.Buffer
		buf.ReadFrom(resp.Body)
		return &apiError{statusCode: resp.StatusCode, body: buf.String()}
	}

	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %v", err)
	}
	return nil
}

func (r *chargeReply) toDomain() (*status.Charge, error) {
	ts, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		ts = time.Time{}
	}

	return &status.Charge{
		ID:        r.ID,
		RefID:     r.ReferenceID,
		Status:    r.Status,
		Amount:    fromMinorUnits(r.Amount.Value),
		Currency:  r.Amount.Currency,
		CreatedAt: ts,
	}, nil
}

func toMinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-2)
}
