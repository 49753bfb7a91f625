package pagbank

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"pulacatraca/config"
	"pulacatraca/internal/status"

	pubnub "github.com/pubnub/go/v7"
)

// PagBank wraps the PagBank charge API plus the async confirmation
// feed. Confirmations arrive either through the HTTP webhook (verified
// by HandleWebhook) or, in sandbox setups, over a PubNub channel the
// harness publishes to.
type PagBank struct {
	webhookSecret string

	pnSubKey    string
	pnSubSecret string
	pnUUID      string
	pnChannels  []string
	pnCipherKey string

	sub *subscribe

	// webhookCh receives charges parsed from verified webhooks when no
	// PubNub subscription is active.
	webhookCh chan *status.Charge

	client *Client
}

type payload struct {
	ChargeID    string `json:"charge_id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Payer       string `json:"payer_name"`
	AmountValue int64  `json:"amount"`
	Currency    string `json:"currency"`
	CreatedAt   string `json:"created_at"`
}

// New returns a new PagBank instance.
func New(ctx context.Context, cfg *config.PagBankConfig) (*PagBank, error) {
	client := newClient(ctx, &ClientConfig{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
	})

	p := &PagBank{
		webhookSecret: cfg.WebhookSecret,

		pnSubKey:    cfg.PNSubKey,
		pnSubSecret: cfg.PNSubSecret,
		pnUUID:      cfg.PNUUID,
		pnChannels:  []string{cfg.PNChannel},
		pnCipherKey: cfg.PNCipherKey,

		client: client,
	}

	// Sandbox confirmations over PubNub are optional; skip when not
	// configured.
	if p.pnSubKey != "" {
		pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(p.pnUUID))
		pnCfg.SubscribeKey = p.pnSubKey
		pnCfg.CipherKey = p.pnCipherKey
		pnCfg.SecretKey = p.pnSubSecret

		sub, err := p.newSubscription(ctx, pnCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to subscribe to PagBank sandbox channel: %v", err)
		}
		sub.pn.AddListener(sub.lis)
		sub.pn.Subscribe().Channels(p.pnChannels).Execute()
		p.sub = sub
	}

	return p, nil
}

type subscribe struct {
	pn  *pubnub.PubNub
	lis *pubnub.Listener
	ch  chan *status.Charge
}

func (p *PagBank) newSubscription(ctx context.Context, pnCfg *pubnub.Config) (*subscribe, error) {
	sub := &subscribe{
		pn:  pubnub.NewPubNub(pnCfg),
		lis: pubnub.NewListener(),
	}

	go sub.processSubscription(ctx)

	return sub, nil
}

func (s *subscribe) processSubscription(ctx context.Context) error {
	listener := s.lis
	for {
		select {
		case st := <-listener.Status:
			switch st.Category {
			case pubnub.PNConnectedCategory:
				log.Println("connected to pubnub")

			case pubnub.PNReconnectedCategory:
				log.Println("reconnected to pubnub")

			case pubnub.PNDisconnectedCategory:
				log.Println("disconnected from pubnub")

			default:
				log.Println("pubnub status category:", st.Category)
			}

		case message := <-listener.Message:
			log.Println("message received pubnub: ", message.Message)

			raw, ok := message.Message.(string)
			if !ok {
				continue
			}

			var p payload
			dec := json.NewDecoder(strings.NewReader(raw))
			if err := dec.Decode(&p); err != nil {
				log.Println(err)
				continue
			}

			charge, err := p.toDomain()
			if err != nil {
				log.Println(err)
				continue
			}
			if s.ch != nil {
				s.ch <- charge
			}

		case <-ctx.Done():
			log.Println("close subscribe")
			return nil
		}
	}
}

func (p *payload) toDomain() (*status.Charge, error) {
	ts, err := time.Parse(time.RFC3339, p.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &status.Charge{
		ID:        p.ChargeID,
		RefID:     p.ReferenceID,
		Status:    p.Status,
		Payer:     p.Payer,
		Amount:    fromMinorUnits(p.AmountValue),
		Currency:  p.Currency,
		CreatedAt: ts,
	}, nil
}

func (p *PagBank) SetNotifyChannel(ch chan *status.Charge) {
	if p.sub != nil {
		p.sub.ch = ch
		return
	}
	p.webhookCh = ch
}

// CreatePix creates a PIX charge and returns the charge id and EMV text.
func (p *PagBank) CreatePix(ctx context.Context, f *status.FormPix, expiry time.Duration) (string, string, error) {
	if expiry <= 0 {
		expiry = 30 * time.Minute
	}
	if f.Reference == "" {
		ref, err := randomReference()
		if err != nil {
			return "", "", fmt.Errorf("CreatePix: randomReference: %v", err)
		}
		f.Reference = ref
	}
	return p.client.createPixOrder(ctx, f, time.Now().Add(expiry))
}

// ChargeCard charges a tokenized credit card.
func (p *PagBank) ChargeCard(ctx context.Context, reference, cardToken string, f *status.FormPix, installments int) (*status.Charge, error) {
	return p.client.createCardCharge(ctx, reference, cardToken, f.Amount, installments)
}

// CheckCharge checks the charge status against the PagBank API.
func (p *PagBank) CheckCharge(ctx context.Context, chargeID string) (*status.Charge, error) {
	return p.client.checkCharge(ctx, chargeID)
}

// HandleWebhook verifies the webhook signature and, when valid, parses
// the body into a charge and forwards it to the notify channel.
func (p *PagBank) HandleWebhook(body []byte, signature string) (*status.Charge, error) {
	if !VerifySignature(body, signature, p.webhookSecret) {
		return nil, fmt.Errorf("pagbank: webhook signature mismatch")
	}

	var pl payload
	if err := json.Unmarshal(body, &pl); err != nil {
		return nil, fmt.Errorf("pagbank: webhook decode: %v", err)
	}

	charge, err := pl.toDomain()
	if err != nil {
		return nil, fmt.Errorf("pagbank: webhook payload: %v", err)
	}

	if p.sub != nil && p.sub.ch != nil {
		p.sub.ch <- charge
	} else if p.webhookCh != nil {
		p.webhookCh <- charge
	}

	return charge, nil
}

// Close unsubscribes from the sandbox channel.
func (p *PagBank) Close(ctx context.Context) error {
	if p.sub != nil {
		p.sub.pn.Unsubscribe().Channels(p.pnChannels).Execute()
	}
	return nil
}
