package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pulacatraca/internal/status"

	"github.com/google/uuid"
)

// Sandbox is an in-memory gateway for development and the test harness.
// Charges start pending; MarkPaid simulates the provider's async
// confirmation and pushes it to the notify channel.
type Sandbox struct {
	mu      sync.Mutex
	charges map[string]*status.Charge
	ch      chan *status.Charge
}

func NewSandbox() *Sandbox {
	return &Sandbox{
		charges: make(map[string]*status.Charge),
	}
}

func (s *Sandbox) GetProvider() Provider {
	return ProviderSandbox
}

func (s *Sandbox) CreatePixCharge(ctx context.Context, req *ChargeRequest) (*PixCharge, error) {
	chargeID := uuid.New().String()

	s.mu.Lock()
	s.charges[chargeID] = &status.Charge{
		ID:        chargeID,
		RefID:     req.Reference,
		Status:    "WAITING",
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: time.Now(),
	}
	s.mu.Unlock()

	return &PixCharge{
		ChargeID: chargeID,
		QRText:   fmt.Sprintf("00020101021226sandbox-pix-%s", chargeID),
	}, nil
}

func (s *Sandbox) CreateCardCharge(ctx context.Context, req *ChargeRequest) (*status.Charge, error) {
	chargeID := uuid.New().String()

	charge := &status.Charge{
		ID:        chargeID,
		RefID:     req.Reference,
		Status:    "PAID",
		Amount:    req.Amount,
		Currency:  req.Currency,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.charges[chargeID] = charge
	s.mu.Unlock()

	return charge, nil
}

func (s *Sandbox) CheckCharge(ctx context.Context, chargeID string) (*status.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	charge, ok := s.charges[chargeID]
	if !ok {
		return nil, status.ErrChargeNotFound
	}

	// Snapshot: MarkPaid mutates the stored charge later.
	cp := *charge
	return &cp, nil
}

func (s *Sandbox) SetNotifyChannel(ch chan *status.Charge) {
	s.ch = ch
}

// MarkPaid simulates the provider confirming a charge.
func (s *Sandbox) MarkPaid(chargeID string) (*status.Charge, error) {
	s.mu.Lock()
	charge, ok := s.charges[chargeID]
	var cp status.Charge
	if ok {
		charge.Status = "PAID"
		cp = *charge
	}
	ch := s.ch
	s.mu.Unlock()

	if !ok {
		return nil, status.ErrChargeNotFound
	}

	if ch != nil {
		notified := cp
		ch <- &notified
	}
	return &cp, nil
}

func (s *Sandbox) Close(ctx context.Context) error {
	return nil
}
