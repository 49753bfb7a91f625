package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"pulacatraca/internal/status"
	"pulacatraca/models"
	"pulacatraca/monitoring"
)

// Decoder emits decoded strings from a live camera stream. A frame with
// no readable code returns status.ErrNoCode; any other error is a real
// camera/IO failure.
type Decoder interface {
	Next(ctx context.Context) (string, error)
}

// ScanSession drives one camera session. Single-shot: the first decoded
// code is validated and the session ends, so one physical ticket held in
// front of the camera cannot be submitted twice from the same session.
type ScanSession struct {
	id          string
	organizerID string
	validator   *CheckinService
	decoder     Decoder
}

type ScannerService struct {
	validator *CheckinService

	mu     sync.Mutex
	nextID int
}

func NewScannerService(validator *CheckinService) *ScannerService {
	return &ScannerService{
		validator: validator,
	}
}

// StartSession creates a scan session for the organizer. The session's
// lifetime is the ctx handed to Run.
func (s *ScannerService) StartSession(organizerID string, decoder Decoder) *ScanSession {
	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("scan-%d", s.nextID)
	s.mu.Unlock()

	return &ScanSession{
		id:          id,
		organizerID: organizerID,
		validator:   s.validator,
		decoder:     decoder,
	}
}

// Run consumes frames until the first decoded code, validates it and
// returns the result. Empty frames are skipped; decoder failures and
// context cancellation end the session with an error and no ticket
// state is touched before a code reaches the validator.
func (s *ScanSession) Run(ctx context.Context) (*models.ValidationResult, error) {
	monitoring.TrackScanSessionStart()
	defer monitoring.TrackScanSessionEnd()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := s.decoder.Next(ctx)
		if errors.Is(err, status.ErrNoCode) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan %s: decoder: %w", s.id, err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		return s.validator.Validate(ctx, text, s.organizerID)
	}
}
