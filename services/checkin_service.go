package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pulacatraca/config"
	"pulacatraca/internal/status"
	"pulacatraca/models"
	"pulacatraca/monitoring"

	"github.com/redis/go-redis/v9"
)

// TicketStore is the persisted ticket collection. FindByCode is scoped by
// organizer so that foreign tickets are indistinguishable from missing
// ones. MarkUsed must be conditional on the row still being active and
// report how many rows it touched; that row count is the only thing
// standing between two concurrent scans and a double check-in.
type TicketStore interface {
	FindByCode(ctx context.Context, code, organizerID string) (*models.Ticket, error)
	MarkUsed(ctx context.Context, ticketID string, usedAt time.Time) (int64, error)
}

// ProfileStore resolves a user id to a display name. Best-effort only.
type ProfileStore interface {
	DisplayName(ctx context.Context, userID string) (string, error)
}

// CheckinLog is the append-only sink for successful check-ins.
type CheckinLog interface {
	Append(ctx context.Context, rec *models.CheckInRecord) error
}

// Publisher pushes realtime messages to operator devices.
type Publisher interface {
	Publish(channel string, message map[string]any)
}

const fallbackParticipantName = "Participant"

var ErrInvalidInput = errors.New("checkin: code and organizer id must not be empty")

type CheckinService struct {
	tickets  TicketStore
	profiles ProfileStore
	log      CheckinLog
	pub      Publisher
	notifier *NotifyService
	Redis    *redis.Client
	Config   *config.Config
}

func NewCheckinService(tickets TicketStore, profiles ProfileStore, checkinLog CheckinLog, pub Publisher, notifier *NotifyService, redisClient *redis.Client, cfg *config.Config) *CheckinService {
	return &CheckinService{
		tickets:  tickets,
		profiles: profiles,
		log:      checkinLog,
		pub:      pub,
		notifier: notifier,
		Redis:    redisClient,
		Config:   cfg,
	}
}

// Validate decides whether the scanned or typed code admits its holder
// and, if so, performs the single active -> used transition. Every call
// yields exactly one outcome; a non-nil error means a transient store
// failure and the caller may resubmit the same code.
func (s *CheckinService) Validate(ctx context.Context, code, organizerID string) (*models.ValidationResult, error) {
	code = strings.TrimSpace(code)
	if code == "" || organizerID == "" {
		return nil, ErrInvalidInput
	}

	start := time.Now()
	result, err := s.validate(ctx, code, organizerID)
	if err != nil {
		monitoring.TrackValidation("", string(models.OutcomeError), time.Since(start))
		return nil, err
	}

	eventID := ""
	if result.CheckIn != nil {
		eventID = result.CheckIn.EventID
	}
	monitoring.TrackValidation(eventID, string(result.Outcome), time.Since(start))

	return result, nil
}

func (s *CheckinService) validate(ctx context.Context, code, organizerID string) (*models.ValidationResult, error) {
	if s.Config != nil && s.Config.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Config.StoreTimeout)
		defer cancel()
	}

	// Read first, then conditional write. The lookup is scoped by the
	// organizer so a foreign ticket reads as not found.
	ticket, err := s.tickets.FindByCode(ctx, code, organizerID)
	if errors.Is(err, status.ErrTicketNotFound) {
		return &models.ValidationResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found or not under your events",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checkin: lookup %q: %w", code, err)
	}

	switch ticket.Status {
	case models.TicketStatusUsed:
		return &models.ValidationResult{
			Outcome:    models.OutcomeAlreadyUsed,
			Message:    "Ticket already checked in",
			TicketType: ticket.Type,
			EventName:  ticket.EventName,
			UsedAt:     ticket.UsedAt,
		}, nil

	case models.TicketStatusActive:
		// fall through to the conditional update below

	default:
		return &models.ValidationResult{
			Outcome:    models.OutcomeInactive,
			Message:    fmt.Sprintf("Ticket is not valid for check-in (status: %s)", ticket.Status),
			TicketType: ticket.Type,
			EventName:  ticket.EventName,
		}, nil
	}

	usedAt := time.Now()
	affected, err := s.tickets.MarkUsed(ctx, ticket.ID, usedAt)
	if err != nil {
		return nil, fmt.Errorf("checkin: mark used %q: %w", ticket.ID, err)
	}
	if affected == 0 {
		// Another device won the race between our read and our write.
		return &models.ValidationResult{
			Outcome:    models.OutcomeAlreadyUsed,
			Message:    "Ticket already checked in",
			TicketType: ticket.Type,
			EventName:  ticket.EventName,
		}, nil
	}

	name := s.resolveName(ctx, ticket.UserID)

	rec := &models.CheckInRecord{
		TicketID:        ticket.ID,
		EventID:         ticket.EventID,
		ParticipantName: name,
		TicketType:      ticket.Type,
		CheckinTime:     usedAt,
		Outcome:         string(models.OutcomeSuccess),
	}

	// Record keeping and realtime push are best-effort. The transition
	// already happened; none of these may turn a success into a failure.
	if s.log != nil {
		if err := s.log.Append(ctx, rec); err != nil {
			slog.Error("checkin: append record", "ticketID", ticket.ID, "error", err)
		}
	}
	s.bumpCounter(ctx, ticket.EventID)
	s.publishSuccess(organizerID, rec)
	if s.notifier != nil {
		s.notifier.Notify(organizerID, ticket.EventID)
	}

	return &models.ValidationResult{
		Outcome:         models.OutcomeSuccess,
		Message:         "Check-in confirmed",
		ParticipantName: name,
		TicketType:      ticket.Type,
		EventName:       ticket.EventName,
		UsedAt:          &usedAt,
		CheckIn:         rec,
	}, nil
}

func (s *CheckinService) resolveName(ctx context.Context, userID string) string {
	if userID == "" || s.profiles == nil {
		return fallbackParticipantName
	}

	name, err := s.profiles.DisplayName(ctx, userID)
	if err != nil || name == "" {
		slog.Info("checkin: display name unresolved", "userID", userID, "error", err)
		return fallbackParticipantName
	}
	return name
}

func (s *CheckinService) bumpCounter(ctx context.Context, eventID string) {
	if s.Redis == nil {
		return
	}

	countKey := fmt.Sprintf("checkin:count:%s", eventID)
	if err := s.Redis.Incr(ctx, countKey).Err(); err != nil {
		slog.Error("checkin: bump counter", "eventID", eventID, "error", err)
	}
}

func (s *CheckinService) publishSuccess(organizerID string, rec *models.CheckInRecord) {
	if s.pub == nil {
		return
	}

	channel := fmt.Sprintf("organizer-%s", organizerID)
	s.pub.Publish(channel, map[string]any{
		"type":             "checkin",
		"ticket_id":        rec.TicketID,
		"event_id":         rec.EventID,
		"participant_name": rec.ParticipantName,
		"ticket_type":      rec.TicketType,
		"checkin_time":     rec.CheckinTime.Format(time.RFC3339),
	})
}

// OwnsEvent answers ownership from the organizer:events set kept in
// Redis. A miss is not authoritative: the set lags events created
// before the startup sync, so callers fall back to the collection.
func (s *CheckinService) OwnsEvent(ctx context.Context, organizerID, eventID string) (bool, error) {
	if s.Redis == nil {
		return false, nil
	}
	return s.Redis.SIsMember(ctx, fmt.Sprintf("organizer:events:%s", organizerID), eventID).Result()
}

// CheckinCount reads the live per-event counter kept in Redis.
func (s *CheckinService) CheckinCount(ctx context.Context, eventID string) (int64, error) {
	countKey := fmt.Sprintf("checkin:count:%s", eventID)
	count, err := s.Redis.Get(ctx, countKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}
