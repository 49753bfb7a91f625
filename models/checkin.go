package models

import (
	"time"
)

// ValidationOutcome is the business result of one validate call.
// Exactly one outcome is produced per call.
type ValidationOutcome string

const (
	OutcomeSuccess     ValidationOutcome = "success"
	OutcomeNotFound    ValidationOutcome = "not_found"
	OutcomeAlreadyUsed ValidationOutcome = "already_used"
	OutcomeInactive    ValidationOutcome = "inactive"

	// OutcomeError marks a transient store/decoder failure. Unlike the
	// business outcomes it is always safe to retry with the same code.
	OutcomeError ValidationOutcome = "error"
)

// ValidationResult is what the operator sees after a scan or a manual
// code submission.
type ValidationResult struct {
	Outcome         ValidationOutcome `json:"outcome"`
	Message         string            `json:"message"`
	ParticipantName string            `json:"participant_name,omitempty"`
	TicketType      string            `json:"ticket_type,omitempty"`
	EventName       string            `json:"event_name,omitempty"`
	UsedAt          *time.Time        `json:"used_at,omitempty"`
	CheckIn         *CheckInRecord    `json:"checkin,omitempty"`
}

// CheckInRecord is appended once per successful validation. Records are
// never mutated or deleted.
type CheckInRecord struct {
	ID              string    `json:"id"`
	TicketID        string    `json:"ticket_id"`
	EventID         string    `json:"event_id"`
	ParticipantName string    `json:"participant_name"`
	TicketType      string    `json:"ticket_type"`
	CheckinTime     time.Time `json:"checkin_time"`
	Outcome         string    `json:"outcome"`
}
