package models

import (
	"time"
)

// Ticket statuses as stored in the tickets collection. Only the
// active -> used transition is performed by this service; every other
// status is terminal for check-in purposes.
const (
	TicketStatusPending   = "pending"
	TicketStatusActive    = "active"
	TicketStatusUsed      = "used"
	TicketStatusCancelled = "cancelled"
	TicketStatusExpired   = "expired"
)

type Ticket struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	EventID     string     `json:"event_id"`
	UserID      string     `json:"user_id,omitempty"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
	OrganizerID string     `json:"organizer_id"`
	EventName   string     `json:"event_name,omitempty"`
}

// IsActive reports whether the ticket can still be checked in.
func (t *Ticket) IsActive() bool {
	return t.Status == TicketStatusActive
}
