package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_IsActive(t *testing.T) {
	ticket := &Ticket{Status: TicketStatusActive}
	assert.True(t, ticket.IsActive())

	for _, st := range []string{
		TicketStatusPending,
		TicketStatusUsed,
		TicketStatusCancelled,
		TicketStatusExpired,
	} {
		ticket.Status = st
		assert.False(t, ticket.IsActive(), st)
	}
}

func TestValidationResult_OmitsEmptyFields(t *testing.T) {
	raw, err := json.Marshal(&ValidationResult{
		Outcome: OutcomeNotFound,
		Message: "Ticket not found or not under your events",
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "not_found", decoded["outcome"])
	assert.NotContains(t, decoded, "participant_name")
	assert.NotContains(t, decoded, "used_at")
	assert.NotContains(t, decoded, "checkin")
}

func TestValidationResult_SuccessPayload(t *testing.T) {
	usedAt := time.Date(2026, 8, 30, 21, 15, 0, 0, time.UTC)

	raw, err := json.Marshal(&ValidationResult{
		Outcome:         OutcomeSuccess,
		Message:         "Check-in confirmed",
		ParticipantName: "Maria Silva",
		TicketType:      "VIP",
		EventName:       "Festa Junina",
		UsedAt:          &usedAt,
		CheckIn: &CheckInRecord{
			TicketID:    "tkt_1",
			EventID:     "evt_1",
			CheckinTime: usedAt,
			Outcome:     string(OutcomeSuccess),
		},
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "success", decoded["outcome"])
	assert.Equal(t, "Maria Silva", decoded["participant_name"])
	require.Contains(t, decoded, "checkin")
}
