package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pulacatraca/internal/status"
	"pulacatraca/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
)

// PBTicketStore implements TicketStore on top of the PocketBase
// tickets/events collections.
type PBTicketStore struct {
	app core.App
}

func NewPBTicketStore(app core.App) *PBTicketStore {
	return &PBTicketStore{app: app}
}

// FindByCode looks the code up joined with its event, scoped by the
// organizer. A ticket under another organizer's event reads the same as
// no ticket at all.
func (s *PBTicketStore) FindByCode(ctx context.Context, code, organizerID string) (*models.Ticket, error) {
	row := dbx.NullStringMap{}

	err := s.app.DB().NewQuery(`
		SELECT t.id, t.code, t.event, t.user, t.type, t.status, t.used_at,
		       e.organizer AS organizer, e.name AS event_name
		FROM tickets t
		JOIN events e ON t.event = e.id
		WHERE t.code = {:code} AND e.organizer = {:organizer}
		LIMIT 1`).
		Bind(dbx.Params{"code": code, "organizer": organizerID}).
		WithContext(ctx).
		One(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, status.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket store: find by code: %w", err)
	}

	ticket := &models.Ticket{
		ID:          row["id"].String,
		Code:        row["code"].String,
		EventID:     row["event"].String,
		UserID:      row["user"].String,
		Type:        row["type"].String,
		Status:      row["status"].String,
		OrganizerID: row["organizer"].String,
		EventName:   row["event_name"].String,
	}

	if raw := row["used_at"].String; raw != "" {
		if ts, err := parseStoredTime(raw); err == nil {
			ticket.UsedAt = &ts
		}
	}

	return ticket, nil
}

// MarkUsed flips the ticket to used, but only if it is still active.
// The status guard in the WHERE clause is what makes two concurrent
// check-ins resolve to a single winner: the loser sees zero rows.
func (s *PBTicketStore) MarkUsed(ctx context.Context, ticketID string, usedAt time.Time) (int64, error) {
	res, err := s.app.DB().NewQuery(`
		UPDATE tickets
		SET status = {:used}, used_at = {:usedAt}
		WHERE id = {:id} AND status = {:active}`).
		Bind(dbx.Params{
			"used":   models.TicketStatusUsed,
			"usedAt": usedAt.UTC().Format(storedTimeLayout),
			"id":     ticketID,
			"active": models.TicketStatusActive,
		}).
		WithContext(ctx).
		Execute()
	if err != nil {
		return 0, fmt.Errorf("ticket store: mark used: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ticket store: rows affected: %w", err)
	}

	return affected, nil
}

// storedTimeLayout matches the text datetime format PocketBase writes.
const storedTimeLayout = "2006-01-02 15:04:05.000Z"

func parseStoredTime(raw string) (time.Time, error) {
	if ts, err := time.Parse(storedTimeLayout, raw); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// PBProfileStore resolves display names from the users collection.
type PBProfileStore struct {
	app core.App
}

func NewPBProfileStore(app core.App) *PBProfileStore {
	return &PBProfileStore{app: app}
}

func (s *PBProfileStore) DisplayName(ctx context.Context, userID string) (string, error) {
	record, err := s.app.FindRecordById("users", userID)
	if err != nil {
		return "", fmt.Errorf("profile store: find %q: %w", userID, err)
	}

	if name := record.GetString("name"); name != "" {
		return name, nil
	}
	return record.GetString("email"), nil
}

// PBCheckinLog appends check-in records to the checkins collection.
// Rows written here are never updated or deleted.
type PBCheckinLog struct {
	app core.App
}

func NewPBCheckinLog(app core.App) *PBCheckinLog {
	return &PBCheckinLog{app: app}
}

func (s *PBCheckinLog) Append(ctx context.Context, rec *models.CheckInRecord) error {
	collection, err := s.app.FindCollectionByNameOrId("checkins")
	if err != nil {
		return fmt.Errorf("checkin log: collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("ticket", rec.TicketID)
	record.Set("event", rec.EventID)
	record.Set("participant_name", rec.ParticipantName)
	record.Set("ticket_type", rec.TicketType)
	record.Set("checkin_time", rec.CheckinTime.UTC().Format(storedTimeLayout))
	record.Set("outcome", rec.Outcome)

	if err := s.app.Save(record); err != nil {
		return fmt.Errorf("checkin log: save: %w", err)
	}

	rec.ID = record.Id
	return nil
}

// RecentForOrganizer lists the latest check-ins across the organizer's
// events, newest first.
func (s *PBCheckinLog) RecentForOrganizer(ctx context.Context, organizerID string, limit int) ([]*models.CheckInRecord, error) {
	rows := []dbx.NullStringMap{}

	err := s.app.DB().NewQuery(`
		SELECT c.id, c.ticket, c.event, c.participant_name, c.ticket_type,
		       c.checkin_time, c.outcome
		FROM checkins c
		JOIN events e ON c.event = e.id
		WHERE e.organizer = {:organizer}
		ORDER BY c.checkin_time DESC
		LIMIT {:limit}`).
		Bind(dbx.Params{"organizer": organizerID, "limit": limit}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return nil, fmt.Errorf("checkin log: recent: %w", err)
	}

	records := make([]*models.CheckInRecord, 0, len(rows))
	for _, row := range rows {
		rec := &models.CheckInRecord{
			ID:              row["id"].String,
			TicketID:        row["ticket"].String,
			EventID:         row["event"].String,
			ParticipantName: row["participant_name"].String,
			TicketType:      row["ticket_type"].String,
			Outcome:         row["outcome"].String,
		}
		if ts, err := parseStoredTime(row["checkin_time"].String); err == nil {
			rec.CheckinTime = ts
		}
		records = append(records, rec)
	}

	return records, nil
}
