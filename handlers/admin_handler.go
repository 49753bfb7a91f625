package handlers

import (
	"fmt"
	"net/http"

	"pulacatraca/models"
	"pulacatraca/services"
	"pulacatraca/utils"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct {
	app            *pocketbase.PocketBase
	checkinService *services.CheckinService
	redis          *redis.Client
}

func NewAdminHandler(app *pocketbase.PocketBase, checkinService *services.CheckinService, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		app:            app,
		checkinService: checkinService,
		redis:          redisClient,
	}
}

// GetCheckinDashboard - per-event check-in totals for the organizer
func (h *AdminHandler) GetCheckinDashboard(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()

	rows := []dbx.NullStringMap{}
	err := h.app.DB().NewQuery(`
		SELECT e.id, e.name,
		       COUNT(t.id) AS total_tickets,
		       SUM(CASE WHEN t.status = 'used' THEN 1 ELSE 0 END) AS used_tickets
		FROM events e
		LEFT JOIN tickets t ON t.event = e.id
		WHERE e.organizer = {:organizer}
		GROUP BY e.id, e.name`).
		Bind(dbx.Params{"organizer": e.Auth.Id}).
		WithContext(ctx).
		All(&rows)
	if err != nil {
		return apis.NewBadRequestError("Failed to build dashboard", err)
	}

	dashboard := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		eventID := row["id"].String

		// Live counter may run ahead of the SQL aggregate between
		// write and read; prefer it when present.
		liveCount, _ := h.redis.Get(ctx, fmt.Sprintf("checkin:count:%s", eventID)).Int64()

		dashboard = append(dashboard, map[string]any{
			"event_id":      eventID,
			"event_name":    row["name"].String,
			"total_tickets": row["total_tickets"].String,
			"used_tickets":  row["used_tickets"].String,
			"live_checkins": liveCount,
		})
	}

	return e.JSON(http.StatusOK, dashboard)
}

// ReissueCode - assign a fresh code to a ticket that failed to scan
func (h *AdminHandler) ReissueCode(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		TicketID string `json:"ticket_id"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ticket, err := h.app.FindRecordById("tickets", req.TicketID)
	if err != nil {
		return apis.NewNotFoundError("Ticket not found", err)
	}

	event, err := h.app.FindRecordById("events", ticket.GetString("event"))
	if err != nil || event.GetString("organizer") != e.Auth.Id {
		return apis.NewNotFoundError("Ticket not found", err)
	}

	// Used tickets keep their code; the check-in trail references it.
	if ticket.GetString("status") == models.TicketStatusUsed {
		return apis.NewBadRequestError("Cannot reissue a used ticket", nil)
	}

	code, err := utils.GenerateCode(8)
	if err != nil {
		return apis.NewBadRequestError("Failed to generate code", err)
	}

	ticket.Set("code", code)
	if err := h.app.Save(ticket); err != nil {
		return apis.NewBadRequestError("Failed to save ticket", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket_id": ticket.Id,
		"code":      code,
	})
}
