package handlers

import (
	"errors"
	"net/http"

	"pulacatraca/services"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type CheckinHandler struct {
	app            *pocketbase.PocketBase
	checkinService *services.CheckinService
	checkinLog     *services.PBCheckinLog
	historyLimit   int
}

func NewCheckinHandler(app *pocketbase.PocketBase, checkinService *services.CheckinService, checkinLog *services.PBCheckinLog, historyLimit int) *CheckinHandler {
	return &CheckinHandler{
		app:            app,
		checkinService: checkinService,
		checkinLog:     checkinLog,
		historyLimit:   historyLimit,
	}
}

// ValidateTicket - validate a scanned or typed ticket code
func (h *CheckinHandler) ValidateTicket(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ctx := e.Request.Context()

	result, err := h.checkinService.Validate(ctx, req.Code, e.Auth.Id)
	if errors.Is(err, services.ErrInvalidInput) {
		return apis.NewBadRequestError("Code must not be empty", err)
	}
	if err != nil {
		// Transient store failure. Nothing is assumed written; the
		// operator may re-scan the same code.
		return e.JSON(http.StatusBadGateway, map[string]any{
			"outcome":   "error",
			"message":   "Validation temporarily unavailable, try again",
			"retriable": true,
		})
	}

	return e.JSON(http.StatusOK, result)
}

// GetCheckinHistory - recent check-ins across the organizer's events
func (h *CheckinHandler) GetCheckinHistory(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()

	records, err := h.checkinLog.RecentForOrganizer(ctx, e.Auth.Id, h.historyLimit)
	if err != nil {
		return apis.NewBadRequestError("Failed to get check-in history", err)
	}

	return e.JSON(http.StatusOK, records)
}

// GetCheckinStats - live per-event check-in count
func (h *CheckinHandler) GetCheckinStats(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	eventID := e.Request.URL.Query().Get("event_id")
	if eventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}

	ctx := e.Request.Context()

	// Stats are scoped the same way validation is: an event the
	// organizer does not own reads as unknown. The organizer:events set
	// answers the common case; a miss goes to the collection, since the
	// set only lags, never over-claims.
	owned, err := h.checkinService.OwnsEvent(ctx, e.Auth.Id, eventID)
	if err != nil || !owned {
		event, ferr := h.app.FindRecordById("events", eventID)
		if ferr != nil || event.GetString("organizer") != e.Auth.Id {
			return apis.NewNotFoundError("Event not found", ferr)
		}
	}

	count, err := h.checkinService.CheckinCount(ctx, eventID)
	if err != nil {
		return apis.NewBadRequestError("Failed to get check-in count", err)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event_id":      eventID,
		"checkin_count": count,
	})
}
