package httpapi

import (
	"context"
	"net/http"

	"lodepa-air/internal/models"

	"go.uber.org/zap"
)

// AlarmEvents satisfied by *service.AlarmEventService
type AlarmEvents interface {
	ListAlarmEvents(ctx context.Context, roomID string, limit int) ([]models.AlarmEvent, error)
}

type AlarmEventHandler struct {
	events AlarmEvents
	logger *zap.Logger
}

func NewAlarmEventHandler(events AlarmEvents, logger *zap.Logger) *AlarmEventHandler {
	return &AlarmEventHandler{events: events, logger: logger}
}

// ListAlarmEvents GET /api/v1/alarm-events?room_id=&limit=, newest first
func (h *AlarmEventHandler) ListAlarmEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.events.ListAlarmEvents(r.Context(), q.Get("room_id"), parseInt(q.Get("limit"), 0))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if events == nil {
		events = []models.AlarmEvent{}
	}
	writeJSON(w, http.StatusOK, Ok(events))
}
