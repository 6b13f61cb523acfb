package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"lodepa-air/internal/models"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AlertConfigs satisfied by *service.AlertConfigService
type AlertConfigs interface {
	ListAlertConfigs(ctx context.Context, roomID string) ([]models.AlertConfig, error)
	GetAlertConfig(ctx context.Context, id int64) (*models.AlertConfig, error)
	SaveAlertConfig(ctx context.Context, cfg models.AlertConfig) (*models.AlertConfig, error)
	DeleteAlertConfig(ctx context.Context, id int64) error
}

type AlertConfigHandler struct {
	configs AlertConfigs
	logger  *zap.Logger
}

func NewAlertConfigHandler(configs AlertConfigs, logger *zap.Logger) *AlertConfigHandler {
	return &AlertConfigHandler{configs: configs, logger: logger}
}

// ListAlertConfigs GET /api/v1/alert-configs?room_id=
func (h *AlertConfigHandler) ListAlertConfigs(w http.ResponseWriter, r *http.Request) {
	list, err := h.configs.ListAlertConfigs(r.Context(), r.URL.Query().Get("room_id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if list == nil {
		list = []models.AlertConfig{}
	}
	writeJSON(w, http.StatusOK, Ok(list))
}

// GetAlertConfig GET /api/v1/alert-configs/{id}
func (h *AlertConfigHandler) GetAlertConfig(w http.ResponseWriter, r *http.Request) {
	id, err := configID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	cfg, err := h.configs.GetAlertConfig(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(cfg))
}

// SaveAlertConfig PUT /api/v1/alert-configs, id 0 creates
func (h *AlertConfigHandler) SaveAlertConfig(w http.ResponseWriter, r *http.Request) {
	var cfg models.AlertConfig
	if err := readBodyJSON(r, maxBodyBytes, &cfg); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	saved, err := h.configs.SaveAlertConfig(r.Context(), cfg)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(saved))
}

// DeleteAlertConfig DELETE /api/v1/alert-configs/{id}
func (h *AlertConfigHandler) DeleteAlertConfig(w http.ResponseWriter, r *http.Request) {
	id, err := configID(r)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if err := h.configs.DeleteAlertConfig(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

func configID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid alert config id %q", raw)
	}
	return id, nil
}
