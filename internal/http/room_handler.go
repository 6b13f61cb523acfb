package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"lodepa-air/internal/evaluator"
	"lodepa-air/internal/models"
	"lodepa-air/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// ThresholdQueries satisfied by *service.ThresholdService
type ThresholdQueries interface {
	RoomThresholds(ctx context.Context, roomID string) (map[models.Parameter]models.ThresholdDefinition, error)
	RoomThreshold(ctx context.Context, roomID string, p models.Parameter) (models.ThresholdDefinition, error)
	SetGlobalThreshold(ctx context.Context, def models.ThresholdDefinition) error
}

// BatchClassifier satisfied by *evaluator.Evaluator
type BatchClassifier interface {
	ClassifyBatch(ctx context.Context, roomID string, readings map[string]float64) evaluator.BatchResult
}

// RoomHandler room thresholds and ad hoc classification
type RoomHandler struct {
	thresholds ThresholdQueries
	classifier BatchClassifier
	logger     *zap.Logger
}

func NewRoomHandler(thresholds ThresholdQueries, classifier BatchClassifier, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		thresholds: thresholds,
		classifier: classifier,
		logger:     logger,
	}
}

// GetThresholds GET /api/v1/rooms/{roomId}/thresholds
func (h *RoomHandler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	table, err := h.thresholds.RoomThresholds(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(table))
}

// GetThreshold GET /api/v1/rooms/{roomId}/thresholds/{parameter}
func (h *RoomHandler) GetThreshold(w http.ResponseWriter, r *http.Request) {
	p, err := models.ParseParameter(chi.URLParam(r, "parameter"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	def, err := h.thresholds.RoomThreshold(r.Context(), chi.URLParam(r, "roomId"), p)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(def))
}

type classifyRequest struct {
	Readings map[string]any `json:"readings"`
}

type classifyResponse struct {
	RoomID   string                                       `json:"room_id"`
	Overall  models.Status                                `json:"overall"`
	Statuses map[models.Parameter]service.ParameterStatus `json:"statuses"`
	Failures map[string]string                            `json:"failures,omitempty"`
}

// ClassifyReadings POST /api/v1/rooms/{roomId}/status
// body {"readings": {"co2": 850, "formaldehyde": "1000"}}. Values that are not
// numbers or numeric strings are reported per key; the rest is still classified.
func (h *RoomHandler) ClassifyReadings(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if len(req.Readings) == 0 {
		writeError(w, h.logger, r, badRequest("readings is required"))
		return
	}

	failures := make(map[string]string)
	values := make(map[string]float64, len(req.Readings))
	for key, raw := range req.Readings {
		v, err := toReading(raw)
		if err != nil {
			failures[key] = err.Error()
			continue
		}
		values[key] = v
	}

	roomID := chi.URLParam(r, "roomId")
	result := h.classifier.ClassifyBatch(r.Context(), roomID, values)

	resp := classifyResponse{
		RoomID:   roomID,
		Overall:  models.StatusGood,
		Statuses: make(map[models.Parameter]service.ParameterStatus, len(result.Statuses)),
	}
	for p, ev := range result.Statuses {
		resp.Statuses[p] = service.NewParameterStatus(ev)
		if !ev.Degraded && ev.Status > resp.Overall {
			resp.Overall = ev.Status
		}
	}
	for key, err := range result.Failures {
		failures[key] = err.Error()
	}
	if len(failures) > 0 {
		resp.Failures = failures
	}
	writeJSON(w, http.StatusOK, Ok(resp))
}

// toReading accepts JSON numbers and numeric strings
func toReading(raw any) (float64, error) {
	switch raw.(type) {
	case nil:
		return 0, fmt.Errorf("%w: null value", models.ErrInvalidReading)
	case bool, map[string]any, []any:
		return 0, fmt.Errorf("%w: %v is not numeric", models.ErrInvalidReading, raw)
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrInvalidReading, err)
	}
	return v, nil
}

type globalThresholdRequest struct {
	MinGood    *float64 `json:"min_good"`
	MaxGood    *float64 `json:"max_good"`
	MinWarning *float64 `json:"min_warning"`
	MaxWarning *float64 `json:"max_warning"`
}

// PutGlobalThreshold PUT /api/v1/thresholds/{parameter}, all four bounds required
func (h *RoomHandler) PutGlobalThreshold(w http.ResponseWriter, r *http.Request) {
	p, err := models.ParseParameter(chi.URLParam(r, "parameter"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	var req globalThresholdRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if req.MinGood == nil || req.MaxGood == nil || req.MinWarning == nil || req.MaxWarning == nil {
		writeError(w, h.logger, r, badRequest("min_good, max_good, min_warning and max_warning are required"))
		return
	}

	def := models.ThresholdDefinition{
		Parameter:  p,
		MinGood:    *req.MinGood,
		MaxGood:    *req.MaxGood,
		MinWarning: *req.MinWarning,
		MaxWarning: *req.MaxWarning,
		Source:     models.SourceGlobal,
	}
	if err := h.thresholds.SetGlobalThreshold(r.Context(), def); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(def))
}
