package httpapi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"aquadash/internal/models"
	"aquadash/internal/service"
)

const maxBodyBytes = 1 << 20

// settingsAPI is the slice of the settings service the handlers use.
type settingsAPI interface {
	Get(ctx context.Context) (*models.ControlSettings, error)
	Update(ctx context.Context, patch *models.SettingsPatch) (*models.ControlSettings, error)
	UpdateCalibration(ctx context.Context, clearADC, turbidADC *int64) (*models.ControlSettings, error)
}

// ControlHandler serves the operator's settings endpoints.
type ControlHandler struct {
	settings settingsAPI
	logger   *zap.Logger
}

func NewControlHandler(settings settingsAPI, logger *zap.Logger) *ControlHandler {
	return &ControlHandler{settings: settings, logger: logger}
}

// GetControl returns the current settings, creating defaults if none exist.
func (h *ControlHandler) GetControl(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.logger.Error("Failed to read control settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read control settings")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// PostControl merges a partial settings document and pushes it to the device.
func (h *ControlHandler) PostControl(w http.ResponseWriter, r *http.Request) {
	var patch models.SettingsPatch
	if err := readBodyJSON(r, maxBodyBytes, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.Update(r.Context(), &patch)
	if err != nil {
		h.logger.Error("Failed to update control settings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": settings})
}

type calibrationRequest struct {
	ClearADC  *int64 `json:"clear_adc"`
	TurbidADC *int64 `json:"turbid_adc"`
}

// PostCalibration updates the two turbidity calibration reference points.
func (h *ControlHandler) PostCalibration(w http.ResponseWriter, r *http.Request) {
	var req calibrationRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := h.settings.UpdateCalibration(r.Context(), req.ClearADC, req.TurbidADC)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCalibration) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("Failed to update calibration", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": settings})
}
