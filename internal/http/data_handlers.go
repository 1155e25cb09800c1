package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"aquadash/internal/models"
	"aquadash/internal/repository"
)

// DataHandler serves telemetry reads: the recent window the dashboard renders
// on load and the historical ranges behind the chart's range selector.
type DataHandler struct {
	telemetry repository.TelemetryRepository
	logger    *zap.Logger
}

func NewDataHandler(telemetry repository.TelemetryRepository, logger *zap.Logger) *DataHandler {
	return &DataHandler{telemetry: telemetry, logger: logger}
}

// GetRecent returns the most recent records, newest first.
func (h *DataHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 100)

	records, err := h.telemetry.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to query recent telemetry", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query telemetry")
		return
	}
	if records == nil {
		records = []*models.TelemetryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetRange returns the records inside [start, end] inclusive, ascending, for
// the historical chart view.
func (h *DataHandler) GetRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	records, err := h.telemetry.Range(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query telemetry range", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query telemetry")
		return
	}
	if records == nil {
		records = []*models.TelemetryRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// parseRange validates the start/end query parameters shared by the range
// endpoints. On failure it writes the 400 response and returns ok=false.
func parseRange(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	q := r.URL.Query()
	startRaw, endRaw := q.Get("start"), q.Get("end")
	if startRaw == "" || endRaw == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	var err error
	start, err = time.Parse(time.RFC3339, startRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start timestamp")
		return
	}
	end, err = time.Parse(time.RFC3339, endRaw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end timestamp")
		return
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	return start, end, true
}
