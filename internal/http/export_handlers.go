package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"aquadash/internal/export"
	"aquadash/internal/repository"
)

// ExportHandler serves telemetry range downloads.
type ExportHandler struct {
	telemetry repository.TelemetryRepository
	logger    *zap.Logger
}

func NewExportHandler(telemetry repository.TelemetryRepository, logger *zap.Logger) *ExportHandler {
	return &ExportHandler{telemetry: telemetry, logger: logger}
}

// CSVRange streams the records inside [start, end] as a CSV attachment.
func (h *ExportHandler) CSVRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	records, err := h.telemetry.Range(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query telemetry for CSV export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query telemetry")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no data in the requested range")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(start, end, "csv"))
	if err := export.WriteCSV(w, records); err != nil {
		// Headers are gone already; all we can do is log.
		h.logger.Error("Failed to stream CSV export", zap.Error(err))
	}
}

// XLSXRange serves the same range as a styled workbook.
func (h *ExportHandler) XLSXRange(w http.ResponseWriter, r *http.Request) {
	start, end, ok := parseRange(w, r)
	if !ok {
		return
	}

	records, err := h.telemetry.Range(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query telemetry for XLSX export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to query telemetry")
		return
	}
	if len(records) == 0 {
		writeError(w, http.StatusNotFound, "no data in the requested range")
		return
	}

	book, err := export.BuildXLSX(records)
	if err != nil {
		h.logger.Error("Failed to build XLSX export", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", attachment(start, end, "xlsx"))
	_, _ = w.Write(book)
}

func attachment(start, end time.Time, ext string) string {
	const stamp = "20060102T150405"
	return fmt.Sprintf(`attachment; filename="aquarium_%s_%s.%s"`,
		start.UTC().Format(stamp), end.UTC().Format(stamp), ext)
}
