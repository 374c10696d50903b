package handlers

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/balance-indicators/internal/api/middleware"
	"github.com/dvloznov/balance-indicators/internal/domain"
	"github.com/dvloznov/balance-indicators/internal/report"
)

// IndicatorsHandler serves the computed ratios.
type IndicatorsHandler struct {
	read ReadModel
	log  zerolog.Logger
}

// NewIndicatorsHandler creates a new indicators handler.
func NewIndicatorsHandler(read ReadModel, log zerolog.Logger) *IndicatorsHandler {
	return &IndicatorsHandler{
		read: read,
		log:  log,
	}
}

// GetIndicators handles GET /api/indicators
func (h *IndicatorsHandler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	d, err := h.read.Dashboard(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute indicators")
		middleware.WriteError(w, r, StatusFor(err), "Failed to compute indicators")
		return
	}

	middleware.WriteJSON(w, r, http.StatusOK, d)
}

// GetWorkbook handles GET /api/indicators.xlsx
func (h *IndicatorsHandler) GetWorkbook(w http.ResponseWriter, r *http.Request) {
	d, err := h.read.Dashboard(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute indicators")
		middleware.WriteError(w, r, StatusFor(err), "Failed to compute indicators")
		return
	}

	var buf bytes.Buffer
	if err := report.WriteWorkbook(&buf, d); err != nil {
		h.log.Error().Err(err).Msg("Failed to build workbook")
		middleware.WriteError(w, r, http.StatusInternalServerError, "Failed to build workbook")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="indicators.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetComposition handles GET /api/composition?period=AUGUST
func (h *IndicatorsHandler) GetComposition(w http.ResponseWriter, r *http.Request) {
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		middleware.WriteError(w, r, http.StatusBadRequest, "A valid period is required")
		return
	}

	slices, err := h.read.Composition(r.Context(), period)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute composition")
		middleware.WriteError(w, r, StatusFor(err), "Failed to compute composition")
		return
	}

	middleware.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"period": period,
		"slices": slices,
	})
}
