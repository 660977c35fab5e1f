// Package handlers provides HTTP handlers for portfolio x-ray runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/xray/internal/modules/xray"
)

// Handler handles x-ray HTTP requests
type Handler struct {
	service *xray.Service
	log     zerolog.Logger
}

// NewHandler creates a new x-ray handler
func NewHandler(service *xray.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "xray").Logger(),
	}
}

// allocationRequest accepts amounts as JSON numbers or decimal strings.
type allocationRequest struct {
	Ticker    string          `json:"ticker"`
	Amount    decimal.Decimal `json:"amount"`
	AssetType string          `json:"asset_type,omitempty"`
}

type pricePointRequest struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

type runRequest struct {
	Allocations    []allocationRequest            `json:"allocations"`
	Prices         map[string][]pricePointRequest `json:"prices,omitempty"`
	StressQuantile *float64                       `json:"stress_quantile,omitempty"`
	QuantileMethod string                         `json:"quantile_method,omitempty"`
	Horizons       []xray.Horizon                 `json:"horizons,omitempty"`
	ForwardFill    *bool                          `json:"forward_fill,omitempty"`
}

// toServiceRequest validates amounts and converts the body into a service request.
// It also returns the total invested, summed exactly.
func (req runRequest) toServiceRequest() (xray.RunRequest, decimal.Decimal, error) {
	if len(req.Allocations) == 0 {
		return xray.RunRequest{}, decimal.Zero, &xray.DegenerateAllocationError{Reason: "no allocations"}
	}

	total := decimal.Zero
	allocs := make([]xray.Allocation, len(req.Allocations))
	for i, a := range req.Allocations {
		ticker := strings.TrimSpace(a.Ticker)
		if !a.Amount.IsPositive() {
			return xray.RunRequest{}, decimal.Zero, &xray.DegenerateAllocationError{
				Ticker: ticker,
				Reason: "amount must be greater than zero, got " + a.Amount.String(),
			}
		}
		total = total.Add(a.Amount)
		allocs[i] = xray.Allocation{
			Ticker:    ticker,
			Amount:    a.Amount.InexactFloat64(),
			AssetType: a.AssetType,
		}
	}

	var panel xray.PricePanel
	if len(req.Prices) > 0 {
		panel = make(xray.PricePanel, len(req.Prices))
		for ticker, points := range req.Prices {
			series := make([]xray.PricePoint, len(points))
			for i, p := range points {
				series[i] = xray.PricePoint{Date: p.Date, Price: p.Price.InexactFloat64()}
			}
			panel[strings.TrimSpace(ticker)] = series
		}
	}

	return xray.RunRequest{
		Allocations:    allocs,
		Prices:         panel,
		StressQuantile: req.StressQuantile,
		QuantileMethod: req.QuantileMethod,
		Horizons:       req.Horizons,
		ForwardFill:    req.ForwardFill,
	}, total, nil
}

// HandleCreateRun handles POST /api/xray/runs
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "invalid_json", nil)
		return
	}

	req, total, err := body.toServiceRequest()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	run, cached, err := h.service.Analyze(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if cached {
		status = http.StatusOK
	}

	h.writeJSON(w, status, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp":      time.Now().Format(time.RFC3339),
			"cached":         cached,
			"total_invested": total.String(),
		},
	})
}

// HandleGetRun handles GET /api/xray/runs/{id}
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHorizons handles GET /api/xray/runs/{id}/horizons
func (h *Handler) HandleGetHorizons(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":   run.ID,
			"horizons": run.Result.HorizonTable(),
			"insight":  run.Result.Insights.Horizon,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteRun handles DELETE /api/xray/runs/{id}
func (h *Handler) HandleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteRun(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"id":      id,
			"deleted": true,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeServiceError maps input errors to 422, unknown runs to 404 and
// everything else to 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, xray.ErrRunNotFound) {
		h.writeError(w, http.StatusNotFound, err.Error(), "not_found", nil)
		return
	}
	if code := xray.ErrorCode(err); code != "" {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), code, xray.ErrorDetails(err))
		return
	}

	h.log.Error().Err(err).Msg("X-ray request failed")
	h.writeError(w, http.StatusInternalServerError, "Internal server error", "", nil)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string, details map[string]interface{}) {
	body := map[string]interface{}{"error": message}
	if code != "" {
		body["code"] = code
	}
	if len(details) > 0 {
		body["details"] = details
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
