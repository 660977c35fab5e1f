// Package handlers provides HTTP handlers for price history operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/aristath/xray/internal/modules/history"
	"github.com/aristath/xray/internal/modules/xray"
)

// Handler handles price history HTTP requests
type Handler struct {
	repo *history.Repository
	log  zerolog.Logger
}

// NewHandler creates a new price history handler
func NewHandler(repo *history.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "history").Logger(),
	}
}

// pricePointRequest accepts prices as JSON numbers or decimal strings.
type pricePointRequest struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// HandleListTickers handles GET /api/history
func (h *Handler) HandleListTickers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.repo.ListTickers(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list tickers")
		h.writeError(w, http.StatusInternalServerError, "Failed to list tickers", "", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summaries,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(summaries),
		},
	})
}

// HandleGetPrices handles GET /api/history/{ticker}
func (h *Handler) HandleGetPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	prices, err := h.repo.GetPrices(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to get prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to get prices", "", nil)
		return
	}
	if len(prices) == 0 {
		h.writeError(w, http.StatusNotFound, "No price history for "+ticker, "not_found", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker": ticker,
			"prices": prices,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
			"count":     len(prices),
		},
	})
}

// HandleUpsertPrices handles PUT /api/history/{ticker}
func (h *Handler) HandleUpsertPrices(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	var body []pricePointRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error(), "invalid_json", nil)
		return
	}
	if len(body) == 0 {
		h.writeError(w, http.StatusBadRequest, "At least one price is required", "invalid_json", nil)
		return
	}

	prices := make([]xray.PricePoint, len(body))
	for i, p := range body {
		prices[i] = xray.PricePoint{Date: p.Date, Price: p.Price.InexactFloat64()}
	}

	n, err := h.repo.UpsertPrices(r.Context(), ticker, prices)
	if err != nil {
		if code := xray.ErrorCode(err); code != "" {
			h.writeError(w, http.StatusUnprocessableEntity, err.Error(), code, xray.ErrorDetails(err))
			return
		}
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to upsert prices")
		h.writeError(w, http.StatusInternalServerError, "Failed to store prices", "", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":   ticker,
			"upserted": n,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDeleteTicker handles DELETE /api/history/{ticker}
func (h *Handler) HandleDeleteTicker(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")

	deleted, err := h.repo.DeleteTicker(r.Context(), ticker)
	if err != nil {
		h.log.Error().Err(err).Str("ticker", ticker).Msg("Failed to delete ticker")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete price history", "", nil)
		return
	}
	if deleted == 0 {
		h.writeError(w, http.StatusNotFound, "No price history for "+ticker, "not_found", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"ticker":  ticker,
			"deleted": deleted,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
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

