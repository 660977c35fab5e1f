package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/xray/internal/database"
	"github.com/aristath/xray/internal/modules/history"
	testutil "github.com/aristath/xray/internal/testing"
)

func setupRouter(t *testing.T) http.Handler {
	t.Helper()
	db, cleanup := testutil.NewTestDB(t, database.HistoryDB)
	t.Cleanup(cleanup)

	handler := NewHandler(history.NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	router := chi.NewRouter()
	router.Route("/api", handler.RegisterRoutes)
	return router
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestHistoryLifecycle(t *testing.T) {
	router := setupRouter(t)

	rec, body := do(t, router, http.MethodPut, "/api/history/VTI",
		`[{"date":"2024-01-02","price":"231.50"},{"date":"2024-01-03","price":229.75}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), body["data"].(map[string]interface{})["upserted"])

	rec, body = do(t, router, http.MethodGet, "/api/history/VTI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	prices := body["data"].(map[string]interface{})["prices"].([]interface{})
	require.Len(t, prices, 2)
	assert.Equal(t, 231.5, prices[0].(map[string]interface{})["price"])
	assert.Equal(t, "2024-01-03", prices[1].(map[string]interface{})["date"])

	rec, body = do(t, router, http.MethodGet, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tickers := body["data"].([]interface{})
	require.Len(t, tickers, 1)
	assert.Equal(t, "VTI", tickers[0].(map[string]interface{})["ticker"])

	rec, _ = do(t, router, http.MethodDelete, "/api/history/VTI", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodGet, "/api/history/VTI", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = do(t, router, http.MethodDelete, "/api/history/VTI", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpsertPrices_Validation(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `[{"date":`, http.StatusBadRequest, "invalid_json"},
		{"empty batch", `[]`, http.StatusBadRequest, "invalid_json"},
		{"bad price", `[{"date":"2024-01-02","price":"abc"}]`, http.StatusBadRequest, "invalid_json"},
		{"zero price", `[{"date":"2024-01-02","price":0}]`, http.StatusUnprocessableEntity, "zero_price"},
		{"bad date", `[{"date":"2024-13-45","price":1}]`, http.StatusUnprocessableEntity, "invalid_series"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, http.MethodPut, "/api/history/VTI", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestUpsertPrices_BlankTicker(t *testing.T) {
	router := setupRouter(t)

	rec, body := do(t, router, http.MethodPut, "/api/history/%20", `[{"date":"2024-01-02","price":10}]`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "invalid_series", body["code"])
}

func TestRegisterRoutes(t *testing.T) {
	handler := NewHandler(nil, zerolog.Nop())
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	})
}
