package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/xray/internal/modules/xray"
	testutil "github.com/aristath/xray/internal/testing"
)

const scenarioBody = `{
	"allocations": [
		{"ticker": "A", "amount": "600.00", "asset_type": "stock"},
		{"ticker": "B", "amount": 400, "asset_type": "bond"}
	],
	"stress_quantile": 0.5,
	"horizons": [{"label": "1D", "days": 1}, {"label": "4D", "days": 4}]
}`

func setupRouter(t *testing.T) (http.Handler, *testutil.MockRunStore) {
	t.Helper()
	cfg := xray.DefaultConfig()
	cfg.MinHistoryDays = 5

	runs := testutil.NewMockRunStore()
	prices := testutil.NewMockPanelSource(testutil.NewScenarioPanel())
	svc := xray.NewService(cfg, prices, runs, time.Hour, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", NewHandler(svc, zerolog.Nop()).RegisterRoutes)
	return router, runs
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

func TestCreateRun(t *testing.T) {
	router, runs := setupRouter(t)

	rec, body := do(t, router, http.MethodPost, "/api/xray/runs", scenarioBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	metadata := body["metadata"].(map[string]interface{})
	assert.Equal(t, false, metadata["cached"])
	assert.Equal(t, "1000", metadata["total_invested"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, xray.SourceStore, data["source"])
	result := data["result"].(map[string]interface{})
	assert.Equal(t, []interface{}{float64(0), float64(3)}, result["stress"].(map[string]interface{})["indices"])
	weights := result["weights"].(map[string]interface{})
	assert.InDelta(t, 0.6, weights["A"], 1e-12)
	assert.Equal(t, 1, runs.Saves())

	rec, body = do(t, router, http.MethodPost, "/api/xray/runs", scenarioBody)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["metadata"].(map[string]interface{})["cached"])
	assert.Equal(t, data["id"], body["data"].(map[string]interface{})["id"])
}

func TestCreateRun_InlinePricesWithNullCorrelation(t *testing.T) {
	router, _ := setupRouter(t)

	dates := testutil.TradingDates("2024-01-01", 6)
	prices := map[string][]map[string]interface{}{"UP": {}, "FLAT": {}}
	for i, d := range dates {
		prices["UP"] = append(prices["UP"], map[string]interface{}{"date": d, "price": 10 + i*(i%2+1)})
		prices["FLAT"] = append(prices["FLAT"], map[string]interface{}{"date": d, "price": "1.00"})
	}
	payload, err := json.Marshal(map[string]interface{}{
		"allocations": []map[string]interface{}{{"ticker": "UP", "amount": 1}, {"ticker": "FLAT", "amount": 1}},
		"prices":      prices,
		"horizons":    []map[string]interface{}{{"label": "1D", "days": 1}},
	})
	require.NoError(t, err)

	rec, body := do(t, router, http.MethodPost, "/api/xray/runs", string(payload))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := body["data"].(map[string]interface{})["result"].(map[string]interface{})
	values := result["normal_correlation"].(map[string]interface{})["values"].([]interface{})
	assert.Nil(t, values[0].([]interface{})[1])
	assert.Equal(t, float64(1), values[0].([]interface{})[0])
}

func TestCreateRun_Errors(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"allocations": [`, http.StatusBadRequest, "invalid_json"},
		{"bad amount", `{"allocations": [{"ticker": "A", "amount": "lots"}]}`, http.StatusBadRequest, "invalid_json"},
		{"no allocations", `{"allocations": []}`, http.StatusUnprocessableEntity, "degenerate_allocation"},
		{"zero amount", `{"allocations": [{"ticker": "A", "amount": 0}]}`, http.StatusUnprocessableEntity, "degenerate_allocation"},
		{"negative amount", `{"allocations": [{"ticker": "A", "amount": "-5"}]}`, http.StatusUnprocessableEntity, "degenerate_allocation"},
		{"unknown ticker", `{"allocations": [{"ticker": "ZZZ", "amount": 5}]}`, http.StatusUnprocessableEntity, "missing_asset"},
		{"too little history", `{"allocations": [{"ticker": "A", "amount": 5}], "horizons": [{"label": "1D", "days": 1}], "stress_quantile": 0.5, "forward_fill": true, "quantile_method": "empirical", "prices": {"A": [{"date": "2024-01-01", "price": 1}, {"date": "2024-01-02", "price": 2}]}}`, http.StatusUnprocessableEntity, "insufficient_history"},
		{"bad quantile", `{"allocations": [{"ticker": "A", "amount": 5}], "stress_quantile": 2}`, http.StatusUnprocessableEntity, "invalid_quantile"},
		{"bad method", `{"allocations": [{"ticker": "A", "amount": 5}], "quantile_method": "nearest"}`, http.StatusUnprocessableEntity, "invalid_config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, http.MethodPost, "/api/xray/runs", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	rec, body := do(t, router, http.MethodPost, "/api/xray/runs", `{"allocations": [{"ticker": "ZZZ", "amount": 5}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]interface{}{"ticker": "ZZZ"}, body["details"])
}

func TestRunLifecycle(t *testing.T) {
	router, _ := setupRouter(t)

	_, body := do(t, router, http.MethodPost, "/api/xray/runs", scenarioBody)
	id := body["data"].(map[string]interface{})["id"].(string)

	rec, body := do(t, router, http.MethodGet, "/api/xray/runs/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, body["data"].(map[string]interface{})["id"])

	rec, body = do(t, router, http.MethodGet, "/api/xray/runs/"+id+"/horizons", "")
	require.Equal(t, http.StatusOK, rec.Code)
	horizons := body["data"].(map[string]interface{})["horizons"].([]interface{})
	require.Len(t, horizons, 2)
	last := horizons[1].(map[string]interface{})
	assert.Equal(t, "4D", last["label"])
	assert.Contains(t, last, "probability_of_loss")
	assert.Contains(t, last, "worst_case_return")

	rec, _ = do(t, router, http.MethodDelete, "/api/xray/runs/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, body = do(t, router, http.MethodGet, "/api/xray/runs/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])

	rec, _ = do(t, router, http.MethodDelete, "/api/xray/runs/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
