package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/xray/internal/modules/history"
	"github.com/aristath/xray/internal/modules/runs"
	"github.com/aristath/xray/internal/modules/xray"
	"github.com/aristath/xray/internal/scheduler"
	testutil "github.com/aristath/xray/internal/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	historyDB, cleanupHistory := testutil.NewTestDB(t, "history")
	t.Cleanup(cleanupHistory)
	cacheDB, cleanupCache := testutil.NewTestDB(t, "cache")
	t.Cleanup(cleanupCache)

	log := zerolog.Nop()
	historyRepo := history.NewRepository(historyDB.Conn(), log)
	runRepo := runs.NewRepository(cacheDB.Conn(), log)
	service := xray.NewService(xray.DefaultConfig(), historyRepo, runRepo, time.Hour, log)

	return New(Config{
		Log:       log,
		HistoryDB: historyDB,
		CacheDB:   cacheDB,
		Service:   service,
		History:   historyRepo,
		Scheduler: scheduler.New(log),
		Jobs: []scheduler.Job{
			runs.NewCleanupJob(runRepo, log),
			scheduler.NewCheckWALCheckpointsJob(log, historyDB, cacheDB),
		},
		Port:    0,
		DevMode: true,
	})
}

func serve(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func pricesBody(points []xray.PricePoint) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = fmt.Sprintf(`{"date":%q,"price":%v}`, p.Date, p.Price)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestServer_EndToEnd(t *testing.T) {
	s := newTestServer(t)

	panel := testutil.NewRandomWalkPanel(11, []string{"EQ", "BD"}, 250)
	for _, ticker := range []string{"EQ", "BD"} {
		rec := serve(t, s, http.MethodPut, "/api/history/"+ticker, pricesBody(panel[ticker]))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	body := `{"allocations":[{"ticker":"EQ","amount":"7000"},{"ticker":"BD","amount":"3000"}]}`
	rec := serve(t, s, http.MethodPost, "/api/xray/runs", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data struct {
			ID     string `json:"id"`
			Source string `json:"source"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, xray.SourceStore, created.Data.Source)
	require.NotEmpty(t, created.Data.ID)

	rec = serve(t, s, http.MethodPost, "/api/xray/runs", body)
	assert.Equal(t, http.StatusOK, rec.Code, "second identical request is served from cache")

	rec = serve(t, s, http.MethodGet, "/api/xray/runs/"+created.Data.ID+"/horizons", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodPost, "/api/system/jobs/run_cache_cleanup", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = serve(t, s, http.MethodPost, "/api/system/jobs/check_wal_checkpoints", "")
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(t, s, http.MethodGet, "/api/xray/runs/"+created.Data.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "unexpired runs survive cleanup")
}

func TestServer_HealthAndStatus(t *testing.T) {
	s := newTestServer(t)

	rec := serve(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(t, s, http.MethodGet, "/api/system/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Len(t, status.Databases, 2)
}

func TestServer_MissingHistory(t *testing.T) {
	s := newTestServer(t)

	rec := serve(t, s, http.MethodPost, "/api/xray/runs", `{"allocations":[{"ticker":"NONE","amount":"100"}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
}
