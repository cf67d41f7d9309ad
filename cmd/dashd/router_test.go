package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashsync/internal/backend"
	"dashsync/internal/httpx"
	"dashsync/internal/metrics"
	"dashsync/internal/model"
	"dashsync/internal/panels"
	"dashsync/internal/settings"
)

// newFakeBackend serves just enough of the backend API for router tests.
func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.Preferences{Thresholds: model.Thresholds{VolumeSpike: 2}})
	})
	mux.HandleFunc("POST /api/preferences", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/alert-rules", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.AlertRules{})
	})
	mux.HandleFunc("POST /api/alert-rules", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
	})
	mux.HandleFunc("GET /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"watchlist": model.Watchlist{"AAPL": {"Apple"}}})
	})
	mux.HandleFunc("POST /api/watchlist", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":   true,
			"watchlist": model.Watchlist{"AAPL": {"Apple"}, "NVDA": {"NVIDIA"}},
		})
	})
	mux.HandleFunc("GET /api/stock/{symbol}/details", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(model.StockDetails{Symbol: r.PathValue("symbol"), Price: 190})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestRouter(t *testing.T) (http.Handler, *settings.Sync) {
	t.Helper()
	be := newFakeBackend(t)
	client := backend.New(backend.Config{BaseURL: be.URL}, httpx.New(2*time.Second), zerolog.Nop())
	sync := settings.New(client, zerolog.Nop(), nil)
	require.NoError(t, sync.Load(context.Background()))
	return newRouter(panels.NewStore(), sync, client, metrics.New()), sync
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestSettingsSaveFlow(t *testing.T) {
	router, sync := newTestRouter(t)

	// Saving a clean document is a no-op that stays clean.
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/settings/save", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, settings.Clean, sync.State())

	// Edit, then save.
	body, _ := json.Marshal(model.Thresholds{VolumeSpike: 5, MinArticles: 2})
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/settings/thresholds", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, settings.Dirty, sync.State())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/settings/save", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, settings.Clean, sync.State())
}

func TestWatchlistAdd(t *testing.T) {
	router, sync := newTestRouter(t)

	body := []byte(`{"action": "add", "ticker": "NVDA", "names": ["NVIDIA"]}`)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/watchlist", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	wl := sync.Document().Watchlist
	assert.Equal(t, []string{"NVIDIA"}, wl["NVDA"], "local watchlist must be replaced from the server response")
	assert.Equal(t, []string{"Apple"}, wl["AAPL"])
}

func TestWatchlistBadAction(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/watchlist", bytes.NewReader([]byte(`{"action": "rename"}`))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStockDetails(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/stock/AAPL", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var details model.StockDetails
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &details))
	assert.Equal(t, "AAPL", details.Symbol)
	assert.Equal(t, 190.0, details.Price)
}
