package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/portfolio-analyzer/internal/clients/yahoo"
	"github.com/openfolio/portfolio-analyzer/internal/database"
	"github.com/openfolio/portfolio-analyzer/internal/history"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := zerolog.Nop()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	client := yahoo.NewClient(log)
	native := yahoo.NewNativeClient(log)
	store, err := history.NewStore(history.DefaultMethods(native, client), history.Options{
		CacheDir: t.TempDir(),
	}, log)
	require.NoError(t, err)

	return New(Config{
		Log:          log,
		DB:           db,
		Histories:    store,
		Sectors:      client,
		MarketSymbol: "^GSPC",
		Port:         0,
		DevMode:      true,
	})
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_Welcome(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Welcome to the Investment Portfolio Analyzer API", resp["message"])
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestServer_PortfolioLifecycle(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/v1/portfolios", `{"name":"Retirement","description":"Long term"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id, ok := created["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/portfolios", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var listed []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "Retirement", listed[0]["name"])

	rec = doRequest(t, srv, http.MethodDelete, "/api/v1/portfolios/"+id, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/v1/portfolios/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_UnknownPortfolioRiskRoutes(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/portfolios/nope/risk/var", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_LearnContent(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/learn/etfs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "categories")
}

func TestServer_CacheStats(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/cache/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 0.0, stats["total_cached_entries"])
}

func TestServer_InvalidMarketPeriod(t *testing.T) {
	srv := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/market/AAPL/history?period=7w", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
