package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/surveillance-api/internal/handler"
	bookmarkHandler "github.com/jwalitptl/surveillance-api/internal/handler/bookmark"
	"github.com/jwalitptl/surveillance-api/internal/middleware"
	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/internal/repository/memory"
	"github.com/jwalitptl/surveillance-api/internal/router"
	"github.com/jwalitptl/surveillance-api/internal/service/bookmark"
	"github.com/jwalitptl/surveillance-api/pkg/metrics"
)

// APIResponse represents the API response structure
type APIResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type downStore struct {
	repository.KeyValueStore
}

func (downStore) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRouter(t *testing.T, kv repository.KeyValueStore, cfg router.RouterConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	cfg.Registerer = registry
	if cfg.CORSConfig.AllowOrigins == nil {
		cfg.CORSConfig = middleware.DefaultCORSConfig()
	}

	m := metrics.New("bookmarks", registry)
	sessions := bookmark.NewSessions(0, 0, func() *bookmark.Store {
		return bookmark.NewStore(kv, bookmark.Options{Metrics: m})
	}, m)

	r := router.NewRouter(cfg,
		handler.NewHandler(kv, registry),
		bookmarkHandler.NewHandler(sessions),
	)
	r.Setup()
	return r.Engine()
}

func makeRequest(engine *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestSavedFilterFlow(t *testing.T) {
	engine := newTestRouter(t, memory.NewKeyValueStore(), router.RouterConfig{})
	session := map[string]string{middleware.HeaderXSessionID: "dashboard-1"}

	createResp := makeRequest(engine, http.MethodPost, "/reports/weekly/filters", map[string]interface{}{
		"name":    "Under fives",
		"filters": map[string]string{"age": "0-4"},
	}, session)
	require.Equal(t, http.StatusCreated, createResp.Code, createResp.Body.String())
	assert.Equal(t, "1.0", createResp.Header().Get("X-API-Version"))
	assert.NotEmpty(t, createResp.Header().Get(middleware.HeaderXRequestID))
	assert.Equal(t, "no-store", createResp.Header().Get("Cache-Control"))

	var resp APIResponse
	require.NoError(t, json.Unmarshal(createResp.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	id, _ := created["id"].(string)
	require.True(t, strings.HasPrefix(id, "filter-"), id)

	listResp := makeRequest(engine, http.MethodGet, "/reports/weekly/filters", nil, session)
	require.Equal(t, http.StatusOK, listResp.Code)
	assert.Contains(t, listResp.Body.String(), id)

	deleteResp := makeRequest(engine, http.MethodDelete, "/filters/"+id, nil, session)
	assert.Equal(t, http.StatusOK, deleteResp.Code)

	getResp := makeRequest(engine, http.MethodGet, "/filters/"+id, nil, session)
	assert.Equal(t, http.StatusNotFound, getResp.Code)
}

func TestHealthEndpoints(t *testing.T) {
	engine := newTestRouter(t, memory.NewKeyValueStore(), router.RouterConfig{})

	w := makeRequest(engine, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = makeRequest(engine, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	makeRequest(engine, http.MethodGet, "/reports/weekly/filters", nil, nil)
	w = makeRequest(engine, http.MethodGet, "/health/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bookmarks_requests_total")
	assert.Contains(t, w.Body.String(), "bookmarks_filter_operations_total")
}

func TestReadinessReportsStorageDown(t *testing.T) {
	engine := newTestRouter(t, downStore{memory.NewKeyValueStore()}, router.RouterConfig{})

	w := makeRequest(engine, http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "DOWN")
}

func TestRateLimit(t *testing.T) {
	engine := newTestRouter(t, memory.NewKeyValueStore(), router.RouterConfig{
		RateLimitEnabled: true,
		RateLimit:        1,
		RateBurst:        2,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, makeRequest(engine, http.MethodGet, "/health/live", nil, nil).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORSPreflight(t *testing.T) {
	engine := newTestRouter(t, memory.NewKeyValueStore(), router.RouterConfig{})

	w := makeRequest(engine, http.MethodOptions, "/reports/weekly/filters", nil, map[string]string{
		"Origin": "https://dashboard.example.org",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://dashboard.example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), middleware.HeaderXSessionID)
}

func TestBodySizeLimit(t *testing.T) {
	engine := newTestRouter(t, memory.NewKeyValueStore(), router.RouterConfig{})

	big := map[string]interface{}{
		"name":    "big",
		"filters": map[string]string{"blob": strings.Repeat("x", 128<<10)},
	}
	w := makeRequest(engine, http.MethodPost, "/reports/weekly/filters", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
