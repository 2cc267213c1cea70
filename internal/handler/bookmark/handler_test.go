package bookmark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jwalitptl/surveillance-api/internal/middleware"
	"github.com/jwalitptl/surveillance-api/internal/repository"
	"github.com/jwalitptl/surveillance-api/internal/repository/memory"
	"github.com/jwalitptl/surveillance-api/internal/service/bookmark"
	"github.com/jwalitptl/surveillance-api/internal/service/export"
)

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type unavailableStore struct {
	repository.KeyValueStore
}

func (unavailableStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("redis get: %w", repository.ErrBackendUnavailable)
}

func setupRouter(kv repository.KeyValueStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	sessions := bookmark.NewSessions(0, 0, func() *bookmark.Store {
		return bookmark.NewStore(kv, bookmark.Options{})
	}, nil)

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.SessionID(),
		middleware.ErrorHandler(),
		middleware.Validation(middleware.DefaultValidationConfig()),
	)
	NewHandler(sessions).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, session string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(middleware.HeaderXSessionID, session)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) apiResponse {
	t.Helper()

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

func TestFilterFlow(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	// Save
	w := doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "s1", map[string]interface{}{
		"name":    "Q1",
		"filters": map[string]string{"region": "north"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var saved struct {
		ID           string            `json:"id"`
		Name         string            `json:"name"`
		ReportTypeID string            `json:"reportTypeId"`
		Filters      map[string]string `json:"filters"`
		CreatedAt    string            `json:"createdAt"`
	}
	resp := decode(t, w, &saved)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "Q1", saved.Name)
	assert.Equal(t, "weekly", saved.ReportTypeID)
	assert.Equal(t, map[string]string{"region": "north"}, saved.Filters)
	assert.NotEmpty(t, saved.CreatedAt)

	// List
	w = doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, saved.ID, list[0]["id"])

	w = doRequest(t, r, http.MethodGet, "/reports/monthly/filters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = nil
	decode(t, w, &list)
	assert.Empty(t, list)

	// Load from the view of the session that listed weekly
	w = doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doRequest(t, r, http.MethodGet, "/filters/"+saved.ID+"/parameters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var params struct {
		ID      string            `json:"id"`
		Filters map[string]string `json:"filters"`
	}
	decode(t, w, &params)
	assert.Equal(t, saved.ID, params.ID)
	assert.Equal(t, map[string]string{"region": "north"}, params.Filters)

	// Remove
	w = doRequest(t, r, http.MethodDelete, "/filters/"+saved.ID, "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodGet, "/filters/"+saved.ID, "s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	resp = decode(t, w, nil)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "saved filter not found", resp.Message)
}

func TestLoadFilterIsScopedToSession(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	w := doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "owner", map[string]interface{}{
		"name":    "shared",
		"filters": map[string]string{"age": "0-4"},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var saved struct {
		ID string `json:"id"`
	}
	decode(t, w, &saved)

	// Another session has not loaded weekly yet.
	w = doRequest(t, r, http.MethodGet, "/filters/"+saved.ID+"/parameters", "other", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var params struct {
		Filters map[string]string `json:"filters"`
	}
	decode(t, w, &params)
	assert.Empty(t, params.Filters)

	// Durable lookup still finds it.
	w = doRequest(t, r, http.MethodGet, "/filters/"+saved.ID, "other", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionIDIsIssued(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	w := doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderXSessionID))

	w = doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "abc", nil)
	assert.Equal(t, "abc", w.Header().Get(middleware.HeaderXSessionID))
}

func TestSaveFilterValidation(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	w := doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "s1", map[string]interface{}{
		"filters": map[string]string{"region": "north"},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Status string                       `json:"status"`
		Errors []middleware.ValidationError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "name", body.Errors[0].Field)
}

func TestSaveFilterMalformedBody(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports/weekly/filters", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "invalid request body", resp.Message)
}

func TestCorruptCollection(t *testing.T) {
	kv := memory.NewKeyValueStore()
	require.NoError(t, kv.Set(context.Background(), bookmark.DefaultStorageKey, []byte("not json")))
	r := setupRouter(kv)

	w := doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []interface{}
	decode(t, w, &list)
	assert.Empty(t, list)

	w = doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "s1", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(t, r, http.MethodDelete, "/filters", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "s1", map[string]interface{}{"name": "x"})
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBackendUnavailable(t *testing.T) {
	r := setupRouter(unavailableStore{memory.NewKeyValueStore()})

	w := doRequest(t, r, http.MethodGet, "/reports/weekly/filters", "s1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decode(t, w, nil)
	assert.Equal(t, "storage backend unavailable", resp.Message)
}

func TestExportFilters(t *testing.T) {
	r := setupRouter(memory.NewKeyValueStore())

	for _, name := range []string{"first", "second"} {
		w := doRequest(t, r, http.MethodPost, "/reports/weekly/filters", "s1", map[string]interface{}{
			"name":    name,
			"filters": map[string]string{"region": name},
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, r, http.MethodGet, "/reports/weekly/filters/export", "s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), export.Filename("weekly"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}
