package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/duynguyendang/blockbaker/internal/manager"
	"github.com/duynguyendang/blockbaker/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mgr, err := manager.NewLibraryManager(manager.Options{BaseDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(mgr.CloseAll)
	return NewServer(service.NewCatalogService(mgr, nil), nil)
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func seed(t *testing.T, srv *Server) {
	t.Helper()
	for _, body := range []string{
		`{"path": "stairs"}`,
		`{"path": "stairs/wooden"}`,
		`{"path": "material", "values": ["wood", "stone"]}`,
	} {
		w := do(t, srv, http.MethodPost, "/v1/tags?project=p", body)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	for _, body := range []string{
		`{"blocks": ["oak_stairs"], "add": ["stairs/wooden", "material:wood"]}`,
		`{"blocks": ["stone_stairs"], "add": ["stairs", "material:stone"]}`,
	} {
		w := do(t, srv, http.MethodPost, "/v1/blocks?project=p", body)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	srv := setupTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := setupTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}

func TestQuery(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	w := do(t, srv, http.MethodPost, "/v1/query?project=p", `{"query": "stairs - material:wood"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.QueryResult
	decode(t, w, &res)
	assert.Equal(t, []string{"minecraft:stone_stairs"}, res.Blocks)
	assert.Equal(t, "(stairs - material:wood)", res.Parsed)
}

func TestQueryErrors(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	tests := []struct {
		name   string
		target string
		body   string
		code   int
	}{
		{"bad body", "/v1/query?project=p", `{`, http.StatusBadRequest},
		{"missing project", "/v1/query", `{"query": "stairs"}`, http.StatusBadRequest},
		{"unknown project", "/v1/query?project=nope", `{"query": "stairs"}`, http.StatusNotFound},
		{"bad expression", "/v1/query?project=p", `{"query": "stairs &"}`, http.StatusBadRequest},
		{"unknown tag", "/v1/query?project=p", `{"query": "glass"}`, http.StatusNotFound},
		{"unknown value", "/v1/query?project=p", `{"query": "material:glass"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
			var body map[string]any
			decode(t, w, &body)
			assert.Contains(t, body, "error")
		})
	}
}

func TestTags(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	w := do(t, srv, http.MethodGet, "/v1/tags?project=p&glob=stairs/*", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Tags []service.TagSummary `json:"tags"`
	}
	decode(t, w, &list)
	assert.Contains(t, list.Tags, service.TagSummary{Path: "stairs/wooden", Kind: "bool"})
	assert.NotContains(t, list.Tags, service.TagSummary{Path: "stairs", Kind: "bool"})

	w = do(t, srv, http.MethodGet, "/v1/tag?project=p&path=material", "")
	require.Equal(t, http.StatusOK, w.Code)
	var info service.TagInfo
	decode(t, w, &info)
	assert.Equal(t, []string{"minecraft:oak_stairs"}, info.Values["wood"])

	w = do(t, srv, http.MethodPost, "/v1/tags?project=p", `{"path": "stairs"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/v1/tags?project=p", `{"values": ["a"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, srv, http.MethodPatch, "/v1/tag?project=p&path=material", `{"add": ["glass"], "remove": ["stone"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &info)
	assert.Contains(t, info.Values, "glass")
	assert.NotContains(t, info.Values, "stone")

	w = do(t, srv, http.MethodPatch, "/v1/tag?project=p&path=stairs", `{"add": ["x"]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, srv, http.MethodDelete, "/v1/tag?project=p&path=stairs", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, srv, http.MethodGet, "/v1/tag?project=p&path=stairs/wooden", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, srv, http.MethodGet, "/v1/tag?project=p", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTagBlocksErrors(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"no blocks", `{"blocks": [], "add": ["stairs"]}`, http.StatusBadRequest},
		{"malformed block", `{"blocks": ["a:b:c:d"], "add": ["stairs"]}`, http.StatusBadRequest},
		{"value on bool tag", `{"blocks": ["glass"], "add": ["stairs:top"]}`, http.StatusBadRequest},
		{"virtual tag", `{"blocks": ["glass"], "add": ["slab/top"]}`, http.StatusUnprocessableEntity},
		{"unknown value", `{"blocks": ["glass"], "add": ["material:glass"]}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/v1/blocks?project=p", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
}

func TestBake(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	w := do(t, srv, http.MethodPost, "/v1/bake?project=p",
		`{"flags": [{"name": "all", "expression": "stairs"}, {"name": "wooden", "expression": "material:wood"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res service.BakeResult
	decode(t, w, &res)
	assert.Len(t, res.Masks, 2)
	assert.Len(t, res.Decoders["all"], 2)
	assert.Len(t, res.Decoders["wooden"], 1)

	w = do(t, srv, http.MethodPost, "/v1/bake?project=p", `{"flags": []}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, srv, http.MethodPost, "/v1/bake?project=p", `{"flags": [{"name": "x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectsAndVerify(t *testing.T) {
	srv := setupTestServer(t)
	seed(t, srv)

	w := do(t, srv, http.MethodGet, "/v1/projects", "")
	require.Equal(t, http.StatusOK, w.Code)
	var projects []manager.ProjectMetadata
	decode(t, w, &projects)
	assert.Equal(t, []manager.ProjectMetadata{{ID: "p", Name: "p"}}, projects)

	w = do(t, srv, http.MethodGet, "/v1/verify?project=p", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Violations []string `json:"violations"`
	}
	decode(t, w, &body)
	assert.Empty(t, body.Violations)
}

func TestMetrics(t *testing.T) {
	srv := setupTestServer(t)
	do(t, srv, http.MethodGet, "/health", "")

	w := do(t, srv, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "blockbaker_http_requests_total")
}
