package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func named(name string) HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(name))
	}
}

func serve(r *Router, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRouting(t *testing.T) {
	r := New(nil)
	r.GET("/api/v1/extractions", named("list"))
	r.POST("/api/v1/extractions", named("create"))
	r.GET("/api/v1/extractions/*/errors", named("errors"))
	r.POST("/api/v1/extractions/*/retry", named("retry"))
	r.GET("/api/v1/extractions/*", named("get"))
	r.DELETE("/api/v1/extractions/*", named("delete"))
	r.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("metrics"))
	}))

	tests := []struct {
		method, path string
		status       int
		body         string
	}{
		{http.MethodGet, "/api/v1/extractions", http.StatusOK, "list"},
		{http.MethodPost, "/api/v1/extractions", http.StatusOK, "create"},
		{http.MethodGet, "/api/v1/extractions/abc/errors", http.StatusOK, "errors"},
		{http.MethodPost, "/api/v1/extractions/abc/retry", http.StatusOK, "retry"},
		{http.MethodGet, "/api/v1/extractions/abc", http.StatusOK, "get"},
		{http.MethodDelete, "/api/v1/extractions/abc", http.StatusOK, "delete"},
		{http.MethodGet, "/metrics", http.StatusOK, "metrics"},
		{http.MethodPut, "/api/v1/extractions", http.StatusMethodNotAllowed, ""},
		{http.MethodPut, "/api/v1/extractions/abc", http.StatusMethodNotAllowed, ""},
		{http.MethodGet, "/api/v2/extractions", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path)
			assert.Equal(t, tt.status, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestRegisteredRoutes(t *testing.T) {
	r := New(nil)
	r.PUT("/api/v1/extractions/*", named("put"))
	r.PATCH("/api/v1/extractions/*", named("patch"))
	r.GET("/healthz", named("ok"))

	assert.Len(t, r.Routes(), 3)
	assert.Contains(t, r.Routes(), "PATCH:/api/v1/extractions/*")
	assert.True(t, r.Paths()["/healthz"])
	assert.Equal(t, "patch", serve(r, http.MethodPatch, "/api/v1/extractions/abc").Body.String())
	assert.Equal(t, "put", serve(r, http.MethodPut, "/api/v1/extractions/abc").Body.String())
}

func TestMatchWildcardRoute(t *testing.T) {
	assert.True(t, matchWildcardRoute("/a/b/c", "/a/*/c"))
	assert.False(t, matchWildcardRoute("/a/b/d", "/a/*/c"))
	assert.True(t, matchWildcardRoute("/a/b/c/d", "/a/*"))
	assert.False(t, matchWildcardRoute("/a", "/a/*"))
	assert.False(t, matchWildcardRoute("/a/", "/a/*"))
}

func TestCORSPreflight(t *testing.T) {
	r := New(nil)
	r.POST("/api/v1/extractions", named("create"))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/extractions", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
