package swagger

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Title != "Guest Risk API" {
		t.Errorf("Title = %q", cfg.Title)
	}
	if cfg.BasePath != "/docs" {
		t.Errorf("BasePath = %q, want /docs", cfg.BasePath)
	}
	if cfg.SpecPath != "/openapi.json" {
		t.Errorf("SpecPath = %q, want /openapi.json", cfg.SpecPath)
	}
}

func TestHandler_UI(t *testing.T) {
	handler := NewHandler(nil, []byte(`{"openapi":"3.0.3"}`))

	for _, path := range []string{"/docs", "/docs/", "/docs/index.html"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %s", ct)
			}
			if !strings.Contains(w.Body.String(), "openapi.json") {
				t.Error("UI should point at openapi.json under the base path")
			}
		})
	}
}

func TestHandler_Spec(t *testing.T) {
	spec := []byte(`{"openapi":"3.0.3","info":{"title":"Test"}}`)
	handler := NewHandler(nil, spec)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %s", ct)
	}
	if w.Body.String() != string(spec) {
		t.Error("response should match spec")
	}
	if w.Header().Get("ETag") == "" {
		t.Error("ETag header should be set")
	}
}

func specETag(h *Handler) string {
	return h.pages["openapi.json"].etag
}

func TestHandler_ETag(t *testing.T) {
	spec := []byte(`{"openapi":"3.0.3"}`)

	first := NewHandler(nil, spec)
	second := NewHandler(nil, spec)
	if specETag(first) != specETag(second) {
		t.Error("ETag should depend only on content")
	}
	if other := NewHandler(nil, []byte(`{}`)); specETag(other) == specETag(first) {
		t.Error("different documents should have different ETags")
	}

	req := httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil)
	req.Header.Set("If-None-Match", specETag(first))
	w := httptest.NewRecorder()
	first.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotModified)
	}
}

func TestHandler_NotFoundAndMethod(t *testing.T) {
	handler := NewHandler(nil, []byte(`{}`))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/docs/swagger.yaml", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/docs/openapi.json", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandler_CustomConfig(t *testing.T) {
	cfg := &Config{
		Title:        "Custom API",
		BasePath:     "/api-docs",
		SpecPath:     "/spec.json",
		DocExpansion: "none",
	}
	handler := NewHandler(cfg, []byte(`{}`))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs/", nil))
	if !strings.Contains(w.Body.String(), "Custom API") {
		t.Error("response should contain custom title")
	}
	if !strings.Contains(w.Body.String(), `"none"`) {
		t.Error("doc expansion should be rendered")
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api-docs/spec.json", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
