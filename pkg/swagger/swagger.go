// Package swagger отдаёт Swagger UI и OpenAPI документ JSON API.
package swagger

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"net/http"
	"strings"

	"guestrisk/pkg/logger"
)

// Config конфигурация Swagger UI
type Config struct {
	Title        string
	BasePath     string // префикс, на котором смонтирован Handler
	SpecPath     string // путь документа относительно BasePath
	DocExpansion string // list, full или none
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Title:        "Guest Risk API",
		BasePath:     "/docs",
		SpecPath:     "/openapi.json",
		DocExpansion: "list",
	}
}

// page статический ответ, собранный один раз при создании Handler
type page struct {
	body         []byte
	contentType  string
	cacheControl string
	etag         string
}

func newPage(body []byte, contentType, cacheControl string) page {
	sum := sha256.Sum256(body)
	return page{
		body:         body,
		contentType:  contentType,
		cacheControl: cacheControl,
		etag:         `"` + hex.EncodeToString(sum[:8]) + `"`,
	}
}

// Handler HTTP handler для Swagger UI, монтируется на BasePath.
// Отдаёт ровно две страницы: UI и документ.
type Handler struct {
	basePath string
	pages    map[string]page
}

// NewHandler рендерит UI и индексирует документ.
// ETag зависит только от содержимого и не меняется между рестартами.
func NewHandler(cfg *Config, spec []byte) *Handler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	specName := strings.TrimPrefix(cfg.SpecPath, "/")

	h := &Handler{
		basePath: cfg.BasePath,
		pages: map[string]page{
			specName: newPage(spec, "application/json; charset=utf-8", "public, max-age=3600"),
		},
	}

	var buf bytes.Buffer
	err := uiTemplate.Execute(&buf, struct{ Title, SpecURL, DocExpansion string }{
		Title:        cfg.Title,
		SpecURL:      cfg.BasePath + "/" + specName,
		DocExpansion: cfg.DocExpansion,
	})
	if err != nil {
		// UI недоступен, документ продолжаем отдавать
		logger.Log.Error("Failed to render swagger UI", "error", err)
		return h
	}
	ui := newPage(buf.Bytes(), "text/html; charset=utf-8", "no-cache")
	h.pages[""] = ui
	h.pages["index.html"] = ui

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, h.basePath), "/")
	p, ok := h.pages[name]
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("ETag", p.etag)
	if r.Header.Get("If-None-Match") == p.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", p.contentType)
	w.Header().Set("Cache-Control", p.cacheControl)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(p.body); err != nil {
		logger.Log.Debug("Failed to write docs page", "path", r.URL.Path, "error", err)
	}
}

var uiTemplate = template.Must(template.New("swagger-ui").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: "{{.SpecURL}}",
      dom_id: "#swagger-ui",
      deepLinking: true,
      docExpansion: "{{.DocExpansion}}",
      presets: [SwaggerUIBundle.presets.apis]
    });
  </script>
</body>
</html>`))
