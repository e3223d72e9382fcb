package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/research-portal/research-portal/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// markdown renders project content. Raw HTML in the source is escaped.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
)

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		slog.Warn("markdown conversion failed", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(src) + "</p>")
	}
	return template.HTML(buf.String()) // #nosec G203 -- goldmark escapes raw HTML without WithUnsafe
}

// safeURL lets http(s) and mailto links through and blanks anything else.
func safeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "http", "https", "mailto":
		return u.String()
	case "":
		if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
			return u.String()
		}
	}
	return ""
}

var funcMap = template.FuncMap{
	"markdown": renderMarkdown,
	"safeURL":  safeURL,
	"date": func(d models.Date) string {
		return d.String()
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04")
	},
	"join": strings.Join,
	"lines": func(items []string) string {
		return strings.Join(items, "\n")
	},
	"first": func(n int, items []string) []string {
		if len(items) > n {
			return items[:n]
		}
		return items
	},
	"contains": func(items []string, v string) bool {
		for _, it := range items {
			if it == v {
				return true
			}
		}
		return false
	},
	"initial": func(name string) string {
		for _, r := range name {
			return strings.ToUpper(string(r))
		}
		return "?"
	},
	"mailto": func(email string) string {
		return "mailto:" + email
	},
	"str": func(v any) string {
		return fmt.Sprint(v)
	},
	// dict passes several values to a sub-template: {{template "x" dict "L" $.L "V" .}}
	"dict": func(kv ...any) (map[string]any, error) {
		if len(kv)%2 != 0 {
			return nil, fmt.Errorf("dict: odd number of arguments")
		}
		m := make(map[string]any, len(kv)/2)
		for i := 0; i < len(kv); i += 2 {
			k, ok := kv[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
			}
			m[k] = kv[i+1]
		}
		return m, nil
	},
}

// Renderer holds one template set per page, each with the shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return newRenderer(templateFS)
}

func newRenderer(fsys fs.FS) (*Renderer, error) {
	layout, err := template.New("layout").Funcs(funcMap).ParseFS(fsys, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, f := range files {
		name := strings.TrimSuffix(path.Base(f), ".html")
		if name == "layout" {
			continue
		}
		t, err := template.Must(layout.Clone()).ParseFS(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes page with data through gin's renderer.
func (r *Renderer) Render(c *gin.Context, status int, page string, data gin.H) {
	t, ok := r.pages[page]
	if !ok {
		slog.ErrorContext(c.Request.Context(), "unknown template", "page", page)
		c.String(http.StatusInternalServerError, "template %q not found", page)
		return
	}
	c.Render(status, render.HTML{Template: t, Name: "layout", Data: data})
}
