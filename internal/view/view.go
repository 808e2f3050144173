// Package view renders the console's HTML pages from embedded templates.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mehmetcc/polyconsole/internal/session"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	layoutFile = "templates/layout.html"
	formsFile  = "templates/forms.html"
)

// Page is the data every template receives.
type Page struct {
	Title    string
	Identity *session.Identity
	// Error is shown as a banner above the content.
	Error  string
	Notice string
	// Fields holds inline messages keyed by form field name.
	Fields map[string]string
	Form   any
	Data   any
}

// Registrar reports whether the create, edit and delete forms are shown.
func (p Page) Registrar() bool {
	return p.Identity != nil && p.Identity.Role.CanManageRecords()
}

func (p Page) ShowSchedules() bool {
	return p.Identity != nil && p.Identity.Role.CanViewSchedules()
}

func (p Page) FieldError(name string) string { return p.Fields[name] }

type Renderer struct {
	pages  map[string]*template.Template
	logger *zap.Logger
}

var funcs = template.FuncMap{
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return humanize.Time(t)
	},
	"yesno": func(b bool) string {
		if b {
			return "yes"
		}
		return "no"
	},
	"selected": func(list []string, v string) bool {
		for _, s := range list {
			if s == v {
				return true
			}
		}
		return false
	},
}

// Weekdays are the values the schedule form offers. They are the tokens the
// backend already stores in schedule records, Monday first.
var Weekdays = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// New parses every page against the shared layout.
func New(logger *zap.Logger) (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template), logger: logger}
	for _, name := range names {
		if name == layoutFile || name == formsFile {
			continue
		}
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, layoutFile, formsFile, name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		page := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		r.pages[page] = t
	}
	return r, nil
}

// Render writes page with status. Template failures become a bare 500; the
// buffer keeps a half-rendered page from reaching the browser.
func (r *Renderer) Render(w http.ResponseWriter, status int, page string, data Page) {
	t, ok := r.pages[page]
	if !ok {
		r.logger.Error("unknown page", zap.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if data.Form == nil {
		data.Form = struct{}{}
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		r.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
