package main

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/mcclellann/staffLoan/pkg/auth"
	"github.com/shopspring/decimal"
)

//go:embed templates
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"date":  func(t time.Time) string { return t.Format("2006-01-02") },
}

// views holds one parsed template set per page, each combined with the layout.
type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	names, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		v.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return v, nil
}

// page is the data every template receives.
type page struct {
	Title   string
	IsAdmin bool
	IsStaff bool
	User    auth.Principal
	Flashes []Flash
	Data    any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name, title string, data any) {
	t, ok := s.views.pages[name]
	if !ok {
		serverError(w, r, fmt.Errorf("unknown template %q", name))
		return
	}

	p := principalFrom(r)
	_, isAdmin := p.(auth.AdminPrincipal)
	_, isStaff := p.(auth.StaffPrincipal)
	pg := page{
		Title:   title,
		IsAdmin: isAdmin,
		IsStaff: isStaff,
		User:    p,
		Flashes: pendingFlashes(r),
		Data:    data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", pg); err != nil {
		keepFlashes(w, r)
		serverError(w, r, err)
		return
	}
	consumeFlashes(w, r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}
