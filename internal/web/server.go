// Package web provides the server-rendered tour pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/tour-manager/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// dateLayout is the value format of <input type="date">.
const dateLayout = "2006-01-02"

// TourStore is what the pages need from the tour service.
type TourStore interface {
	GetByID(ctx context.Context, id int64) (domain.Tour, error)
	Update(ctx context.Context, tour domain.Tour) (domain.Tour, error)
	Events(ctx context.Context, id int64) ([]domain.Event, error)
}

// Server renders the tour detail and edit pages.
type Server struct {
	tours     TourStore
	templates *template.Template
	log       *slog.Logger
}

// NewServer parses the embedded templates.
func NewServer(tours TourStore, log *slog.Logger) (*Server, error) {
	funcMap := template.FuncMap{
		"formatDate":     tmplFormatDate,
		"formatDateTime": tmplFormatDateTime,
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Server{tours: tours, templates: tmpl, log: log}, nil
}

// Register mounts the page routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/tours/{id}", s.handleDetail)
	r.Get("/tours/{id}/edit", s.handleEdit)
	r.Post("/tours/{id}/edit", s.handleEditPost)
}

// render executes a full page template. Output is buffered so a template
// error still produces a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.Error("render template", "template", name, "error", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// Template helper functions

func tmplFormatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func tmplFormatDateTime(t time.Time) string {
	return t.Format("Mon, 2 Jan 2006 15:04")
}
