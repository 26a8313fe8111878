package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/handler"
)

// Messages shown in place of the form.
const (
	msgInvalidID  = "Invalid tour ID"
	msgNotFound   = "Tour not found"
	msgLoadFailed = "Failed to load tour"
	msgSaveFailed = "Failed to save tour"
)

// tourForm holds the edit form fields as the browser submits them.
type tourForm struct {
	Name       string
	ArtistName string
	StartDate  string
	EndDate    string
	Notes      string
}

type editData struct {
	ID    int64
	Form  *tourForm
	Error string
}

type detailData struct {
	Tour   *domain.Tour
	Events []domain.Event
	Error  string
}

// handleDetail renders GET /tours/{id}.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseTourID(chi.URLParam(r, "id"))
	if err != nil {
		s.render(w, http.StatusBadRequest, "detail.html", detailData{Error: msgInvalidID})
		return
	}

	tour, err := s.tours.GetByID(r.Context(), id)
	if err != nil {
		status, msg := s.loadFailure(r, id, err)
		s.render(w, status, "detail.html", detailData{Error: msg})
		return
	}

	events, err := s.tours.Events(r.Context(), id)
	if err != nil {
		s.log.WarnContext(r.Context(), "load tour events", "tour_id", id, "error", err)
		events = nil
	}

	s.render(w, http.StatusOK, "detail.html", detailData{Tour: &tour, Events: events})
}

// handleEdit renders GET /tours/{id}/edit with the form pre-populated.
// An invalid id is reported without fetching anything.
func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseTourID(chi.URLParam(r, "id"))
	if err != nil {
		s.render(w, http.StatusBadRequest, "edit.html", editData{Error: msgInvalidID})
		return
	}

	tour, err := s.tours.GetByID(r.Context(), id)
	if err != nil {
		status, msg := s.loadFailure(r, id, err)
		s.render(w, status, "edit.html", editData{ID: id, Error: msg})
		return
	}

	s.render(w, http.StatusOK, "edit.html", editData{ID: id, Form: formFromTour(tour)})
}

// handleEditPost handles POST /tours/{id}/edit. Success redirects to the
// detail page with 303 See Other; invalid input re-renders the form.
func (s *Server) handleEditPost(w http.ResponseWriter, r *http.Request) {
	id, err := handler.ParseTourID(chi.URLParam(r, "id"))
	if err != nil {
		s.render(w, http.StatusBadRequest, "edit.html", editData{Error: msgInvalidID})
		return
	}

	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "edit.html", editData{ID: id, Error: "Could not read form"})
		return
	}
	form := &tourForm{
		Name:       r.PostForm.Get("name"),
		ArtistName: r.PostForm.Get("artist_name"),
		StartDate:  strings.TrimSpace(r.PostForm.Get("start_date")),
		EndDate:    strings.TrimSpace(r.PostForm.Get("end_date")),
		Notes:      r.PostForm.Get("notes"),
	}

	tour, err := form.toTour(id)
	if err != nil {
		s.render(w, http.StatusUnprocessableEntity, "edit.html", editData{ID: id, Form: form, Error: err.Error()})
		return
	}

	if _, err := s.tours.Update(r.Context(), tour); err != nil {
		switch {
		case errors.Is(err, domain.ErrValidation):
			msg := err.Error()
			if _, rest, ok := strings.Cut(msg, domain.ErrValidation.Error()+": "); ok {
				msg = rest
			}
			s.render(w, http.StatusUnprocessableEntity, "edit.html", editData{ID: id, Form: form, Error: msg})
		case errors.Is(err, domain.ErrNotFound):
			s.render(w, http.StatusNotFound, "edit.html", editData{ID: id, Error: msgNotFound})
		default:
			s.log.ErrorContext(r.Context(), "update tour", "tour_id", id, "error", err)
			s.render(w, http.StatusInternalServerError, "edit.html", editData{ID: id, Form: form, Error: msgSaveFailed})
		}
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/tours/%d", id), http.StatusSeeOther)
}

// loadFailure maps a fetch error to a status and the message to show.
func (s *Server) loadFailure(r *http.Request, id int64, err error) (int, string) {
	if errors.Is(err, domain.ErrNotFound) {
		return http.StatusNotFound, msgNotFound
	}
	s.log.ErrorContext(r.Context(), "load tour", "tour_id", id, "error", err)
	return http.StatusInternalServerError, msgLoadFailed
}

func formFromTour(t domain.Tour) *tourForm {
	return &tourForm{
		Name:       t.Name,
		ArtistName: t.ArtistName,
		StartDate:  tmplFormatDate(t.StartDate),
		EndDate:    tmplFormatDate(t.EndDate),
		Notes:      t.Notes,
	}
}

// toTour converts the submitted fields. Empty dates become nil.
func (f *tourForm) toTour(id int64) (domain.Tour, error) {
	start, err := parseFormDate("Start date", f.StartDate)
	if err != nil {
		return domain.Tour{}, err
	}
	end, err := parseFormDate("End date", f.EndDate)
	if err != nil {
		return domain.Tour{}, err
	}
	return domain.Tour{
		ID:         id,
		Name:       f.Name,
		ArtistName: f.ArtistName,
		StartDate:  start,
		EndDate:    end,
		Notes:      f.Notes,
	}, nil
}

func parseFormDate(label, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return nil, fmt.Errorf("%s must be a date in YYYY-MM-DD format", label)
	}
	return &t, nil
}
