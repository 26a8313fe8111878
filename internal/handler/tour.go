package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/pkordes/tour-manager/internal/domain"
)

// Tour is the JSON representation of a tour.
type Tour struct {
	ID         int64               `json:"id"`
	Name       string              `json:"name"`
	ArtistName *string             `json:"artist_name,omitempty"`
	StartDate  *openapi_types.Date `json:"start_date,omitempty"`
	EndDate    *openapi_types.Date `json:"end_date,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// TourRequest is the body of POST /api/tours and PUT /api/tours/{id}.
type TourRequest struct {
	Name       string              `json:"name"`
	ArtistName *string             `json:"artist_name,omitempty"`
	StartDate  *openapi_types.Date `json:"start_date,omitempty"`
	EndDate    *openapi_types.Date `json:"end_date,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
}

// TourList is one page of tours.
type TourList struct {
	Data       []Tour     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// Pagination describes the page returned and the total across all pages.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// Event is the JSON representation of a tour event.
type Event struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	TourID     *int64    `json:"tour_id,omitempty"`
	ArtistName string    `json:"artist_name"`
	VenueName  string    `json:"venue_name"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	StartsAt   time.Time `json:"starts_at"`
	URL        string    `json:"url,omitempty"`
	Status     string    `json:"status"`
}

// CreateTour handles POST /api/tours.
func (s *Server) CreateTour(w http.ResponseWriter, r *http.Request) {
	tour, err := decodeTour(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
		return
	}

	created, err := s.tours.Create(r.Context(), tour)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			validation(w, err)
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tourToResponse(created))
}

// ListTours handles GET /api/tours.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListTours(w http.ResponseWriter, r *http.Request) {
	var page, limit *int
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "page must be an integer")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "limit must be an integer")
		return
	}

	params := domain.NewPaginationParams(page, limit)
	tours, total, err := s.tours.ListPaged(r.Context(), params)
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	data := make([]Tour, len(tours))
	for i, t := range tours {
		data[i] = tourToResponse(t)
	}
	writeJSON(w, http.StatusOK, TourList{
		Data: data,
		Pagination: Pagination{
			Page:  params.Page,
			Limit: params.Limit,
			Total: int(total),
		},
	})
}

// GetTour handles GET /api/tours/{id}.
func (s *Server) GetTour(w http.ResponseWriter, r *http.Request) {
	id, ok := tourID(w, r)
	if !ok {
		return
	}

	tour, err := s.tours.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "tour not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tourToResponse(tour))
}

// UpdateTour handles PUT /api/tours/{id}.
func (s *Server) UpdateTour(w http.ResponseWriter, r *http.Request) {
	id, ok := tourID(w, r)
	if !ok {
		return
	}
	tour, err := decodeTour(r)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, codeValidation, err.Error())
		return
	}
	tour.ID = id

	updated, err := s.tours.Update(r.Context(), tour)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "tour not found")
			return
		}
		if errors.Is(err, domain.ErrValidation) {
			validation(w, err)
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tourToResponse(updated))
}

// DeleteTour handles DELETE /api/tours/{id}.
func (s *Server) DeleteTour(w http.ResponseWriter, r *http.Request) {
	id, ok := tourID(w, r)
	if !ok {
		return
	}

	if err := s.tours.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "tour not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListTourEvents handles GET /api/tours/{id}/events.
func (s *Server) ListTourEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := tourID(w, r)
	if !ok {
		return
	}

	events, err := s.tours.Events(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w, "tour not found")
			return
		}
		s.internalError(w, r, err)
		return
	}

	data := make([]Event, len(events))
	for i, e := range events {
		data[i] = eventToResponse(e)
	}
	writeJSON(w, http.StatusOK, map[string][]Event{"data": data})
}

// --- mapping helpers --------------------------------------------------------

// ParseTourID parses a path id. Only positive integers are valid.
func ParseTourID(raw string) (int64, error) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", raw, &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		return 0, err
	}
	if id < 1 {
		return 0, fmt.Errorf("id must be positive, got %d", id)
	}
	return id, nil
}

// tourID reads {id} from the route, writing a 400 when it is not valid.
func tourID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := ParseTourID(chi.URLParam(r, "id"))
	if err != nil {
		invalidID(w)
		return 0, false
	}
	return id, true
}

// decodeTour reads a TourRequest body into a domain.Tour.
// Returns an error if the body is missing or malformed, including bad dates.
func decodeTour(r *http.Request) (domain.Tour, error) {
	if r.Body == nil || r.ContentLength == 0 {
		return domain.Tour{}, errors.New("request body is required")
	}
	var body TourRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		return domain.Tour{}, fmt.Errorf("invalid request body: %v", err)
	}

	t := domain.Tour{Name: body.Name}
	if body.ArtistName != nil {
		t.ArtistName = *body.ArtistName
	}
	if body.StartDate != nil {
		sd := body.StartDate.Time
		t.StartDate = &sd
	}
	if body.EndDate != nil {
		ed := body.EndDate.Time
		t.EndDate = &ed
	}
	if body.Notes != nil {
		t.Notes = *body.Notes
	}
	return t, nil
}

// tourToResponse converts a domain.Tour into its JSON representation.
func tourToResponse(t domain.Tour) Tour {
	resp := Tour{
		ID:        t.ID,
		Name:      t.Name,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.ArtistName != "" {
		resp.ArtistName = &t.ArtistName
	}
	if t.Notes != "" {
		resp.Notes = &t.Notes
	}
	if t.StartDate != nil {
		resp.StartDate = &openapi_types.Date{Time: *t.StartDate}
	}
	if t.EndDate != nil {
		resp.EndDate = &openapi_types.Date{Time: *t.EndDate}
	}
	return resp
}

func eventToResponse(e domain.Event) Event {
	return Event{
		ID:         e.ID,
		ExternalID: e.ExternalID,
		TourID:     e.TourID,
		ArtistName: e.ArtistName,
		VenueName:  e.VenueName,
		City:       e.City,
		Country:    e.Country,
		StartsAt:   e.StartsAt,
		URL:        e.URL,
		Status:     string(e.Status),
	}
}
