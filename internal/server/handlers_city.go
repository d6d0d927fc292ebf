package server

import (
	"net/http"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
)

// handleListCities lists cities. By default only active cities are
// returned; ?active=false returns all.
func (s *Server) handleListCities(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") != "false"

	cities, err := s.store.ListCities(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cities)
}

func (s *Server) handleGetCity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	city, err := s.store.GetCity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, city)
}

func (s *Server) handleCreateCity(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.RequireAdmin(actor); err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.CityPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	city, err := s.store.CreateCity(r.Context(), payload.Name, models.BoolOrDefault(payload.Active, true))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, city)
}

func (s *Server) handleUpdateCity(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.RequireAdmin(actor); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.CityPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	city, err := s.store.UpdateCity(r.Context(), id, payload.Name, models.BoolOrDefault(payload.Active, true))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, city)
}

func (s *Server) handleDeleteCity(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.RequireAdmin(actor); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.DeleteCity(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "City deleted successfully"})
}
