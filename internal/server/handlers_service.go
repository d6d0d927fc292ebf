package server

import (
	"encoding/json"
	"net/http"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
)

// Service handlers mirror the product handlers with the extra
// estimated_time field.

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	cityID := queryCityID(r)
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	key := s.catalog.Key(r.Context(), "services", cityID, skip, limit)
	if body, ok := s.catalog.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	services, err := s.store.ListServices(r.Context(), cityID, skip, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if body, err := json.Marshal(services); err == nil {
		s.catalog.Set(r.Context(), key, body)
	}
	s.writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	service, err := s.store.GetService(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, service)
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.ServicePayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, payload.CityID, "Not enough permissions for this city"); err != nil {
		s.writeError(w, err)
		return
	}

	service := &models.Service{
		Name:          payload.Name,
		Description:   payload.Description,
		Price:         payload.Price,
		EstimatedTime: payload.EstimatedTime,
		IsAvailable:   models.BoolOrDefault(payload.IsAvailable, true),
		CityID:        payload.CityID,
	}

	created, err := s.store.CreateService(r.Context(), service)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	existing, err := s.store.GetService(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.ServicePayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, existing.CityID, "Not enough permissions for this service"); err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.CanAccessScope(actor, payload.CityID, "Cannot assign service to another city"); err != nil {
		s.writeError(w, err)
		return
	}

	service := &models.Service{
		ID:            id,
		Name:          payload.Name,
		Description:   payload.Description,
		Price:         payload.Price,
		EstimatedTime: payload.EstimatedTime,
		IsAvailable:   models.BoolOrDefault(payload.IsAvailable, true),
		CityID:        payload.CityID,
	}

	updated, err := s.store.UpdateService(r.Context(), service)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	existing, err := s.store.GetService(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, existing.CityID, "Not enough permissions for this service"); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.DeleteService(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "Service deleted successfully"})
}
