package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// handleCreateRequest is the public customer-facing entry point. The
// response returns as soon as the row is persisted; notification
// dispatch is enqueued fire-and-forget afterwards.
func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var payload models.RequestPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	// Referential integrity before insert
	if _, err := s.store.GetCity(r.Context(), payload.CityID); err != nil {
		s.writeError(w, err)
		return
	}
	if payload.ServiceID != nil {
		if _, err := s.store.GetService(r.Context(), *payload.ServiceID); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if payload.ProductID != nil {
		if _, err := s.store.GetProduct(r.Context(), *payload.ProductID); err != nil {
			s.writeError(w, err)
			return
		}
	}

	request := &models.Request{
		Name:      payload.Name,
		Phone:     payload.Phone,
		Email:     payload.Email,
		CityID:    payload.CityID,
		Message:   payload.Message,
		ServiceID: payload.ServiceID,
		ProductID: payload.ProductID,
	}

	created, err := s.store.CreateRequest(r.Context(), request)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, created)

	// Scheduled after the response; the caller never observes delivery
	s.queue.Enqueue(created.ID)
}

// handleListRequests lists requests newest first. Managers are always
// restricted to their own city regardless of the requested filter.
func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	cityID := queryCityID(r)
	if !actor.IsAdmin() {
		cityID = &actor.CityID
	}

	var status *models.RequestStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.RequestStatus(v)
		status = &st
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	requests, err := s.store.ListRequests(r.Context(), cityID, status, skip, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, requests)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
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

	request, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessCity(actor, request.CityID, "Not enough permissions to view this request"); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, request)
}

// handleUpdateRequestStatus validates the new status against the
// allowed set only; transition order is deliberately unrestricted.
func (s *Server) handleUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.store.GetRequest(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessCity(actor, existing.CityID, "Not enough permissions to update this request"); err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.RequestStatusPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	if !models.IsValidStatus(payload.Status) {
		options := make([]string, len(models.ValidStatuses))
		for i, st := range models.ValidStatuses {
			options[i] = string(st)
		}
		s.writeError(w, apperrors.NewInvalidInputError(
			fmt.Sprintf("Invalid status. Valid options: %s", strings.Join(options, ", "))))
		return
	}

	updated, err := s.store.UpdateRequestStatus(r.Context(), id, models.RequestStatus(payload.Status))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}
