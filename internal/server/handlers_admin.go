package server

import (
	"net/http"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// adminActor authenticates the request and requires the admin role
func (s *Server) adminActor(r *http.Request) (*models.User, error) {
	actor, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return actor, nil
}

func (s *Server) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adminActor(r); err != nil {
		s.writeError(w, err)
		return
	}

	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adminActor(r); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	user, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

// handleAdminUpdateUser replaces a staff account. The new username and
// email must not collide with another user; the password is rehashed
// only when supplied.
func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adminActor(r); err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	existing, err := s.store.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.UserUpdatePayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	usernameTaken, emailTaken, err := s.store.UsernameOrEmailTaken(r.Context(), payload.Username, payload.Email, id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if usernameTaken {
		s.writeError(w, apperrors.NewConflictError("Username already registered"))
		return
	}
	if emailTaken {
		s.writeError(w, apperrors.NewConflictError("Email already registered"))
		return
	}

	hash := existing.HashedPassword
	if payload.Password != "" {
		hash, err = auth.HashPassword(payload.Password)
		if err != nil {
			s.writeError(w, apperrors.NewInternalError("failed to hash password", err))
			return
		}
	}

	user := &models.User{
		ID:             id,
		Username:       payload.Username,
		Email:          payload.Email,
		HashedPassword: hash,
		CityID:         payload.CityID,
		Role:           models.Role(payload.Role),
		IsActive:       models.BoolOrDefault(payload.IsActive, true),
		TelegramID:     payload.TelegramID,
	}

	updated, err := s.store.UpdateUser(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

// handleAdminDeleteUser deletes a staff account. Self-deletion is
// rejected.
func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, err := s.adminActor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if id == actor.ID {
		s.writeError(w, apperrors.NewInvalidOperationError("Cannot delete yourself"))
		return
	}

	if err := s.store.DeleteUser(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "User deleted successfully"})
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	if _, err := s.adminActor(r); err != nil {
		s.writeError(w, err)
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
