package server

import (
	"net/http"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// handleLogin exchanges form-encoded credentials for an access token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, apperrors.NewInvalidInputError("Invalid form body"))
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	user, err := s.store.GetUserByUsername(r.Context(), username)
	if err != nil || !auth.VerifyPassword(password, user.HashedPassword) {
		s.writeError(w, apperrors.NewUnauthenticatedError("Incorrect username or password"))
		return
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		s.writeError(w, apperrors.NewInternalError("failed to issue token", err))
		return
	}

	s.writeJSON(w, http.StatusOK, models.Token{AccessToken: token, TokenType: "bearer"})
}

// handleCreateUser creates a staff account (admin only)
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.RequireAdmin(actor); err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.UserCreatePayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	usernameTaken, emailTaken, err := s.store.UsernameOrEmailTaken(r.Context(), payload.Username, payload.Email, 0)
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

	hash, err := auth.HashPassword(payload.Password)
	if err != nil {
		s.writeError(w, apperrors.NewInternalError("failed to hash password", err))
		return
	}

	user := &models.User{
		Username:       payload.Username,
		Email:          payload.Email,
		HashedPassword: hash,
		CityID:         payload.CityID,
		Role:           models.Role(payload.Role),
		IsActive:       models.BoolOrDefault(payload.IsActive, true),
		TelegramID:     payload.TelegramID,
	}

	created, err := s.store.CreateUser(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, created)
}
