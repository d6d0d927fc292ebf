package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// requestID assigns every request an id, echoed in X-Request-ID
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// cors applies the permissive CORS policy and answers preflights
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logging records one line per request
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"duration":   time.Since(start).String(),
			"request_id": w.Header().Get("X-Request-ID"),
		}).Info("Request handled")
	})
}

// currentUser resolves the acting user from the Authorization header.
// Any failure (missing header, bad token, unknown subject) maps to
// Unauthenticated.
func (s *Server) currentUser(r *http.Request) (*models.User, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return nil, apperrors.NewUnauthenticatedError("Not authenticated")
	}

	claims, err := s.tokens.Parse(strings.TrimPrefix(header, prefix))
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByUsername(r.Context(), claims.Subject)
	if err != nil {
		return nil, apperrors.NewUnauthenticatedError("Could not validate credentials")
	}
	return user, nil
}
