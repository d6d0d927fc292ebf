package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "github.com/servicecenter/api/pkg/errors"
)

// errorBody matches the original API's error contract
type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// writeError renders an AppError with its mapped HTTP status; anything
// else becomes an opaque 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			s.logger.WithError(err).Error("Request failed")
		}
		if appErr.Code == apperrors.ErrCodeUnauthenticated {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		s.writeJSON(w, appErr.HTTPStatus, errorBody{Detail: appErr.Message})
		return
	}

	s.logger.WithError(err).Error("Request failed")
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "Internal server error"})
}

// decodeJSON decodes and validates a request body
func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperrors.NewInvalidInputError("Invalid JSON body")
	}
	if err := s.validate.Struct(dst); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	return nil
}

// pathID parses the {id} path segment
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewInvalidInputError("Invalid id")
	}
	return id, nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// queryCityID parses the optional city_id filter. Zero and negative
// values are treated as absent, matching the original API.
func queryCityID(r *http.Request) *int64 {
	v := r.URL.Query().Get("city_id")
	if v == "" {
		return nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
