package server

import (
	"encoding/json"
	"net/http"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
)

// handleListProducts lists available products, optionally filtered by
// city. A city filter returns city-scoped rows plus global rows. The
// response body is served through the catalog cache when configured.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	cityID := queryCityID(r)
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)

	key := s.catalog.Key(r.Context(), "products", cityID, skip, limit)
	if body, ok := s.catalog.Get(r.Context(), key); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
		return
	}

	products, err := s.store.ListProducts(r.Context(), cityID, skip, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if body, err := json.Marshal(products); err == nil {
		s.catalog.Set(r.Context(), key, body)
	}
	s.writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	product, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, err := s.currentUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.ProductPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, payload.CityID, "Not enough permissions for this city"); err != nil {
		s.writeError(w, err)
		return
	}

	product := &models.Product{
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		ImageURL:    payload.ImageURL,
		IsAvailable: models.BoolOrDefault(payload.IsAvailable, true),
		CityID:      payload.CityID,
	}

	created, err := s.store.CreateProduct(r.Context(), product)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, created)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var payload models.ProductPayload
	if err := s.decodeJSON(r, &payload); err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, existing.CityID, "Not enough permissions for this product"); err != nil {
		s.writeError(w, err)
		return
	}
	if err := auth.CanAccessScope(actor, payload.CityID, "Cannot assign product to another city"); err != nil {
		s.writeError(w, err)
		return
	}

	product := &models.Product{
		ID:          id,
		Name:        payload.Name,
		Description: payload.Description,
		Price:       payload.Price,
		ImageURL:    payload.ImageURL,
		IsAvailable: models.BoolOrDefault(payload.IsAvailable, true),
		CityID:      payload.CityID,
	}

	updated, err := s.store.UpdateProduct(r.Context(), product)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
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

	existing, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := auth.CanAccessScope(actor, existing.CityID, "Not enough permissions for this product"); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.store.DeleteProduct(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.catalog.Bump(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "Product deleted successfully"})
}
