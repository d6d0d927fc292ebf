package server

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// memStore is an in-memory Store with the same error semantics as the
// Postgres repository
type memStore struct {
	cities   map[int64]*models.City
	users    map[int64]*models.User
	products map[int64]*models.Product
	services map[int64]*models.Service
	requests map[int64]*models.Request
	nextID   int64
}

func newMemStore() *memStore {
	return &memStore{
		cities:   map[int64]*models.City{},
		users:    map[int64]*models.User{},
		products: map[int64]*models.Product{},
		services: map[int64]*models.Service{},
		requests: map[int64]*models.Request{},
		nextID:   1,
	}
}

func (m *memStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) Ping(context.Context) error { return nil }

func (m *memStore) ListCities(_ context.Context, activeOnly bool) ([]models.City, error) {
	out := []models.City{}
	for _, c := range m.cities {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetCity(_ context.Context, id int64) (*models.City, error) {
	if c, ok := m.cities[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("City")
}

func (m *memStore) CreateCity(_ context.Context, name string, active bool) (*models.City, error) {
	for _, c := range m.cities {
		if c.Name == name {
			return nil, apperrors.NewConflictError("City already exists")
		}
	}
	c := &models.City{ID: m.id(), Name: name, Active: active}
	m.cities[c.ID] = c
	return c, nil
}

func (m *memStore) UpdateCity(_ context.Context, id int64, name string, active bool) (*models.City, error) {
	c, ok := m.cities[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("City")
	}
	c.Name = name
	c.Active = active
	cp := *c
	return &cp, nil
}

func (m *memStore) DeleteCity(_ context.Context, id int64) error {
	if _, ok := m.cities[id]; !ok {
		return apperrors.NewNotFoundError("City")
	}
	delete(m.cities, id)
	return nil
}

func (m *memStore) ListUsers(context.Context) ([]models.User, error) {
	out := []models.User{}
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("User")
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperrors.NewNotFoundError("User")
}

func (m *memStore) UsernameOrEmailTaken(_ context.Context, username, email string, excludeID int64) (bool, bool, error) {
	var usernameTaken, emailTaken bool
	for _, u := range m.users {
		if u.ID == excludeID {
			continue
		}
		if u.Username == username {
			usernameTaken = true
		}
		if u.Email == email {
			emailTaken = true
		}
	}
	return usernameTaken, emailTaken, nil
}

func (m *memStore) CreateUser(_ context.Context, u *models.User) (*models.User, error) {
	if ut, et, _ := m.UsernameOrEmailTaken(context.Background(), u.Username, u.Email, 0); ut || et {
		return nil, apperrors.NewConflictError("Username or email already registered")
	}
	u.ID = m.id()
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (m *memStore) UpdateUser(_ context.Context, u *models.User) (*models.User, error) {
	if _, ok := m.users[u.ID]; !ok {
		return nil, apperrors.NewNotFoundError("User")
	}
	cp := *u
	m.users[u.ID] = &cp
	return u, nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return apperrors.NewNotFoundError("User")
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) ListProducts(_ context.Context, cityID *int64, skip, limit int) ([]models.Product, error) {
	out := []models.Product{}
	for _, p := range m.products {
		if !p.IsAvailable {
			continue
		}
		if cityID != nil && p.CityID != nil && *p.CityID != *cityID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, skip, limit), nil
}

func (m *memStore) GetProduct(_ context.Context, id int64) (*models.Product, error) {
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("Product")
}

func (m *memStore) CreateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	p.ID = m.id()
	cp := *p
	m.products[p.ID] = &cp
	return p, nil
}

func (m *memStore) UpdateProduct(_ context.Context, p *models.Product) (*models.Product, error) {
	if _, ok := m.products[p.ID]; !ok {
		return nil, apperrors.NewNotFoundError("Product")
	}
	cp := *p
	m.products[p.ID] = &cp
	return p, nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return apperrors.NewNotFoundError("Product")
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) ListServices(_ context.Context, cityID *int64, skip, limit int) ([]models.Service, error) {
	out := []models.Service{}
	for _, s := range m.services {
		if !s.IsAvailable {
			continue
		}
		if cityID != nil && s.CityID != nil && *s.CityID != *cityID {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, skip, limit), nil
}

func (m *memStore) GetService(_ context.Context, id int64) (*models.Service, error) {
	if s, ok := m.services[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("Service")
}

func (m *memStore) CreateService(_ context.Context, s *models.Service) (*models.Service, error) {
	s.ID = m.id()
	cp := *s
	m.services[s.ID] = &cp
	return s, nil
}

func (m *memStore) UpdateService(_ context.Context, s *models.Service) (*models.Service, error) {
	if _, ok := m.services[s.ID]; !ok {
		return nil, apperrors.NewNotFoundError("Service")
	}
	cp := *s
	m.services[s.ID] = &cp
	return s, nil
}

func (m *memStore) DeleteService(_ context.Context, id int64) error {
	if _, ok := m.services[id]; !ok {
		return apperrors.NewNotFoundError("Service")
	}
	delete(m.services, id)
	return nil
}

func (m *memStore) CreateRequest(_ context.Context, q *models.Request) (*models.Request, error) {
	q.ID = m.id()
	q.Status = models.StatusNew
	now := time.Now().UTC().Truncate(time.Microsecond)
	q.CreatedAt = now
	q.UpdatedAt = now
	cp := *q
	m.requests[q.ID] = &cp
	return q, nil
}

func (m *memStore) GetRequest(_ context.Context, id int64) (*models.Request, error) {
	if q, ok := m.requests[id]; ok {
		cp := *q
		return &cp, nil
	}
	return nil, apperrors.NewNotFoundError("Request")
}

func (m *memStore) ListRequests(_ context.Context, cityID *int64, status *models.RequestStatus, skip, limit int) ([]models.Request, error) {
	out := []models.Request{}
	for _, q := range m.requests {
		if cityID != nil && q.CityID != *cityID {
			continue
		}
		if status != nil && q.Status != *status {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, skip, limit), nil
}

func (m *memStore) UpdateRequestStatus(_ context.Context, id int64, status models.RequestStatus) (*models.Request, error) {
	q, ok := m.requests[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("Request")
	}
	q.Status = status
	q.UpdatedAt = time.Now().UTC()
	cp := *q
	return &cp, nil
}

func (m *memStore) Stats(context.Context) (*models.Stats, error) {
	s := &models.Stats{}
	s.Total.Products = int64(len(m.products))
	s.Total.Services = int64(len(m.services))
	s.Total.Requests = int64(len(m.requests))
	s.Total.Users = int64(len(m.users))
	s.Total.Cities = int64(len(m.cities))
	for _, q := range m.requests {
		switch q.Status {
		case models.StatusNew:
			s.Requests.New++
		case models.StatusProcessing:
			s.Requests.Processing++
		case models.StatusCompleted:
			s.Requests.Completed++
		case models.StatusCancelled:
			s.Requests.Cancelled++
		}
	}
	return s, nil
}

func paginate[T any](in []T, skip, limit int) []T {
	if skip >= len(in) {
		return []T{}
	}
	in = in[skip:]
	if limit < len(in) {
		in = in[:limit]
	}
	return in
}

// fakeQueue records enqueued request IDs
type fakeQueue struct {
	enqueued []int64
}

func (f *fakeQueue) Enqueue(requestID int64) {
	f.enqueued = append(f.enqueued, requestID)
}

type testEnv struct {
	store  *memStore
	queue  *fakeQueue
	tokens *auth.TokenManager
	server *Server
}

func newTestEnv() *testEnv {
	store := newMemStore()
	queue := &fakeQueue{}
	tokens := auth.NewTokenManager("test-secret", 30*time.Minute)

	log := logrus.New()
	log.SetOutput(io.Discard)

	return &testEnv{
		store:  store,
		queue:  queue,
		tokens: tokens,
		server: New(store, tokens, queue, nil, log),
	}
}

// seedUser inserts a user with the given role/city and returns a valid
// bearer token for it
func (e *testEnv) seedUser(username string, role models.Role, cityID int64) (*models.User, string) {
	hash, _ := auth.HashPassword("password123")
	u, _ := e.store.CreateUser(context.Background(), &models.User{
		Username:       username,
		Email:          username + "@example.com",
		HashedPassword: hash,
		CityID:         cityID,
		Role:           role,
		IsActive:       true,
	})
	token, _ := e.tokens.Issue(u)
	return u, token
}
