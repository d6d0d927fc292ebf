package server

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/cache"
	"github.com/servicecenter/api/internal/models"
	"github.com/servicecenter/api/internal/notify"
)

// Store is the persistence surface the handlers depend on
type Store interface {
	Ping(ctx context.Context) error

	ListCities(ctx context.Context, activeOnly bool) ([]models.City, error)
	GetCity(ctx context.Context, id int64) (*models.City, error)
	CreateCity(ctx context.Context, name string, active bool) (*models.City, error)
	UpdateCity(ctx context.Context, id int64, name string, active bool) (*models.City, error)
	DeleteCity(ctx context.Context, id int64) error

	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameOrEmailTaken(ctx context.Context, username, email string, excludeID int64) (bool, bool, error)
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) (*models.User, error)
	DeleteUser(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, cityID *int64, skip, limit int) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListServices(ctx context.Context, cityID *int64, skip, limit int) ([]models.Service, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	CreateService(ctx context.Context, s *models.Service) (*models.Service, error)
	UpdateService(ctx context.Context, s *models.Service) (*models.Service, error)
	DeleteService(ctx context.Context, id int64) error

	CreateRequest(ctx context.Context, q *models.Request) (*models.Request, error)
	GetRequest(ctx context.Context, id int64) (*models.Request, error)
	ListRequests(ctx context.Context, cityID *int64, status *models.RequestStatus, skip, limit int) ([]models.Request, error)
	UpdateRequestStatus(ctx context.Context, id int64, status models.RequestStatus) (*models.Request, error)

	Stats(ctx context.Context) (*models.Stats, error)
}

// Server owns the HTTP surface
type Server struct {
	store    Store
	tokens   *auth.TokenManager
	queue    notify.Queue
	catalog  *cache.Catalog
	validate *validator.Validate
	logger   *logrus.Logger
}

// New creates a server. catalog may be nil when caching is disabled.
func New(store Store, tokens *auth.TokenManager, queue notify.Queue, catalog *cache.Catalog, logger *logrus.Logger) *Server {
	return &Server{
		store:    store,
		tokens:   tokens,
		queue:    queue,
		catalog:  catalog,
		validate: validator.New(),
		logger:   logger,
	}
}

// Handler builds the routed HTTP handler with global middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/users", s.handleCreateUser)

	mux.HandleFunc("GET /api/cities", s.handleListCities)
	mux.HandleFunc("GET /api/cities/{id}", s.handleGetCity)
	mux.HandleFunc("POST /api/cities", s.handleCreateCity)
	mux.HandleFunc("PUT /api/cities/{id}", s.handleUpdateCity)
	mux.HandleFunc("DELETE /api/cities/{id}", s.handleDeleteCity)

	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.handleDeleteProduct)

	mux.HandleFunc("GET /api/services", s.handleListServices)
	mux.HandleFunc("GET /api/services/{id}", s.handleGetService)
	mux.HandleFunc("POST /api/services", s.handleCreateService)
	mux.HandleFunc("PUT /api/services/{id}", s.handleUpdateService)
	mux.HandleFunc("DELETE /api/services/{id}", s.handleDeleteService)

	mux.HandleFunc("POST /api/requests", s.handleCreateRequest)
	mux.HandleFunc("GET /api/requests", s.handleListRequests)
	mux.HandleFunc("GET /api/requests/{id}", s.handleGetRequest)
	mux.HandleFunc("PUT /api/requests/{id}", s.handleUpdateRequestStatus)

	mux.HandleFunc("GET /api/admin/users", s.handleAdminListUsers)
	mux.HandleFunc("GET /api/admin/users/{id}", s.handleAdminGetUser)
	mux.HandleFunc("PUT /api/admin/users/{id}", s.handleAdminUpdateUser)
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.handleAdminDeleteUser)
	mux.HandleFunc("GET /api/admin/stats", s.handleAdminStats)

	return s.requestID(s.cors(s.logging(mux)))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Service Center API"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{"status": "healthy", "service": "service-center-api"}
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		health["status"] = "unhealthy"
		health["database"] = "error"
		code = http.StatusServiceUnavailable
	} else {
		health["database"] = "ok"
	}
	s.writeJSON(w, code, health)
}
