package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/servicecenter/api/pkg/errors"
	"github.com/servicecenter/api/internal/models"
)

// PostgresRepository implements database operations
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(databaseURL string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks database liveness
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505)
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// --- Cities ---

// ListCities retrieves cities, optionally restricted to active ones
func (r *PostgresRepository) ListCities(ctx context.Context, activeOnly bool) ([]models.City, error) {
	query := `SELECT id, name, active FROM cities ORDER BY id`
	if activeOnly {
		query = `SELECT id, name, active FROM cities WHERE active = TRUE ORDER BY id`
	}

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	cities := []models.City{}
	for rows.Next() {
		var c models.City
		if err := rows.Scan(&c.ID, &c.Name, &c.Active); err != nil {
			return nil, err
		}
		cities = append(cities, c)
	}
	return cities, rows.Err()
}

// GetCity retrieves a city by ID
func (r *PostgresRepository) GetCity(ctx context.Context, id int64) (*models.City, error) {
	var c models.City
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, active FROM cities WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("City")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCity creates a new city, enforcing name uniqueness
func (r *PostgresRepository) CreateCity(ctx context.Context, name string, active bool) (*models.City, error) {
	var c models.City
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO cities (name, active) VALUES ($1, $2) RETURNING id, name, active`,
		name, active,
	).Scan(&c.ID, &c.Name, &c.Active)
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflictError("City already exists")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateCity replaces all city fields
func (r *PostgresRepository) UpdateCity(ctx context.Context, id int64, name string, active bool) (*models.City, error) {
	var c models.City
	err := r.db.QueryRowContext(ctx,
		`UPDATE cities SET name = $1, active = $2 WHERE id = $3 RETURNING id, name, active`,
		name, active, id,
	).Scan(&c.ID, &c.Name, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("City")
	}
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflictError("City already exists")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCity deletes a city by ID
func (r *PostgresRepository) DeleteCity(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "City")
}

// --- Users ---

const userColumns = `id, username, email, hashed_password, city_id, role, is_active, telegram_id`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword,
		&u.CityID, &u.Role, &u.IsActive, &u.TelegramID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers retrieves all staff accounts
func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword,
			&u.CityID, &u.Role, &u.IsActive, &u.TelegramID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUser retrieves a user by ID
func (r *PostgresRepository) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("User")
	}
	return u, err
}

// GetUserByUsername retrieves a user by username
func (r *PostgresRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("User")
	}
	return u, err
}

// UsernameOrEmailTaken reports whether another user (id != excludeID)
// already holds the given username or email
func (r *PostgresRepository) UsernameOrEmailTaken(ctx context.Context, username, email string, excludeID int64) (usernameTaken, emailTaken bool, err error) {
	err = r.db.QueryRowContext(ctx, `
SELECT
    EXISTS(SELECT 1 FROM users WHERE username = $1 AND id <> $3),
    EXISTS(SELECT 1 FROM users WHERE email = $2 AND id <> $3)
`, username, email, excludeID).Scan(&usernameTaken, &emailTaken)
	return usernameTaken, emailTaken, err
}

// CreateUser creates a new staff account
func (r *PostgresRepository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO users (username, email, hashed_password, city_id, role, is_active, telegram_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id
`, u.Username, u.Email, u.HashedPassword, u.CityID, u.Role, u.IsActive, u.TelegramID).Scan(&u.ID)
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflictError("Username or email already registered")
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UpdateUser replaces all user fields
func (r *PostgresRepository) UpdateUser(ctx context.Context, u *models.User) (*models.User, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET username = $1, email = $2, hashed_password = $3, city_id = $4,
    role = $5, is_active = $6, telegram_id = $7
WHERE id = $8
`, u.Username, u.Email, u.HashedPassword, u.CityID, u.Role, u.IsActive, u.TelegramID, u.ID)
	if isUniqueViolation(err) {
		return nil, apperrors.NewConflictError("Username or email already registered")
	}
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, "User"); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteUser deletes a user by ID
func (r *PostgresRepository) DeleteUser(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "User")
}

// ListCityManagers retrieves all active managers assigned to a city
func (r *PostgresRepository) ListCityManagers(ctx context.Context, cityID int64) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+userColumns+`
FROM users
WHERE city_id = $1 AND role = $2 AND is_active = TRUE
`, cityID, models.RoleManager)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	managers := []models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.HashedPassword,
			&u.CityID, &u.Role, &u.IsActive, &u.TelegramID); err != nil {
			return nil, err
		}
		managers = append(managers, u)
	}
	return managers, rows.Err()
}

// --- Products ---

const productColumns = `id, name, description, price, image_url, is_available, city_id`

// ListProducts retrieves available products. When cityID is set the
// result is the union of city-scoped and global (NULL city) rows.
func (r *PostgresRepository) ListProducts(ctx context.Context, cityID *int64, skip, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_available = TRUE`
	args := []interface{}{}
	if cityID != nil {
		query += ` AND (city_id = $1 OR city_id IS NULL)`
		args = append(args, *cityID)
	}
	query += fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
			&p.ImageURL, &p.IsAvailable, &p.CityID); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct retrieves a product by ID
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var p models.Product
	err := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.ImageURL, &p.IsAvailable, &p.CityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Product")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProduct creates a new product
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO products (name, description, price, image_url, is_available, city_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, p.Name, p.Description, p.Price, p.ImageURL, p.IsAvailable, p.CityID).Scan(&p.ID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProduct replaces all product fields
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *models.Product) (*models.Product, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE products
SET name = $1, description = $2, price = $3, image_url = $4, is_available = $5, city_id = $6
WHERE id = $7
`, p.Name, p.Description, p.Price, p.ImageURL, p.IsAvailable, p.CityID, p.ID)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, "Product"); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProduct deletes a product by ID
func (r *PostgresRepository) DeleteProduct(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "Product")
}

// --- Services ---

const serviceColumns = `id, name, description, price, estimated_time, is_available, city_id`

// ListServices retrieves available services with the same city-union
// semantics as ListProducts
func (r *PostgresRepository) ListServices(ctx context.Context, cityID *int64, skip, limit int) ([]models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE is_available = TRUE`
	args := []interface{}{}
	if cityID != nil {
		query += ` AND (city_id = $1 OR city_id IS NULL)`
		args = append(args, *cityID)
	}
	query += fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	services := []models.Service{}
	for rows.Next() {
		var s models.Service
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price,
			&s.EstimatedTime, &s.IsAvailable, &s.CityID); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

// GetService retrieves a service by ID
func (r *PostgresRepository) GetService(ctx context.Context, id int64) (*models.Service, error) {
	var s models.Service
	err := r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.EstimatedTime, &s.IsAvailable, &s.CityID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Service")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateService creates a new service
func (r *PostgresRepository) CreateService(ctx context.Context, s *models.Service) (*models.Service, error) {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO services (name, description, price, estimated_time, is_available, city_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id
`, s.Name, s.Description, s.Price, s.EstimatedTime, s.IsAvailable, s.CityID).Scan(&s.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateService replaces all service fields
func (r *PostgresRepository) UpdateService(ctx context.Context, s *models.Service) (*models.Service, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE services
SET name = $1, description = $2, price = $3, estimated_time = $4, is_available = $5, city_id = $6
WHERE id = $7
`, s.Name, s.Description, s.Price, s.EstimatedTime, s.IsAvailable, s.CityID, s.ID)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res, "Service"); err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteService deletes a service by ID
func (r *PostgresRepository) DeleteService(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(res, "Service")
}

// --- Requests ---

const requestColumns = `id, name, phone, email, city_id, message, service_id, product_id, status, created_at, updated_at`

func scanRequestRows(rows *sql.Rows) ([]models.Request, error) {
	requests := []models.Request{}
	for rows.Next() {
		var q models.Request
		if err := rows.Scan(&q.ID, &q.Name, &q.Phone, &q.Email, &q.CityID, &q.Message,
			&q.ServiceID, &q.ProductID, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, q)
	}
	return requests, rows.Err()
}

// CreateRequest inserts a customer request with status new. created_at
// and updated_at are set to the same instant.
func (r *PostgresRepository) CreateRequest(ctx context.Context, q *models.Request) (*models.Request, error) {
	err := r.db.QueryRowContext(ctx, `
INSERT INTO requests (name, phone, email, city_id, message, service_id, product_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
RETURNING id, status, created_at, updated_at
`, q.Name, q.Phone, q.Email, q.CityID, q.Message, q.ServiceID, q.ProductID, models.StatusNew).
		Scan(&q.ID, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// GetRequest retrieves a request by ID
func (r *PostgresRepository) GetRequest(ctx context.Context, id int64) (*models.Request, error) {
	var q models.Request
	err := r.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`, id,
	).Scan(&q.ID, &q.Name, &q.Phone, &q.Email, &q.CityID, &q.Message,
		&q.ServiceID, &q.ProductID, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Request")
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ListRequests retrieves requests newest first with optional city and
// status filters
func (r *PostgresRepository) ListRequests(ctx context.Context, cityID *int64, status *models.RequestStatus, skip, limit int) ([]models.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	args := []interface{}{}
	if cityID != nil {
		args = append(args, *cityID)
		query += fmt.Sprintf(` AND city_id = $%d`, len(args))
	}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRequestRows(rows)
}

// UpdateRequestStatus sets the request status and refreshes updated_at
func (r *PostgresRepository) UpdateRequestStatus(ctx context.Context, id int64, status models.RequestStatus) (*models.Request, error) {
	var q models.Request
	err := r.db.QueryRowContext(ctx, `
UPDATE requests SET status = $1, updated_at = NOW()
WHERE id = $2
RETURNING `+requestColumns, status, id,
	).Scan(&q.ID, &q.Name, &q.Phone, &q.Email, &q.CityID, &q.Message,
		&q.ServiceID, &q.ProductID, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("Request")
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// --- Stats ---

// Stats aggregates entity totals and request counts per status
func (r *PostgresRepository) Stats(ctx context.Context) (*models.Stats, error) {
	var s models.Stats
	err := r.db.QueryRowContext(ctx, `
SELECT
    (SELECT COUNT(*) FROM products),
    (SELECT COUNT(*) FROM services),
    (SELECT COUNT(*) FROM requests),
    (SELECT COUNT(*) FROM users),
    (SELECT COUNT(*) FROM cities),
    (SELECT COUNT(*) FROM requests WHERE status = 'new'),
    (SELECT COUNT(*) FROM requests WHERE status = 'processing'),
    (SELECT COUNT(*) FROM requests WHERE status = 'completed'),
    (SELECT COUNT(*) FROM requests WHERE status = 'cancelled')
`).Scan(
		&s.Total.Products, &s.Total.Services, &s.Total.Requests,
		&s.Total.Users, &s.Total.Cities,
		&s.Requests.New, &s.Requests.Processing,
		&s.Requests.Completed, &s.Requests.Cancelled,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func requireAffected(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NewNotFoundError(resource)
	}
	return nil
}
