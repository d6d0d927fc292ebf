package models

import (
	"time"
)

// Role is a staff account role
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// RequestStatus is a customer request status. The set is closed but the
// transition order is deliberately not enforced: any member may follow
// any other.
type RequestStatus string

const (
	StatusNew        RequestStatus = "new"
	StatusProcessing RequestStatus = "processing"
	StatusCompleted  RequestStatus = "completed"
	StatusCancelled  RequestStatus = "cancelled"
)

// ValidStatuses lists the allowed request statuses in display order
var ValidStatuses = []RequestStatus{StatusNew, StatusProcessing, StatusCompleted, StatusCancelled}

// IsValidStatus reports whether s is a member of the allowed status set
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if string(v) == s {
			return true
		}
	}
	return false
}

// City represents a service-center city
type City struct {
	ID     int64  `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Active bool   `json:"active" db:"active"`
}

// User represents a staff account (admin or city manager)
type User struct {
	ID             int64   `json:"id" db:"id"`
	Username       string  `json:"username" db:"username"`
	Email          string  `json:"email" db:"email"`
	HashedPassword string  `json:"-" db:"hashed_password"`
	CityID         int64   `json:"city_id" db:"city_id"`
	Role           Role    `json:"role" db:"role"`
	IsActive       bool    `json:"is_active" db:"is_active"`
	TelegramID     *string `json:"telegram_id" db:"telegram_id"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Product represents a catalog product. A nil CityID means the product
// is visible in every city.
type Product struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	Price       float64 `json:"price" db:"price"`
	ImageURL    *string `json:"image_url" db:"image_url"`
	IsAvailable bool    `json:"is_available" db:"is_available"`
	CityID      *int64  `json:"city_id" db:"city_id"`
}

// Service represents a catalog service. Same global-visibility rule as
// Product.
type Service struct {
	ID            int64   `json:"id" db:"id"`
	Name          string  `json:"name" db:"name"`
	Description   string  `json:"description" db:"description"`
	Price         float64 `json:"price" db:"price"`
	EstimatedTime string  `json:"estimated_time" db:"estimated_time"`
	IsAvailable   bool    `json:"is_available" db:"is_available"`
	CityID        *int64  `json:"city_id" db:"city_id"`
}

// Request represents a customer request
type Request struct {
	ID        int64         `json:"id" db:"id"`
	Name      string        `json:"name" db:"name"`
	Phone     string        `json:"phone" db:"phone"`
	Email     *string       `json:"email" db:"email"`
	CityID    int64         `json:"city_id" db:"city_id"`
	Message   string        `json:"message" db:"message"`
	ServiceID *int64        `json:"service_id" db:"service_id"`
	ProductID *int64        `json:"product_id" db:"product_id"`
	Status    RequestStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Token is the login response body
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Stats aggregates entity totals and request counts per status
type Stats struct {
	Total    TotalStats   `json:"total"`
	Requests RequestStats `json:"requests"`
}

// TotalStats holds entity counts
type TotalStats struct {
	Products int64 `json:"products"`
	Services int64 `json:"services"`
	Requests int64 `json:"requests"`
	Users    int64 `json:"users"`
	Cities   int64 `json:"cities"`
}

// RequestStats holds request counts per status
type RequestStats struct {
	New        int64 `json:"new"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Cancelled  int64 `json:"cancelled"`
}
