package models

// Inbound payloads. Optional booleans are pointers so that an omitted
// field keeps the original API default of true.

// CityPayload is the create/update body for a city
type CityPayload struct {
	Name   string `json:"name" validate:"required"`
	Active *bool  `json:"active"`
}

// ProductPayload is the create/update body for a product
type ProductPayload struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gte=0"`
	ImageURL    *string `json:"image_url"`
	IsAvailable *bool   `json:"is_available"`
	CityID      *int64  `json:"city_id"`
}

// ServicePayload is the create/update body for a service
type ServicePayload struct {
	Name          string  `json:"name" validate:"required"`
	Description   string  `json:"description"`
	Price         float64 `json:"price" validate:"gte=0"`
	EstimatedTime string  `json:"estimated_time" validate:"required"`
	IsAvailable   *bool   `json:"is_available"`
	CityID        *int64  `json:"city_id"`
}

// RequestPayload is the public create body for a customer request
type RequestPayload struct {
	Name      string  `json:"name" validate:"required"`
	Phone     string  `json:"phone" validate:"required"`
	Email     *string `json:"email" validate:"omitempty,email"`
	CityID    int64   `json:"city_id" validate:"required"`
	Message   string  `json:"message" validate:"required"`
	ServiceID *int64  `json:"service_id"`
	ProductID *int64  `json:"product_id"`
}

// RequestStatusPayload is the status update body for a request
type RequestStatusPayload struct {
	Status string `json:"status" validate:"required"`
}

// UserCreatePayload is the create body for a staff account
type UserCreatePayload struct {
	Username   string  `json:"username" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"required,min=6"`
	CityID     int64   `json:"city_id" validate:"required"`
	Role       string  `json:"role" validate:"required,oneof=admin manager"`
	IsActive   *bool   `json:"is_active"`
	TelegramID *string `json:"telegram_id"`
}

// UserUpdatePayload is the update body for a staff account. Password is
// optional: when empty the stored hash is kept.
type UserUpdatePayload struct {
	Username   string  `json:"username" validate:"required"`
	Email      string  `json:"email" validate:"required,email"`
	Password   string  `json:"password" validate:"omitempty,min=6"`
	CityID     int64   `json:"city_id" validate:"required"`
	Role       string  `json:"role" validate:"required,oneof=admin manager"`
	IsActive   *bool   `json:"is_active"`
	TelegramID *string `json:"telegram_id"`
}

// BoolOrDefault resolves an optional boolean to its API default
func BoolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
