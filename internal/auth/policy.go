package auth

import (
	"github.com/servicecenter/api/internal/models"
	apperrors "github.com/servicecenter/api/pkg/errors"
)

// Authorization policy. Each operation calls an explicit policy function
// with the actor and the target's scope instead of branching on role
// inline.

// RequireAdmin passes only for admins
func RequireAdmin(actor *models.User) error {
	if actor.IsAdmin() {
		return nil
	}
	return apperrors.NewForbiddenError("Not enough permissions")
}

// CanAccessScope authorizes access to an entity scoped to cityID. A nil
// scope means the entity is global and accessible to any staff account.
// Admins pass unconditionally.
func CanAccessScope(actor *models.User, cityID *int64, message string) error {
	if actor.IsAdmin() {
		return nil
	}
	if cityID == nil || *cityID == actor.CityID {
		return nil
	}
	return apperrors.NewForbiddenError(message)
}

// CanAccessCity authorizes access to an entity owned by exactly one city
func CanAccessCity(actor *models.User, cityID int64, message string) error {
	if actor.IsAdmin() || cityID == actor.CityID {
		return nil
	}
	return apperrors.NewForbiddenError(message)
}
