package service

import (
	"campusconnect/internal/auth"
	"campusconnect/internal/models"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   uint
	Role models.Role
}

// Can reports whether the actor's role grants action.
func (a Actor) Can(action auth.Action) bool {
	return auth.Can(a.Role, action)
}

// owns reports whether the actor may modify a row owned by ownerID.
// Admins may modify anything.
func (a Actor) owns(ownerID uint) bool {
	return a.ID == ownerID || a.Role == models.RoleAdmin
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return models.NewValidationError(err.Error())
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
