package auth

import (
	"time"

	"github.com/girderhq/girder/internal/authz"
)

// Account represents an authenticatable user record. The role rides along so
// a successful login can seed the permission subject without a second query.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         authz.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
