package users

import (
	"time"

	"github.com/girderhq/girder/internal/authz"
)

// User is a company member with a single role. Per-permission adjustments
// live as overrides in the authz package, not on the user record.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      authz.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ProjectAssignment links a user to a project they work on. Drives the
// assignedProjects visibility tier for daily logs.
type ProjectAssignment struct {
	UserID    string    `json:"user_id"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}
