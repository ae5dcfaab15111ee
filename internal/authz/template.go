package authz

import (
	"fmt"
	"time"
)

// AccessLevel is the per-tool access granted by a permission template.
// Levels are ordinal: none < readOnly < standard < admin.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessReadOnly
	AccessStandard
	AccessAdmin
)

var accessLevelNames = map[AccessLevel]string{
	AccessNone:     "none",
	AccessReadOnly: "readOnly",
	AccessStandard: "standard",
	AccessAdmin:    "admin",
}

func (l AccessLevel) String() string {
	if name, ok := accessLevelNames[l]; ok {
		return name
	}
	return "none"
}

// AtLeast reports whether l meets or exceeds the required level.
func (l AccessLevel) AtLeast(required AccessLevel) bool {
	return l >= required
}

// MarshalText encodes the level as its wire name.
func (l AccessLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText rejects unknown level names at the boundary.
func (l *AccessLevel) UnmarshalText(data []byte) error {
	parsed, err := ParseAccessLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseAccessLevel validates a raw access level string.
func ParseAccessLevel(raw string) (AccessLevel, error) {
	for level, name := range accessLevelNames {
		if name == raw {
			return level, nil
		}
	}
	return AccessNone, fmt.Errorf("authz: unknown access level %q", raw)
}

// TemplateScope qualifies where a template applies.
type TemplateScope string

const (
	ScopeProject TemplateScope = "project"
	ScopeCompany TemplateScope = "company"
)

// PermissionTemplate maps tool names to access levels. Templates are
// assigned to users via TemplateAssignment records.
type PermissionTemplate struct {
	ID          string
	Name        string
	Description string
	Scope       TemplateScope
	ToolAccess  map[string]AccessLevel
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ToolAccessLevel looks up the access level for a tool, defaulting to none
// when the tool key is absent.
func (t PermissionTemplate) ToolAccessLevel(tool string) AccessLevel {
	if level, ok := t.ToolAccess[tool]; ok {
		return level
	}
	return AccessNone
}

// TemplateAssignment ties a template to a user, optionally scoped to a
// project.
type TemplateAssignment struct {
	ID         string
	UserID     string
	TemplateID string
	ProjectID  *string
	AssignedBy string
	CreatedAt  time.Time
}

// UserToolAccess carries a user's backend-resolved per-tool access levels.
// The merge of company and project template assignments happens server-side
// during sync; this value is stored and served opaquely, never recomputed
// here.
type UserToolAccess struct {
	UserID    string
	Effective map[string]AccessLevel
	SyncedAt  time.Time
}
