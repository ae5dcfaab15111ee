// Package authz implements role-based authorization for the Girder platform.
// Decisions layer three tiers: role defaults, user-level overrides, and
// project-level overrides with expiration. The engine is pure computation;
// override records are supplied by the admin flows and held in memory.
package authz

import (
	"fmt"
	"sort"
	"time"
)

// Permission is an atomic capability drawn from a closed enumeration.
type Permission string

// Project permissions.
const (
	PermViewProjects   Permission = "projects.view"
	PermCreateProjects Permission = "projects.create"
	PermEditProjects   Permission = "projects.edit"
	PermDeleteProjects Permission = "projects.delete"
)

// Daily log permissions.
const (
	PermViewDailyLogs    Permission = "dailylogs.view"
	PermCreateDailyLogs  Permission = "dailylogs.create"
	PermApproveDailyLogs Permission = "dailylogs.approve"
)

// Material permissions.
const (
	PermViewMaterials   Permission = "materials.view"
	PermManageMaterials Permission = "materials.manage"
)

// Subcontractor permissions.
const (
	PermViewSubcontractors   Permission = "subcontractors.view"
	PermManageSubcontractors Permission = "subcontractors.manage"
)

// Time tracking permissions.
const (
	PermViewTimeEntries    Permission = "time.view"
	PermCreateTimeEntries  Permission = "time.create"
	PermApproveTimeEntries Permission = "time.approve"
)

// Reporting permissions.
const (
	PermViewReports Permission = "reports.view"
	PermExportData  Permission = "reports.export"
)

// Administration permissions.
const (
	PermManageUsers           Permission = "admin.users.manage"
	PermAssignRoles           Permission = "admin.roles.assign"
	PermManagePermissions     Permission = "admin.permissions.manage"
	PermManageCompanySettings Permission = "admin.company.settings"
)

var allPermissions = []Permission{
	PermViewProjects,
	PermCreateProjects,
	PermEditProjects,
	PermDeleteProjects,
	PermViewDailyLogs,
	PermCreateDailyLogs,
	PermApproveDailyLogs,
	PermViewMaterials,
	PermManageMaterials,
	PermViewSubcontractors,
	PermManageSubcontractors,
	PermViewTimeEntries,
	PermCreateTimeEntries,
	PermApproveTimeEntries,
	PermViewReports,
	PermExportData,
	PermManageUsers,
	PermAssignRoles,
	PermManagePermissions,
	PermManageCompanySettings,
}

// AllPermissions returns the full permission enumeration in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Category groups permissions for display. Categorization has no effect on
// evaluation.
type Category string

const (
	CategoryProjects       Category = "projects"
	CategoryDailyLogs      Category = "dailylogs"
	CategoryMaterials      Category = "materials"
	CategorySubcontractors Category = "subcontractors"
	CategoryTimeTracking   Category = "time"
	CategoryReports        Category = "reports"
	CategoryAdmin          Category = "admin"
)

var permissionCategories = map[Permission]Category{
	PermViewProjects:          CategoryProjects,
	PermCreateProjects:        CategoryProjects,
	PermEditProjects:          CategoryProjects,
	PermDeleteProjects:        CategoryProjects,
	PermViewDailyLogs:         CategoryDailyLogs,
	PermCreateDailyLogs:       CategoryDailyLogs,
	PermApproveDailyLogs:      CategoryDailyLogs,
	PermViewMaterials:         CategoryMaterials,
	PermManageMaterials:       CategoryMaterials,
	PermViewSubcontractors:    CategorySubcontractors,
	PermManageSubcontractors:  CategorySubcontractors,
	PermViewTimeEntries:       CategoryTimeTracking,
	PermCreateTimeEntries:     CategoryTimeTracking,
	PermApproveTimeEntries:    CategoryTimeTracking,
	PermViewReports:           CategoryReports,
	PermExportData:            CategoryReports,
	PermManageUsers:           CategoryAdmin,
	PermAssignRoles:           CategoryAdmin,
	PermManagePermissions:     CategoryAdmin,
	PermManageCompanySettings: CategoryAdmin,
}

// Category reports the display grouping for a permission.
func (p Permission) Category() Category {
	return permissionCategories[p]
}

// ParsePermission validates a raw permission string at the deserialization
// boundary. Unknown values never reach the engine.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(raw)
	if _, ok := permissionCategories[p]; !ok {
		return "", fmt.Errorf("authz: unknown permission %q", raw)
	}
	return p, nil
}

// Role is one of the fixed platform roles. Exactly one role per user.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "projectManager"
	RoleDeveloper      Role = "developer"
	RoleArchitect      Role = "architect"
	RoleForeman        Role = "foreman"
	RoleCrewLeader     Role = "crewLeader"
	RoleOfficeStaff    Role = "officeStaff"
	RoleFieldWorker    Role = "fieldWorker"
	RoleViewer         Role = "viewer"
)

var allRoles = []Role{
	RoleAdmin,
	RoleProjectManager,
	RoleDeveloper,
	RoleArchitect,
	RoleForeman,
	RoleCrewLeader,
	RoleOfficeStaff,
	RoleFieldWorker,
	RoleViewer,
}

// AllRoles returns every role ordered from most to least senior.
func AllRoles() []Role {
	out := make([]Role, len(allRoles))
	copy(out, allRoles)
	return out
}

// ParseRole validates a raw role string at the deserialization boundary.
func ParseRole(raw string) (Role, error) {
	r := Role(raw)
	if _, ok := roleHierarchy[r]; !ok {
		return "", fmt.Errorf("authz: unknown role %q", raw)
	}
	return r, nil
}

// Visibility controls which daily log records a user may list.
type Visibility string

const (
	VisibilityAll              Visibility = "all"
	VisibilityAssignedProjects Visibility = "assignedProjects"
	VisibilityOwnOnly          Visibility = "ownOnly"
)

// Subject is the minimal view of a user the engine evaluates: an opaque id
// and exactly one role. The full account record lives in the users module.
type Subject struct {
	ID   string
	Role Role
}

// UserOverride grants or revokes a single permission for a single user,
// independent of project. No expiration.
type UserOverride struct {
	ID         string
	UserID     string
	Permission Permission
	Granted    bool
	CreatedBy  string
	CreatedAt  time.Time
}

// ProjectOverride grants or revokes a single permission for a single user
// within one project. May carry an expiry; an expired override is inert at
// evaluation time and is only ever deleted by the cleanup job.
type ProjectOverride struct {
	ID         string
	UserID     string
	ProjectID  string
	Permission Permission
	Granted    bool
	ExpiresAt  *time.Time
	CreatedBy  string
	CreatedAt  time.Time
}

// Expired reports whether the override is past its expiry at the given time.
func (o ProjectOverride) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && o.ExpiresAt.Before(now)
}

// PermissionSet is a mutable set of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// Has reports set membership.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Insert adds a permission to the set.
func (s PermissionSet) Insert(p Permission) {
	s[p] = struct{}{}
}

// Remove deletes a permission from the set.
func (s PermissionSet) Remove(p Permission) {
	delete(s, p)
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Slice returns the set contents sorted lexically for stable JSON output.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
