package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPermissionsConsistency(t *testing.T) {
	full := NewPermissionSet(AllPermissions()...)
	for _, role := range AllRoles() {
		defaults := DefaultPermissions(role)
		require.NotEmpty(t, defaults, "role %s must have a non-empty default set", role)
		for p := range defaults {
			require.True(t, full.Has(p), "role %s grants unknown permission %s", role, p)
		}
	}
}

func TestAdminHoldsFullEnumeration(t *testing.T) {
	defaults := DefaultPermissions(RoleAdmin)
	require.Len(t, defaults, len(AllPermissions()))
	for _, p := range AllPermissions() {
		assert.True(t, defaults.Has(p), "admin missing %s", p)
	}
}

func TestDefaultPermissionsReturnsCopy(t *testing.T) {
	first := DefaultPermissions(RoleViewer)
	first.Insert(PermManageUsers)
	assert.False(t, DefaultPermissions(RoleViewer).Has(PermManageUsers))
}

func TestHierarchyLevels(t *testing.T) {
	assert.Equal(t, 8, HierarchyLevel(RoleAdmin))
	assert.Equal(t, 7, HierarchyLevel(RoleProjectManager))
	assert.Equal(t, 1, HierarchyLevel(RoleViewer))

	for _, role := range AllRoles() {
		level := HierarchyLevel(role)
		assert.GreaterOrEqual(t, level, 1, "role %s", role)
		assert.LessOrEqual(t, level, 8, "role %s", role)
	}
	// Supervisory and administrative tracks share a rank.
	assert.Equal(t, HierarchyLevel(RoleCrewLeader), HierarchyLevel(RoleOfficeStaff))
}

func TestEveryRoleHasVisibility(t *testing.T) {
	for _, role := range AllRoles() {
		v := DefaultDailyLogVisibility(role)
		assert.Contains(t, []Visibility{VisibilityAll, VisibilityAssignedProjects, VisibilityOwnOnly}, v, "role %s", role)
	}
	assert.Equal(t, VisibilityAll, DefaultDailyLogVisibility(RoleAdmin))
	assert.Equal(t, VisibilityOwnOnly, DefaultDailyLogVisibility(RoleFieldWorker))
}

func TestParsePermission(t *testing.T) {
	p, err := ParsePermission("dailylogs.approve")
	require.NoError(t, err)
	assert.Equal(t, PermApproveDailyLogs, p)

	_, err = ParsePermission("dailylogs.launch")
	assert.Error(t, err)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("crewLeader")
	require.NoError(t, err)
	assert.Equal(t, RoleCrewLeader, r)

	_, err = ParseRole("superuser")
	assert.Error(t, err)
}
