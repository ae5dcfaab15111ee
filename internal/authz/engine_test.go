package authz

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestHasPermissionNoOverridesMatchesRoleDefaults(t *testing.T) {
	engine := NewEngine(NewOverrideStore())
	for _, role := range AllRoles() {
		sub := &Subject{ID: "u-" + string(role), Role: role}
		defaults := DefaultPermissions(role)
		for _, p := range AllPermissions() {
			require.Equal(t, defaults.Has(p), engine.HasPermission(p, sub, ""),
				"role %s permission %s", role, p)
		}
	}
}

func TestHasPermissionNilSubjectFailsClosed(t *testing.T) {
	engine := NewEngine(NewOverrideStore())
	assert.False(t, engine.HasPermission(PermViewProjects, nil, ""))
	assert.Empty(t, engine.EffectivePermissions(nil, ""))
	assert.Equal(t, VisibilityOwnOnly, engine.DailyLogVisibility(nil))
}

func TestUserOverrideGrantsBeyondRoleDefault(t *testing.T) {
	store := NewOverrideStore()
	engine := NewEngine(store)
	worker := &Subject{ID: "u1", Role: RoleFieldWorker}

	require.False(t, engine.HasPermission(PermApproveTimeEntries, worker, ""))

	store.PutUserOverride(UserOverride{ID: "o1", UserID: "u1", Permission: PermApproveTimeEntries, Granted: true})
	assert.True(t, engine.HasPermission(PermApproveTimeEntries, worker, ""))
	assert.False(t, engine.HasPermission(PermManageUsers, worker, ""))

	store.RemoveUserOverride("o1")
	assert.False(t, engine.HasPermission(PermApproveTimeEntries, worker, ""))
}

func TestUserOverrideLastMatchWins(t *testing.T) {
	store := NewOverrideStore()
	engine := NewEngine(store)
	worker := &Subject{ID: "u1", Role: RoleFieldWorker}

	store.ReplaceAll([]UserOverride{
		{ID: "o1", UserID: "u1", Permission: PermApproveTimeEntries, Granted: true},
		{ID: "o2", UserID: "u1", Permission: PermApproveTimeEntries, Granted: false},
	}, nil)
	assert.False(t, engine.HasPermission(PermApproveTimeEntries, worker, ""))

	store.ReplaceAll([]UserOverride{
		{ID: "o1", UserID: "u1", Permission: PermApproveTimeEntries, Granted: false},
		{ID: "o2", UserID: "u1", Permission: PermApproveTimeEntries, Granted: true},
	}, nil)
	assert.True(t, engine.HasPermission(PermApproveTimeEntries, worker, ""))
}

func TestProjectOverrideOnlyAppliesWithMatchingProjectID(t *testing.T) {
	store := NewOverrideStore()
	engine := NewEngine(store)
	sub := &Subject{ID: "u1", Role: RoleViewer}

	store.PutUserOverride(UserOverride{ID: "o1", UserID: "u1", Permission: PermEditProjects, Granted: true})
	store.PutProjectOverride(ProjectOverride{ID: "p1", UserID: "u1", ProjectID: "proj-a", Permission: PermEditProjects, Granted: false})

	// No project supplied: user tier stands.
	assert.True(t, engine.HasPermission(PermEditProjects, sub, ""))
	// Different project: override does not match.
	assert.True(t, engine.HasPermission(PermEditProjects, sub, "proj-b"))
	// Matching project: project tier wins over the user override.
	assert.False(t, engine.HasPermission(PermEditProjects, sub, "proj-a"))
}

func TestExpiredProjectOverrideIsInert(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := NewOverrideStore()
	engine := NewEngine(store, WithClock(fixedClock(now)))
	sub := &Subject{ID: "u1", Role: RoleViewer}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	store.PutProjectOverride(ProjectOverride{
		ID: "p1", UserID: "u1", ProjectID: "proj-a",
		Permission: PermEditProjects, Granted: true, ExpiresAt: &past,
	})
	require.False(t, engine.HasPermission(PermEditProjects, sub, "proj-a"),
		"expired grant must fall back to role default")

	store.PutProjectOverride(ProjectOverride{
		ID: "p1", UserID: "u1", ProjectID: "proj-a",
		Permission: PermEditProjects, Granted: true, ExpiresAt: &future,
	})
	assert.True(t, engine.HasPermission(PermEditProjects, sub, "proj-a"))

	// No expiry means the override never ages out.
	store.PutProjectOverride(ProjectOverride{
		ID: "p1", UserID: "u1", ProjectID: "proj-a",
		Permission: PermEditProjects, Granted: true,
	})
	assert.True(t, engine.HasPermission(PermEditProjects, sub, "proj-a"))
}

func TestExpiredOverrideFallsBackToUserTier(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := NewOverrideStore()
	engine := NewEngine(store, WithClock(fixedClock(now)))
	sub := &Subject{ID: "u1", Role: RoleViewer}
	past := now.Add(-time.Minute)

	store.PutUserOverride(UserOverride{ID: "o1", UserID: "u1", Permission: PermExportData, Granted: true})
	store.PutProjectOverride(ProjectOverride{
		ID: "p1", UserID: "u1", ProjectID: "proj-a",
		Permission: PermExportData, Granted: false, ExpiresAt: &past,
	})

	assert.True(t, engine.HasPermission(PermExportData, sub, "proj-a"))
}

func TestEffectivePermissionsAgreesWithHasPermission(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))
	perms := AllPermissions()
	roles := AllRoles()
	projectIDs := []string{"", "proj-a", "proj-b"}

	for i := 0; i < 100; i++ {
		store := NewOverrideStore()
		engine := NewEngine(store, WithClock(fixedClock(now)))
		sub := &Subject{ID: fmt.Sprintf("u%d", i), Role: roles[rng.Intn(len(roles))]}

		var userOv []UserOverride
		for j := 0; j < rng.Intn(8); j++ {
			userOv = append(userOv, UserOverride{
				ID:         fmt.Sprintf("uo%d", j),
				UserID:     sub.ID,
				Permission: perms[rng.Intn(len(perms))],
				Granted:    rng.Intn(2) == 0,
			})
		}
		var projOv []ProjectOverride
		for j := 0; j < rng.Intn(8); j++ {
			o := ProjectOverride{
				ID:         fmt.Sprintf("po%d", j),
				UserID:     sub.ID,
				ProjectID:  projectIDs[1+rng.Intn(2)],
				Permission: perms[rng.Intn(len(perms))],
				Granted:    rng.Intn(2) == 0,
			}
			switch rng.Intn(3) {
			case 0:
				expired := now.Add(-time.Duration(1+rng.Intn(48)) * time.Hour)
				o.ExpiresAt = &expired
			case 1:
				live := now.Add(time.Duration(1+rng.Intn(48)) * time.Hour)
				o.ExpiresAt = &live
			}
			projOv = append(projOv, o)
		}
		store.ReplaceAll(userOv, projOv)

		projectID := projectIDs[rng.Intn(len(projectIDs))]
		effective := engine.EffectivePermissions(sub, projectID)
		for _, p := range perms {
			require.Equal(t, effective.Has(p), engine.HasPermission(p, sub, projectID),
				"case %d role %s project %q permission %s", i, sub.Role, projectID, p)
		}
	}
}

func TestCanManageRequiresStrictlyHigherHierarchy(t *testing.T) {
	engine := NewEngine(NewOverrideStore())

	admin := &Subject{ID: "a", Role: RoleAdmin}
	pm := &Subject{ID: "b", Role: RoleProjectManager}
	pm2 := &Subject{ID: "c", Role: RoleProjectManager}
	worker := &Subject{ID: "d", Role: RoleFieldWorker}

	assert.True(t, engine.CanManage(admin, pm))
	assert.True(t, engine.CanManage(pm, worker))
	// Equal hierarchy never manages, even with admin.users.manage held.
	assert.False(t, engine.CanManage(pm, pm2))
	assert.False(t, engine.CanManage(pm, admin))
	// Rank without the manage permission is not enough.
	assert.False(t, engine.CanManage(&Subject{ID: "e", Role: RoleDeveloper}, worker))
	assert.False(t, engine.CanManage(nil, worker))
	assert.False(t, engine.CanManage(admin, nil))
}

func TestCanManageIgnoresOverrides(t *testing.T) {
	store := NewOverrideStore()
	engine := NewEngine(store)
	foreman := &Subject{ID: "f", Role: RoleForeman}
	worker := &Subject{ID: "w", Role: RoleFieldWorker}

	// A granted manage-users override must not create management authority.
	store.PutUserOverride(UserOverride{ID: "o1", UserID: "f", Permission: PermManageUsers, Granted: true})
	require.True(t, engine.HasPermission(PermManageUsers, foreman, ""))
	assert.False(t, engine.CanManage(foreman, worker))
}

func TestCanAssignRoleGatedByHierarchy(t *testing.T) {
	engine := NewEngine(NewOverrideStore())
	pm := &Subject{ID: "p", Role: RoleProjectManager}
	admin := &Subject{ID: "a", Role: RoleAdmin}

	// Project manager holds admin.roles.assign but sits below admin.
	require.True(t, DefaultPermissions(RoleProjectManager).Has(PermAssignRoles))
	assert.False(t, engine.CanAssignRole(pm, RoleAdmin))
	assert.False(t, engine.CanAssignRole(pm, RoleProjectManager))
	assert.True(t, engine.CanAssignRole(pm, RoleForeman))

	assert.True(t, engine.CanAssignRole(admin, RoleProjectManager))
	assert.False(t, engine.CanAssignRole(nil, RoleViewer))
	assert.False(t, engine.CanAssignRole(&Subject{ID: "v", Role: RoleViewer}, RoleViewer))
}

func TestDailyLogVisibilityIsRoleFixed(t *testing.T) {
	store := NewOverrideStore()
	engine := NewEngine(store)
	worker := &Subject{ID: "w", Role: RoleFieldWorker}

	require.Equal(t, VisibilityOwnOnly, engine.DailyLogVisibility(worker))

	// Overrides adjust permissions, never visibility.
	store.PutUserOverride(UserOverride{ID: "o1", UserID: "w", Permission: PermApproveDailyLogs, Granted: true})
	assert.Equal(t, VisibilityOwnOnly, engine.DailyLogVisibility(worker))

	assert.Equal(t, VisibilityAll, engine.DailyLogVisibility(&Subject{ID: "a", Role: RoleAdmin}))
	assert.Equal(t, VisibilityAssignedProjects, engine.DailyLogVisibility(&Subject{ID: "f", Role: RoleForeman}))
}
