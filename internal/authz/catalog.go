package authz

// Role catalog: static defaults per role. Pure lookup, no mutation, no I/O.
// Every role in the closed enumeration has an explicit entry; hierarchy does
// not imply permission inheritance, each set is enumerated independently.

var roleDefaults = map[Role][]Permission{
	// Admin holds the full enumeration by construction.
	RoleAdmin: allPermissions,
	RoleProjectManager: {
		PermViewProjects, PermCreateProjects, PermEditProjects, PermDeleteProjects,
		PermViewDailyLogs, PermCreateDailyLogs, PermApproveDailyLogs,
		PermViewMaterials, PermManageMaterials,
		PermViewSubcontractors, PermManageSubcontractors,
		PermViewTimeEntries, PermCreateTimeEntries, PermApproveTimeEntries,
		PermViewReports, PermExportData,
		PermManageUsers, PermAssignRoles, PermManagePermissions,
	},
	RoleDeveloper: {
		PermViewProjects, PermCreateProjects, PermEditProjects,
		PermViewDailyLogs,
		PermViewMaterials,
		PermViewSubcontractors,
		PermViewTimeEntries,
		PermViewReports, PermExportData,
	},
	RoleArchitect: {
		PermViewProjects, PermEditProjects,
		PermViewDailyLogs,
		PermViewMaterials,
		PermViewSubcontractors,
		PermViewReports,
	},
	RoleForeman: {
		PermViewProjects,
		PermViewDailyLogs, PermCreateDailyLogs, PermApproveDailyLogs,
		PermViewMaterials, PermManageMaterials,
		PermViewSubcontractors,
		PermViewTimeEntries, PermCreateTimeEntries, PermApproveTimeEntries,
	},
	RoleCrewLeader: {
		PermViewProjects,
		PermViewDailyLogs, PermCreateDailyLogs,
		PermViewMaterials,
		PermViewTimeEntries, PermCreateTimeEntries,
	},
	RoleOfficeStaff: {
		PermViewProjects,
		PermViewDailyLogs,
		PermViewMaterials, PermManageMaterials,
		PermViewSubcontractors, PermManageSubcontractors,
		PermViewTimeEntries,
		PermViewReports, PermExportData,
	},
	RoleFieldWorker: {
		PermViewProjects,
		PermViewDailyLogs, PermCreateDailyLogs,
		PermViewMaterials,
		PermViewTimeEntries, PermCreateTimeEntries,
	},
	RoleViewer: {
		PermViewProjects,
		PermViewDailyLogs,
		PermViewMaterials,
		PermViewSubcontractors,
		PermViewReports,
	},
}

var roleVisibility = map[Role]Visibility{
	RoleAdmin:          VisibilityAll,
	RoleProjectManager: VisibilityAll,
	RoleDeveloper:      VisibilityAll,
	RoleArchitect:      VisibilityAssignedProjects,
	RoleForeman:        VisibilityAssignedProjects,
	RoleCrewLeader:     VisibilityAssignedProjects,
	RoleOfficeStaff:    VisibilityAll,
	RoleFieldWorker:    VisibilityOwnOnly,
	RoleViewer:         VisibilityAssignedProjects,
}

// Nine roles share eight levels: crewLeader and officeStaff sit at the same
// rank, supervisory and administrative tracks being incomparable. Hierarchy
// feeds manage/assign checks only.
var roleHierarchy = map[Role]int{
	RoleAdmin:          8,
	RoleProjectManager: 7,
	RoleDeveloper:      6,
	RoleArchitect:      5,
	RoleForeman:        4,
	RoleCrewLeader:     3,
	RoleOfficeStaff:    3,
	RoleFieldWorker:    2,
	RoleViewer:         1,
}

// DefaultPermissions returns a copy of the fixed permission set for a role.
func DefaultPermissions(role Role) PermissionSet {
	return NewPermissionSet(roleDefaults[role]...)
}

// DefaultDailyLogVisibility returns the role-fixed daily log visibility.
func DefaultDailyLogVisibility(role Role) Visibility {
	if v, ok := roleVisibility[role]; ok {
		return v
	}
	return VisibilityOwnOnly
}

// HierarchyLevel returns the seniority rank for a role, 1 (viewer) through
// 8 (admin). Higher means more senior.
func HierarchyLevel(role Role) int {
	return roleHierarchy[role]
}
