package authz

import "time"

// Engine computes authorization decisions by layering role defaults with
// user-level and project-level overrides. Strict precedence: project
// override (unexpired, when a project id is supplied) over user override
// over role default. The engine owns no storage and never mutates the
// override collections.
type Engine struct {
	store *OverrideStore
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the wall-clock source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine constructs an Engine evaluating against the given store.
func NewEngine(store *OverrideStore, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HasPermission reports whether the subject holds the permission, optionally
// scoped to a project. An empty projectID skips the project tier entirely.
// A nil subject is fail-closed: no permission.
func (e *Engine) HasPermission(p Permission, sub *Subject, projectID string) bool {
	if sub == nil {
		return false
	}
	granted := DefaultPermissions(sub.Role).Has(p)
	e.store.eachUserOverride(sub.ID, func(o UserOverride) {
		if o.Permission == p {
			granted = o.Granted
		}
	})
	if projectID != "" {
		now := e.now()
		e.store.eachProjectOverride(sub.ID, projectID, func(o ProjectOverride) {
			if o.Permission == p && !o.Expired(now) {
				granted = o.Granted
			}
		})
	}
	return granted
}

// EffectivePermissions resolves the subject's full permission set under the
// same layering as HasPermission. A nil subject yields the empty set.
func (e *Engine) EffectivePermissions(sub *Subject, projectID string) PermissionSet {
	if sub == nil {
		return NewPermissionSet()
	}
	perms := DefaultPermissions(sub.Role)
	e.store.eachUserOverride(sub.ID, func(o UserOverride) {
		if o.Granted {
			perms.Insert(o.Permission)
		} else {
			perms.Remove(o.Permission)
		}
	})
	if projectID != "" {
		now := e.now()
		e.store.eachProjectOverride(sub.ID, projectID, func(o ProjectOverride) {
			if o.Expired(now) {
				return
			}
			if o.Granted {
				perms.Insert(o.Permission)
			} else {
				perms.Remove(o.Permission)
			}
		})
	}
	return perms
}

// CanManage reports whether the manager may administer the target user.
// The check reads the manager's role-default set, not the override-adjusted
// one: overrides must not escalate into management authority.
func (e *Engine) CanManage(manager, target *Subject) bool {
	if manager == nil || target == nil {
		return false
	}
	if !DefaultPermissions(manager.Role).Has(PermManageUsers) {
		return false
	}
	return HierarchyLevel(manager.Role) > HierarchyLevel(target.Role)
}

// CanAssignRole reports whether the assigner may grant the given role.
// Assigners can only hand out roles strictly below their own rank.
func (e *Engine) CanAssignRole(assigner *Subject, role Role) bool {
	if assigner == nil {
		return false
	}
	if !DefaultPermissions(assigner.Role).Has(PermAssignRoles) {
		return false
	}
	return HierarchyLevel(assigner.Role) > HierarchyLevel(role)
}

// DailyLogVisibility returns the subject's daily log visibility. Visibility
// is role-fixed; overrides do not widen or narrow it. Nil subject yields the
// most restrictive level.
func (e *Engine) DailyLogVisibility(sub *Subject) Visibility {
	if sub == nil {
		return VisibilityOwnOnly
	}
	return DefaultDailyLogVisibility(sub.Role)
}
