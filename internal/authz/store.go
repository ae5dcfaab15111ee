package authz

import "sync"

// OverrideStore holds the override collections the engine evaluates against.
// Reads vastly outnumber writes, so collections sit behind a RWMutex; a
// wholesale replace is never observed half-applied.
//
// Storage stays slice-ordered: when duplicate overrides exist for the same
// key the last one in collection order wins, matching how the admin API
// delivers them. The store is constructor-injected wherever decisions are
// needed, never a process-wide singleton.
type OverrideStore struct {
	mu       sync.RWMutex
	users    []UserOverride
	projects []ProjectOverride
}

// NewOverrideStore returns an empty store.
func NewOverrideStore() *OverrideStore {
	return &OverrideStore{}
}

// ReplaceAll swaps in freshly fetched collections. Last fetch wins; there is
// no incremental sync contract.
func (s *OverrideStore) ReplaceAll(users []UserOverride, projects []ProjectOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append([]UserOverride(nil), users...)
	s.projects = append([]ProjectOverride(nil), projects...)
}

// PutUserOverride appends a user-level override, replacing any record with
// the same ID in place.
func (s *OverrideStore) PutUserOverride(o UserOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == o.ID {
			s.users[i] = o
			return
		}
	}
	s.users = append(s.users, o)
}

// RemoveUserOverride deletes a user-level override by ID.
func (s *OverrideStore) RemoveUserOverride(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return true
		}
	}
	return false
}

// PutProjectOverride appends a project-level override, replacing any record
// with the same ID in place.
func (s *OverrideStore) PutProjectOverride(o ProjectOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == o.ID {
			s.projects[i] = o
			return
		}
	}
	s.projects = append(s.projects, o)
}

// RemoveProjectOverride deletes a project-level override by ID.
func (s *OverrideStore) RemoveProjectOverride(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == id {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			return true
		}
	}
	return false
}

// UserOverridesFor returns the user-level overrides for a user in collection
// order.
func (s *OverrideStore) UserOverridesFor(userID string) []UserOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []UserOverride
	for _, o := range s.users {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out
}

// ProjectOverridesFor returns the project-level overrides for a user within
// a project in collection order, expired records included.
func (s *OverrideStore) ProjectOverridesFor(userID, projectID string) []ProjectOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ProjectOverride
	for _, o := range s.projects {
		if o.UserID == userID && o.ProjectID == projectID {
			out = append(out, o)
		}
	}
	return out
}

// eachUserOverride visits matching user-level overrides in collection order
// without copying.
func (s *OverrideStore) eachUserOverride(userID string, fn func(UserOverride)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.users {
		if o.UserID == userID {
			fn(o)
		}
	}
}

// eachProjectOverride visits matching project-level overrides in collection
// order without copying.
func (s *OverrideStore) eachProjectOverride(userID, projectID string, fn func(ProjectOverride)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.projects {
		if o.UserID == userID && o.ProjectID == projectID {
			fn(o)
		}
	}
}

// Len reports the stored collection sizes.
func (s *OverrideStore) Len() (users, projects int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.projects)
}
