package authz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/girderhq/girder/internal/shared"
)

// Repository persists override records and permission templates. The
// engine never touches postgres directly; the service loads collections
// wholesale into the in-memory store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadOverrides fetches both override collections in collection order.
// User and project tiers load concurrently; the pair is a consistent unit
// for a wholesale store replace.
func (r *Repository) LoadOverrides(ctx context.Context) ([]UserOverride, []ProjectOverride, error) {
	var (
		users    []UserOverride
		projects []ProjectOverride
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = r.listUserOverrides(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		projects, err = r.listProjectOverrides(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return users, projects, nil
}

func (r *Repository) listUserOverrides(ctx context.Context) ([]UserOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, permission, granted, created_by, created_at
		FROM user_permission_overrides
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserOverride
	for rows.Next() {
		var o UserOverride
		var raw string
		if err := rows.Scan(&o.ID, &o.UserID, &raw, &o.Granted, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, err
		}
		perm, err := ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		o.Permission = perm
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repository) listProjectOverrides(ctx context.Context) ([]ProjectOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, project_id, permission, granted, expires_at, created_by, created_at
		FROM project_permission_overrides
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProjectOverride
	for rows.Next() {
		var o ProjectOverride
		var raw string
		if err := rows.Scan(&o.ID, &o.UserID, &o.ProjectID, &raw, &o.Granted, &o.ExpiresAt, &o.CreatedBy, &o.CreatedAt); err != nil {
			return nil, err
		}
		perm, err := ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		o.Permission = perm
		out = append(out, o)
	}
	return out, rows.Err()
}

// InsertUserOverride persists a user-level override.
func (r *Repository) InsertUserOverride(ctx context.Context, o UserOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_permission_overrides (id, user_id, permission, granted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.UserID, string(o.Permission), o.Granted, o.CreatedBy, o.CreatedAt)
	return mapPgError(err)
}

// DeleteUserOverride removes a user-level override by ID.
func (r *Repository) DeleteUserOverride(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_permission_overrides WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// InsertProjectOverride persists a project-level override.
func (r *Repository) InsertProjectOverride(ctx context.Context, o ProjectOverride) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO project_permission_overrides (id, user_id, project_id, permission, granted, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, o.ID, o.UserID, o.ProjectID, string(o.Permission), o.Granted, o.ExpiresAt, o.CreatedBy, o.CreatedAt)
	return mapPgError(err)
}

// DeleteProjectOverride removes a project-level override by ID.
func (r *Repository) DeleteProjectOverride(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM project_permission_overrides WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PurgeExpiredProjectOverrides deletes project overrides past their expiry.
// Evaluation already ignores them; this is housekeeping owned by the worker,
// never the engine.
func (r *Repository) PurgeExpiredProjectOverrides(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM project_permission_overrides
		WHERE expires_at IS NOT NULL AND expires_at < $1
	`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListTemplates returns all permission templates ordered by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]PermissionTemplate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, scope, tool_access, created_at, updated_at
		FROM permission_templates
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PermissionTemplate
	for rows.Next() {
		var t PermissionTemplate
		var toolAccess []byte
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &toolAccess, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if len(toolAccess) > 0 {
			if err := json.Unmarshal(toolAccess, &t.ToolAccess); err != nil {
				return nil, err
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTemplate fetches a template by ID.
func (r *Repository) GetTemplate(ctx context.Context, id string) (PermissionTemplate, error) {
	var t PermissionTemplate
	var toolAccess []byte
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, description, scope, tool_access, created_at, updated_at
		FROM permission_templates
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Name, &t.Description, &t.Scope, &toolAccess, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PermissionTemplate{}, shared.ErrNotFound
		}
		return PermissionTemplate{}, err
	}
	if len(toolAccess) > 0 {
		if err := json.Unmarshal(toolAccess, &t.ToolAccess); err != nil {
			return PermissionTemplate{}, err
		}
	}
	return t, nil
}

// ListTemplateAssignments returns assignments for a user.
func (r *Repository) ListTemplateAssignments(ctx context.Context, userID string) ([]TemplateAssignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, template_id, project_id, assigned_by, created_at
		FROM template_assignments
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TemplateAssignment
	for rows.Next() {
		var a TemplateAssignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.TemplateID, &a.ProjectID, &a.AssignedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrAlreadyExists
	}
	return err
}
