// Package audit exposes the audit trail written by permission and user
// administration flows.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/girderhq/girder/internal/shared"
)

// Entry is one audit trail row.
type Entry struct {
	ID       int64          `json:"id"`
	ActorID  string         `json:"actor_id,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// Filter narrows an audit listing.
type Filter struct {
	ActorID string
	Entity  string
	Action  string
	Since   time.Time
}

// RepositoryPort defines data access for the audit trail.
type RepositoryPort interface {
	ListEntries(ctx context.Context, filter Filter, page shared.Pagination) ([]Entry, int, error)
}

// Repository reads audit_logs from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListEntries returns audit rows matching the filter, newest first.
func (r *Repository) ListEntries(ctx context.Context, filter Filter, page shared.Pagination) ([]Entry, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ActorID != "" {
		add("actor_id = $%d", filter.ActorID)
	}
	if filter.Entity != "" {
		add("entity = $%d", filter.Entity)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if !filter.Since.IsZero() {
		add("occurred_at >= $%d", filter.Since)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
SELECT id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs%s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			actorID *string
			rawMeta []byte
		)
		if err := rows.Scan(&e.ID, &actorID, &e.Action, &e.Entity, &e.EntityID, &rawMeta, &e.At); err != nil {
			return nil, 0, err
		}
		if actorID != nil {
			e.ActorID = *actorID
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &e.Meta); err != nil {
				return nil, 0, fmt.Errorf("audit: decode meta for row %d: %w", e.ID, err)
			}
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Service wraps the audit listing.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns audit entries with pagination metadata.
func (s *Service) List(ctx context.Context, filter Filter, page shared.Pagination) ([]Entry, shared.Pagination, error) {
	entries, total, err := s.repo.ListEntries(ctx, filter, page)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return entries, shared.NewPagination(page.Page, page.PerPage, total), nil
}
