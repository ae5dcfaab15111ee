package materials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/girderhq/girder/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the material catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const materialColumns = `id, name, sku, unit, unit_cost, supplier, status, created_at, updated_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var (
		m        Material
		supplier *string
	)
	err := row.Scan(&m.ID, &m.Name, &m.SKU, &m.Unit, &m.UnitCost, &supplier, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, shared.ErrNotFound
		}
		return Material{}, err
	}
	if supplier != nil {
		m.Supplier = *supplier
	}
	return m, nil
}

// List returns catalog entries matching the filter with a total count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Material, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR sku ILIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM materials`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+materialColumns+` FROM materials%s ORDER BY name LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// Get fetches one catalog entry.
func (r *Repository) Get(ctx context.Context, id string) (Material, error) {
	return scanMaterial(r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id))
}

// Create inserts a catalog entry. SKU is unique.
func (r *Repository) Create(ctx context.Context, m Material) error {
	const q = `
INSERT INTO materials (id, name, sku, unit, unit_cost, supplier, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $8)`
	_, err := r.pool.Exec(ctx, q, m.ID, m.Name, m.SKU, m.Unit, m.UnitCost, m.Supplier, string(m.Status), m.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.ErrAlreadyExists
	}
	return err
}

// Update rewrites a catalog entry.
func (r *Repository) Update(ctx context.Context, m Material) error {
	const q = `
UPDATE materials
SET name = $2, unit = $3, unit_cost = $4, supplier = NULLIF($5, ''), status = $6, updated_at = $7
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, m.ID, m.Name, m.Unit, m.UnitCost, m.Supplier, string(m.Status), time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
