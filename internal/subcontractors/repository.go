package subcontractors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/girderhq/girder/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the directory.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const subColumns = `id, company_name, trade, contact_name, contact_email, contact_phone,
       license_number, is_active, created_at, updated_at`

func scanSub(row pgx.Row) (Subcontractor, error) {
	var (
		s       Subcontractor
		name    *string
		email   *string
		phone   *string
		license *string
	)
	err := row.Scan(&s.ID, &s.CompanyName, &s.Trade, &name, &email, &phone, &license,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subcontractor{}, shared.ErrNotFound
		}
		return Subcontractor{}, err
	}
	if name != nil {
		s.ContactName = *name
	}
	if email != nil {
		s.ContactEmail = *email
	}
	if phone != nil {
		s.ContactPhone = *phone
	}
	if license != nil {
		s.LicenseNumber = *license
	}
	return s, nil
}

// List returns directory entries matching the filter with a total count.
func (r *Repository) List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]Subcontractor, int, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Trade != "" {
		args = append(args, filter.Trade)
		conds = append(conds, fmt.Sprintf("trade = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM subcontractors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+subColumns+` FROM subcontractors%s ORDER BY company_name LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Subcontractor
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

// Get fetches one directory entry.
func (r *Repository) Get(ctx context.Context, id string) (Subcontractor, error) {
	return scanSub(r.pool.QueryRow(ctx, `SELECT `+subColumns+` FROM subcontractors WHERE id = $1`, id))
}

// Create inserts a directory entry.
func (r *Repository) Create(ctx context.Context, s Subcontractor) error {
	const q = `
INSERT INTO subcontractors (id, company_name, trade, contact_name, contact_email, contact_phone,
                            license_number, is_active, created_at, updated_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, $9, $9)`
	_, err := r.pool.Exec(ctx, q, s.ID, s.CompanyName, s.Trade, s.ContactName, s.ContactEmail,
		s.ContactPhone, s.LicenseNumber, s.IsActive, s.CreatedAt)
	return err
}

// Update rewrites a directory entry.
func (r *Repository) Update(ctx context.Context, s Subcontractor) error {
	const q = `
UPDATE subcontractors
SET company_name = $2, trade = $3, contact_name = NULLIF($4, ''), contact_email = NULLIF($5, ''),
    contact_phone = NULLIF($6, ''), license_number = NULLIF($7, ''), is_active = $8, updated_at = $9
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, s.ID, s.CompanyName, s.Trade, s.ContactName, s.ContactEmail,
		s.ContactPhone, s.LicenseNumber, s.IsActive, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
