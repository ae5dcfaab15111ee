package dailylogs

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

// Repository provides PostgreSQL backed persistence for daily logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const logColumns = `id, project_id, author_id, log_date, weather, crew_count,
       work_done, issues, status, approved_by, created_at, updated_at`

func scanLog(row pgx.Row) (DailyLog, error) {
	var (
		l          DailyLog
		weather    *string
		issues     *string
		approvedBy *string
	)
	err := row.Scan(&l.ID, &l.ProjectID, &l.AuthorID, &l.LogDate, &weather, &l.CrewCount,
		&l.WorkDone, &issues, &l.Status, &approvedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DailyLog{}, shared.ErrNotFound
		}
		return DailyLog{}, err
	}
	if weather != nil {
		l.Weather = *weather
	}
	if issues != nil {
		l.Issues = *issues
	}
	if approvedBy != nil {
		l.ApprovedBy = *approvedBy
	}
	return l, nil
}

// GetLog retrieves one daily log by id.
func (r *Repository) GetLog(ctx context.Context, id string) (DailyLog, error) {
	return scanLog(r.pool.QueryRow(ctx, `SELECT `+logColumns+` FROM daily_logs WHERE id = $1`, id))
}

// ListLogs returns logs matching the filter, newest first, with a total for
// pagination.
func (r *Repository) ListLogs(ctx context.Context, filter ListFilter, page shared.Pagination) ([]DailyLog, int, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.ProjectID != "" {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.From.IsZero() {
		add("log_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("log_date <= $%d", filter.To)
	}
	if filter.VisibleProjects != nil {
		add("project_id = ANY($%d)", filter.VisibleProjects)
	}
	if filter.AuthorID != "" {
		add("author_id = $%d", filter.AuthorID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM daily_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+logColumns+` FROM daily_logs%s ORDER BY log_date DESC, created_at DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.pool.Query(ctx, query, append(args, page.PerPage, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []DailyLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, err
		}
		logs = append(logs, l)
	}
	return logs, total, rows.Err()
}

// CreateLog inserts a new daily log.
func (r *Repository) CreateLog(ctx context.Context, l DailyLog) error {
	const q = `
INSERT INTO daily_logs (id, project_id, author_id, log_date, weather, crew_count,
                        work_done, issues, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, $10)`
	_, err := r.pool.Exec(ctx, q, l.ID, l.ProjectID, l.AuthorID, l.LogDate, l.Weather,
		l.CrewCount, l.WorkDone, l.Issues, string(l.Status), l.CreatedAt)
	return err
}

// UpdateLog rewrites the editable fields of a draft log.
func (r *Repository) UpdateLog(ctx context.Context, l DailyLog) error {
	const q = `
UPDATE daily_logs
SET weather = NULLIF($2, ''), crew_count = $3, work_done = $4, issues = NULLIF($5, ''), updated_at = $6
WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, l.ID, l.Weather, l.CrewCount, l.WorkDone, l.Issues, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateStatus moves a log between lifecycle states. The expected current
// status keeps concurrent approvals honest.
func (r *Repository) UpdateStatus(ctx context.Context, id string, from, to Status, actorID string) error {
	const q = `
UPDATE daily_logs
SET status = $3, approved_by = NULLIF($4, ''), updated_at = $5
WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, q, id, string(from), string(to), actorID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidStatus
	}
	return nil
}

// DeleteLog removes a log.
func (r *Repository) DeleteLog(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM daily_logs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
