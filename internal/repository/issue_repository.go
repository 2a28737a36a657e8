package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// IssueFilter captures listing parameters.
type IssueFilter struct {
	ReporterID  *string
	AuthorityID *string
	Statuses    []domain.IssueStatus
	Categories  []domain.IssueCategory
	Priorities  []domain.IssuePriority
	Ward        *string
	Visibility  *domain.IssueVisibility
	Limit       int
	Offset      int
}

// IssueRepository encapsulates issue persistence. UpdateStatus is the only
// way a status reaches storage and commits the status together with the
// timeline in one statement; it returns ErrStatusConflict when the persisted
// status no longer matches the expected one.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	UpdateStatus(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error
	UpdateEngagement(ctx context.Context, issue *domain.Issue) error
	ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	Workloads(ctx context.Context, authorityIDs []string) (map[string]domain.AuthorityWorkload, error)
	ResolvedHoursByCategory(ctx context.Context, category domain.IssueCategory) ([]float64, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository instantiates a Postgres-backed repository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, title, description, category, priority, location, media_refs,
        reporter_id, assigned_authority_id, status, timeline, upvoters, comments,
        estimated_resolution_hours, actual_resolution_hours, tags, visibility,
        created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	location, err := json.Marshal(issue.Location)
	if err != nil {
		return err
	}
	timeline, err := json.Marshal(issue.Timeline)
	if err != nil {
		return err
	}
	comments, err := json.Marshal(issue.Comments)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO issues (title, description, category, priority, location, media_refs,
            reporter_id, assigned_authority_id, status, timeline, upvoters, comments,
            estimated_resolution_hours, tags, visibility)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Category,
		issue.Priority,
		location,
		issue.MediaRefs,
		issue.ReporterID,
		issue.AssignedAuthorityID,
		issue.Status,
		timeline,
		issue.Upvoters,
		comments,
		issue.EstimatedResolutionHours,
		issue.Tags,
		issue.Visibility,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := fmt.Sprintf(`SELECT %s FROM issues WHERE id=$1`, issueColumns)
	row := r.pool.QueryRow(ctx, query, id)
	return scanIssueRow(row)
}

func (r *issueRepository) UpdateStatus(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	timeline, err := json.Marshal(issue.Timeline)
	if err != nil {
		return err
	}
	const query = `
        UPDATE issues SET status=$1, timeline=$2, assigned_authority_id=$3,
            actual_resolution_hours=$4, updated_at=NOW()
        WHERE id=$5 AND status=$6`
	cmd, err := r.pool.Exec(ctx, query,
		issue.Status,
		timeline,
		issue.AssignedAuthorityID,
		issue.ActualResolutionHours,
		issue.ID,
		expected,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStatusConflict
	}
	return nil
}

func (r *issueRepository) UpdateEngagement(ctx context.Context, issue *domain.Issue) error {
	comments, err := json.Marshal(issue.Comments)
	if err != nil {
		return err
	}
	const query = `
        UPDATE issues SET upvoters=$1, comments=$2, tags=$3, updated_at=NOW()
        WHERE id=$4`
	cmd, err := r.pool.Exec(ctx, query,
		issue.Upvoters,
		comments,
		issue.Tags,
		issue.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ReporterID != nil {
		args = append(args, *filter.ReporterID)
		clauses = append(clauses, fmt.Sprintf("reporter_id=$%d", len(args)))
	}
	if filter.AuthorityID != nil {
		args = append(args, *filter.AuthorityID)
		clauses = append(clauses, fmt.Sprintf("assigned_authority_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Ward != nil {
		args = append(args, *filter.Ward)
		clauses = append(clauses, fmt.Sprintf("location->>'ward'=$%d", len(args)))
	}
	if filter.Visibility != nil {
		args = append(args, *filter.Visibility)
		clauses = append(clauses, fmt.Sprintf("visibility=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM issues WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		issueColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssueRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) Workloads(ctx context.Context, authorityIDs []string) (map[string]domain.AuthorityWorkload, error) {
	result := make(map[string]domain.AuthorityWorkload, len(authorityIDs))
	if len(authorityIDs) == 0 {
		return result, nil
	}
	const query = `
        SELECT assigned_authority_id,
               COUNT(*) FILTER (WHERE status IN ('ASSIGNED','IN_PROGRESS')),
               COUNT(*) FILTER (WHERE status IN ('RESOLVED','CLOSED')),
               COUNT(*)
        FROM issues
        WHERE assigned_authority_id = ANY($1)
        GROUP BY assigned_authority_id`
	rows, err := r.pool.Query(ctx, query, authorityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var load domain.AuthorityWorkload
		if err := rows.Scan(&load.AuthorityID, &load.OpenAssigned, &load.ResolvedTotal, &load.AssignedTotal); err != nil {
			return nil, err
		}
		result[load.AuthorityID] = load
	}
	return result, rows.Err()
}

func (r *issueRepository) ResolvedHoursByCategory(ctx context.Context, category domain.IssueCategory) ([]float64, error) {
	const query = `
        SELECT actual_resolution_hours FROM issues
        WHERE category=$1 AND actual_resolution_hours IS NOT NULL`
	rows, err := r.pool.Query(ctx, query, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hours []float64
	for rows.Next() {
		var h float64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssueRow(row rowScanner) (*domain.Issue, error) {
	var (
		issue    domain.Issue
		location []byte
		timeline []byte
		comments []byte
	)
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Category,
		&issue.Priority,
		&location,
		&issue.MediaRefs,
		&issue.ReporterID,
		&issue.AssignedAuthorityID,
		&issue.Status,
		&timeline,
		&issue.Upvoters,
		&comments,
		&issue.EstimatedResolutionHours,
		&issue.ActualResolutionHours,
		&issue.Tags,
		&issue.Visibility,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(location, &issue.Location); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(timeline, &issue.Timeline); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(comments, &issue.Comments); err != nil {
		return nil, err
	}
	return &issue, nil
}
