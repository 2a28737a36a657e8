package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// ContributionFilter windows ledger reads for aggregation. Month nil means
// the whole year.
type ContributionFilter struct {
	Year     int
	Month    *int
	Category *domain.IssueCategory
	UserID   *string
}

// ContributionRepository persists the append-only contribution ledger.
// Insert reports false when the (user, type, issue) key already holds an
// event; the caller receives the stored row either way and concurrent
// duplicate attempts resolve to exactly one inserted row.
type ContributionRepository interface {
	Insert(ctx context.Context, event *domain.ContributionEvent) (bool, error)
	GetByKey(ctx context.Context, userID string, eventType domain.ContributionType, issueID string) (*domain.ContributionEvent, error)
	ListWithFilter(ctx context.Context, filter ContributionFilter) ([]domain.ContributionEvent, error)
	SumByUser(ctx context.Context, userID string, period domain.PeriodKey) (int, error)
}

type contributionRepository struct {
	pool *pgxpool.Pool
}

// NewContributionRepository instantiates a Postgres-backed ledger.
func NewContributionRepository(pool *pgxpool.Pool) ContributionRepository {
	return &contributionRepository{pool: pool}
}

func (r *contributionRepository) Insert(ctx context.Context, event *domain.ContributionEvent) (bool, error) {
	// The dedup relies on the UNIQUE (user_id, event_type, issue_id) index;
	// losing the race is a no-op, not an error.
	const query = `
        INSERT INTO contribution_events (user_id, event_type, issue_id, points, period_month, period_year, category)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (user_id, event_type, issue_id) DO NOTHING
        RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		event.UserID,
		event.Type,
		event.IssueID,
		event.Points,
		event.Period.Month,
		event.Period.Year,
		event.Category,
	).Scan(&event.ID, &event.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}
	existing, err := r.GetByKey(ctx, event.UserID, event.Type, event.IssueID)
	if err != nil {
		return false, err
	}
	*event = *existing
	return false, nil
}

func (r *contributionRepository) GetByKey(ctx context.Context, userID string, eventType domain.ContributionType, issueID string) (*domain.ContributionEvent, error) {
	const query = `
        SELECT id, user_id, event_type, issue_id, points, period_month, period_year, category, created_at
        FROM contribution_events
        WHERE user_id=$1 AND event_type=$2 AND issue_id=$3`
	var event domain.ContributionEvent
	if err := r.pool.QueryRow(ctx, query, userID, eventType, issueID).Scan(
		&event.ID,
		&event.UserID,
		&event.Type,
		&event.IssueID,
		&event.Points,
		&event.Period.Month,
		&event.Period.Year,
		&event.Category,
		&event.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *contributionRepository) ListWithFilter(ctx context.Context, filter ContributionFilter) ([]domain.ContributionEvent, error) {
	clauses := []string{"period_year=$1"}
	args := []any{filter.Year}

	if filter.Month != nil {
		args = append(args, *filter.Month)
		clauses = append(clauses, fmt.Sprintf("period_month=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT id, user_id, event_type, issue_id, points, period_month, period_year, category, created_at
        FROM contribution_events WHERE %s ORDER BY created_at ASC`,
		strings.Join(clauses, " AND "))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ContributionEvent
	for rows.Next() {
		var event domain.ContributionEvent
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.Type,
			&event.IssueID,
			&event.Points,
			&event.Period.Month,
			&event.Period.Year,
			&event.Category,
			&event.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, event)
	}
	return result, rows.Err()
}

func (r *contributionRepository) SumByUser(ctx context.Context, userID string, period domain.PeriodKey) (int, error) {
	query := `SELECT COALESCE(SUM(points),0) FROM contribution_events WHERE user_id=$1 AND period_year=$2`
	args := []any{userID, period.Year}
	if period.Month != 0 {
		query += ` AND period_month=$3`
		args = append(args, period.Month)
	}
	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
