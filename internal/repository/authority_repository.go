package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// AuthorityFilter defines query params for authority listing.
type AuthorityFilter struct {
	Department  *domain.IssueCategory
	Status      *domain.AuthorityStatus
	ServiceArea *string
	Limit       int
	Offset      int
}

// AuthorityRepository handles persistence for responsible authorities.
type AuthorityRepository interface {
	Create(ctx context.Context, authority *domain.Authority) error
	Update(ctx context.Context, authority *domain.Authority) error
	GetByID(ctx context.Context, id string) (*domain.Authority, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter AuthorityFilter) ([]domain.Authority, error)
}

type authorityRepository struct {
	pool *pgxpool.Pool
}

// NewAuthorityRepository instantiates the repository.
func NewAuthorityRepository(pool *pgxpool.Pool) AuthorityRepository {
	return &authorityRepository{pool: pool}
}

func (r *authorityRepository) Create(ctx context.Context, authority *domain.Authority) error {
	const query = `
        INSERT INTO authorities (name, department, contact_email, contact_phone, service_area, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		authority.Name,
		authority.Department,
		authority.ContactEmail,
		authority.ContactPhone,
		authority.ServiceArea,
		authority.Status,
	).Scan(&authority.ID, &authority.CreatedAt, &authority.UpdatedAt)
}

func (r *authorityRepository) Update(ctx context.Context, authority *domain.Authority) error {
	const query = `
        UPDATE authorities
        SET name=$1, department=$2, contact_email=$3, contact_phone=$4, service_area=$5, status=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		authority.Name,
		authority.Department,
		authority.ContactEmail,
		authority.ContactPhone,
		authority.ServiceArea,
		authority.Status,
		authority.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *authorityRepository) GetByID(ctx context.Context, id string) (*domain.Authority, error) {
	const query = `
        SELECT id, name, department, contact_email, contact_phone, service_area, status, created_at, updated_at
        FROM authorities WHERE id=$1`
	var authority domain.Authority
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&authority.ID,
		&authority.Name,
		&authority.Department,
		&authority.ContactEmail,
		&authority.ContactPhone,
		&authority.ServiceArea,
		&authority.Status,
		&authority.CreatedAt,
		&authority.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &authority, nil
}

func (r *authorityRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM authorities WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *authorityRepository) List(ctx context.Context, filter AuthorityFilter) ([]domain.Authority, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Department != nil {
		args = append(args, *filter.Department)
		clauses = append(clauses, fmt.Sprintf("department=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.ServiceArea != nil {
		args = append(args, *filter.ServiceArea)
		clauses = append(clauses, fmt.Sprintf("service_area=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
        SELECT id, name, department, contact_email, contact_phone, service_area, status, created_at, updated_at
        FROM authorities WHERE %s ORDER BY name ASC LIMIT %d OFFSET %d`,
		strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Authority
	for rows.Next() {
		var authority domain.Authority
		if err := rows.Scan(
			&authority.ID,
			&authority.Name,
			&authority.Department,
			&authority.ContactEmail,
			&authority.ContactPhone,
			&authority.ServiceArea,
			&authority.Status,
			&authority.CreatedAt,
			&authority.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, authority)
	}
	return result, rows.Err()
}
