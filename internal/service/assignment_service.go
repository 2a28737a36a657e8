package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// AssignmentService ranks candidate authorities for issues and manages the
// authority roster. It only ranks; picking and confirming an assignee happens
// through the state machine's ASSIGNED transition.
type AssignmentService struct {
	issues      repository.IssueRepository
	authorities repository.AuthorityRepository
	logger      *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	IssueRepo     repository.IssueRepository
	AuthorityRepo repository.AuthorityRepository
	Logger        *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		issues:      deps.IssueRepo,
		authorities: deps.AuthorityRepo,
		logger:      logger,
	}
}

// RankCandidates orders active authorities in the issue's department by
// (open assigned/in-progress count asc, historical resolution rate desc,
// id asc). Candidates serving the issue's district are preferred when any
// exist; otherwise the whole department qualifies.
func (s *AssignmentService) RankCandidates(ctx context.Context, issue *domain.Issue) ([]domain.Authority, error) {
	active := domain.AuthorityActive
	department := issue.Category
	candidates, err := s.authorities.List(ctx, repository.AuthorityFilter{
		Department: &department,
		Status:     &active,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		return []domain.Authority{}, nil
	}

	if district := strings.TrimSpace(issue.Location.District); district != "" {
		var local []domain.Authority
		for _, candidate := range candidates {
			if strings.EqualFold(candidate.ServiceArea, district) {
				local = append(local, candidate)
			}
		}
		if len(local) > 0 {
			candidates = local
		}
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}
	workloads, err := s.issues.Workloads(ctx, ids)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := workloads[candidates[i].ID], workloads[candidates[j].ID]
		if a.OpenAssigned != b.OpenAssigned {
			return a.OpenAssigned < b.OpenAssigned
		}
		if a.ResolutionRate() != b.ResolutionRate() {
			return a.ResolutionRate() > b.ResolutionRate()
		}
		return candidates[i].ID < candidates[j].ID
	})
	return candidates, nil
}

// AuthorityInput describes authority create/update payloads.
type AuthorityInput struct {
	Name         string
	Department   domain.IssueCategory
	ContactEmail string
	ContactPhone string
	ServiceArea  string
	Status       domain.AuthorityStatus
}

func validateAuthorityInput(input AuthorityInput) map[string]any {
	details := map[string]any{}
	if strings.TrimSpace(input.Name) == "" {
		details["name"] = "required"
	}
	if !domain.ValidCategory(input.Department) {
		details["department"] = "unknown department"
	}
	if input.Status != "" && input.Status != domain.AuthorityActive && input.Status != domain.AuthorityInactive {
		details["status"] = "unknown status"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// CreateAuthority registers a new responsible authority.
func (s *AssignmentService) CreateAuthority(ctx context.Context, input AuthorityInput) (*domain.Authority, error) {
	if details := validateAuthorityInput(input); details != nil {
		return nil, apperrors.NewValidationError("invalid authority", details)
	}
	authority := &domain.Authority{
		Name:         strings.TrimSpace(input.Name),
		Department:   input.Department,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		ServiceArea:  input.ServiceArea,
		Status:       input.Status,
	}
	if authority.Status == "" {
		authority.Status = domain.AuthorityActive
	}
	if err := s.authorities.Create(ctx, authority); err != nil {
		return nil, apperrors.MapError(err)
	}
	return authority, nil
}

// UpdateAuthority replaces mutable authority fields.
func (s *AssignmentService) UpdateAuthority(ctx context.Context, id string, input AuthorityInput) (*domain.Authority, error) {
	if details := validateAuthorityInput(input); details != nil {
		return nil, apperrors.NewValidationError("invalid authority", details)
	}
	authority, err := s.GetAuthority(ctx, id)
	if err != nil {
		return nil, err
	}
	authority.Name = strings.TrimSpace(input.Name)
	authority.Department = input.Department
	authority.ContactEmail = input.ContactEmail
	authority.ContactPhone = input.ContactPhone
	authority.ServiceArea = input.ServiceArea
	if input.Status != "" {
		authority.Status = input.Status
	}
	if err := s.authorities.Update(ctx, authority); err != nil {
		return nil, apperrors.MapError(err)
	}
	return authority, nil
}

// GetAuthority loads one authority.
func (s *AssignmentService) GetAuthority(ctx context.Context, id string) (*domain.Authority, error) {
	authority, err := s.authorities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("authority", map[string]any{"authority_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return authority, nil
}

// ListAuthorities returns the roster.
func (s *AssignmentService) ListAuthorities(ctx context.Context, filter repository.AuthorityFilter) ([]domain.Authority, error) {
	authorities, err := s.authorities.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return authorities, nil
}

// DeleteAuthority removes an authority. Refused while any issue is assigned
// or in progress for it.
func (s *AssignmentService) DeleteAuthority(ctx context.Context, id string) error {
	if _, err := s.GetAuthority(ctx, id); err != nil {
		return err
	}
	workloads, err := s.issues.Workloads(ctx, []string{id})
	if err != nil {
		return apperrors.MapError(err)
	}
	if load, ok := workloads[id]; ok && load.OpenAssigned > 0 {
		return apperrors.NewConflict("authority has active assignments", map[string]any{
			"authority_id":     id,
			"open_assignments": load.OpenAssigned,
		})
	}
	if err := s.authorities.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("authority", map[string]any{"authority_id": id})
		}
		return apperrors.MapError(err)
	}
	return nil
}

// AuthorityPerformance recomputes derived workload counters from the issue
// store; nothing here is persisted as truth.
func (s *AssignmentService) AuthorityPerformance(ctx context.Context, id string) (*domain.AuthorityWorkload, error) {
	if _, err := s.GetAuthority(ctx, id); err != nil {
		return nil, err
	}
	workloads, err := s.issues.Workloads(ctx, []string{id})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	load := workloads[id]
	load.AuthorityID = id
	return &load, nil
}
