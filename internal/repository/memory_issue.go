package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// memoryIssueRepository is an in-memory IssueRepository with the same
// conflict semantics as the Postgres implementation. Used by tests and
// DSN-less runs.
type memoryIssueRepository struct {
	mu     sync.RWMutex
	issues map[string]*domain.Issue
}

// NewMemoryIssueRepository returns an in-memory issue store.
func NewMemoryIssueRepository() IssueRepository {
	return &memoryIssueRepository{issues: make(map[string]*domain.Issue)}
}

func (r *memoryIssueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	issue.UpdatedAt = now
	r.issues[issue.ID] = cloneIssue(issue)
	return nil
}

func (r *memoryIssueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneIssue(stored), nil
}

func (r *memoryIssueRepository) UpdateStatus(ctx context.Context, issue *domain.Issue, expected domain.IssueStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[issue.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if stored.Status != expected {
		return ErrStatusConflict
	}
	stored.Status = issue.Status
	stored.Timeline = append([]domain.TimelineEntry(nil), issue.Timeline...)
	stored.AssignedAuthorityID = copyStringPtr(issue.AssignedAuthorityID)
	stored.ActualResolutionHours = copyFloatPtr(issue.ActualResolutionHours)
	stored.UpdatedAt = time.Now()
	issue.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryIssueRepository) UpdateEngagement(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.issues[issue.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Upvoters = append([]string(nil), issue.Upvoters...)
	stored.Comments = append([]domain.Comment(nil), issue.Comments...)
	stored.Tags = append([]string(nil), issue.Tags...)
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *memoryIssueRepository) ListWithFilter(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Issue
	for _, stored := range r.issues {
		if !matchesIssueFilter(stored, filter) {
			continue
		}
		result = append(result, *cloneIssue(stored))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.Issue{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

func (r *memoryIssueRepository) Workloads(ctx context.Context, authorityIDs []string) (map[string]domain.AuthorityWorkload, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := make(map[string]struct{}, len(authorityIDs))
	for _, id := range authorityIDs {
		wanted[id] = struct{}{}
	}
	result := make(map[string]domain.AuthorityWorkload, len(authorityIDs))
	for _, stored := range r.issues {
		if stored.AssignedAuthorityID == nil {
			continue
		}
		id := *stored.AssignedAuthorityID
		if _, ok := wanted[id]; !ok {
			continue
		}
		load := result[id]
		load.AuthorityID = id
		load.AssignedTotal++
		switch stored.Status {
		case domain.IssueStatusAssigned, domain.IssueStatusInProgress:
			load.OpenAssigned++
		case domain.IssueStatusResolved, domain.IssueStatusClosed:
			load.ResolvedTotal++
		}
		result[id] = load
	}
	return result, nil
}

func (r *memoryIssueRepository) ResolvedHoursByCategory(ctx context.Context, category domain.IssueCategory) ([]float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var hours []float64
	for _, stored := range r.issues {
		if stored.Category == category && stored.ActualResolutionHours != nil {
			hours = append(hours, *stored.ActualResolutionHours)
		}
	}
	return hours, nil
}

func matchesIssueFilter(issue *domain.Issue, filter IssueFilter) bool {
	if filter.ReporterID != nil && issue.ReporterID != *filter.ReporterID {
		return false
	}
	if filter.AuthorityID != nil {
		if issue.AssignedAuthorityID == nil || *issue.AssignedAuthorityID != *filter.AuthorityID {
			return false
		}
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, issue.Status) {
		return false
	}
	if len(filter.Categories) > 0 && !containsCategory(filter.Categories, issue.Category) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, issue.Priority) {
		return false
	}
	if filter.Ward != nil && issue.Location.Ward != *filter.Ward {
		return false
	}
	if filter.Visibility != nil && issue.Visibility != *filter.Visibility {
		return false
	}
	return true
}

func containsStatus(list []domain.IssueStatus, s domain.IssueStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsCategory(list []domain.IssueCategory, c domain.IssueCategory) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.IssuePriority, p domain.IssuePriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func cloneIssue(src *domain.Issue) *domain.Issue {
	dup := *src
	dup.MediaRefs = append([]string(nil), src.MediaRefs...)
	dup.Timeline = append([]domain.TimelineEntry(nil), src.Timeline...)
	dup.Upvoters = append([]string(nil), src.Upvoters...)
	dup.Comments = append([]domain.Comment(nil), src.Comments...)
	dup.Tags = append([]string(nil), src.Tags...)
	dup.AssignedAuthorityID = copyStringPtr(src.AssignedAuthorityID)
	dup.EstimatedResolutionHours = copyFloatPtr(src.EstimatedResolutionHours)
	dup.ActualResolutionHours = copyFloatPtr(src.ActualResolutionHours)
	return &dup
}

func copyStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
