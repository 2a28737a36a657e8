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

type contributionKey struct {
	UserID  string
	Type    domain.ContributionType
	IssueID string
}

// memoryContributionRepository mirrors the Postgres ledger semantics,
// including the (user, type, issue) uniqueness, for tests and DSN-less runs.
type memoryContributionRepository struct {
	mu     sync.Mutex
	events map[contributionKey]*domain.ContributionEvent
}

// NewMemoryContributionRepository returns an in-memory ledger.
func NewMemoryContributionRepository() ContributionRepository {
	return &memoryContributionRepository{events: make(map[contributionKey]*domain.ContributionEvent)}
}

func (r *memoryContributionRepository) Insert(ctx context.Context, event *domain.ContributionEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := contributionKey{UserID: event.UserID, Type: event.Type, IssueID: event.IssueID}
	if existing, ok := r.events[key]; ok {
		*event = *existing
		return false, nil
	}
	event.ID = uuid.NewString()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	stored := *event
	r.events[key] = &stored
	return true, nil
}

func (r *memoryContributionRepository) GetByKey(ctx context.Context, userID string, eventType domain.ContributionType, issueID string) (*domain.ContributionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.events[contributionKey{UserID: userID, Type: eventType, IssueID: issueID}]; ok {
		dup := *existing
		return &dup, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryContributionRepository) ListWithFilter(ctx context.Context, filter ContributionFilter) ([]domain.ContributionEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ContributionEvent
	for _, event := range r.events {
		if event.Period.Year != filter.Year {
			continue
		}
		if filter.Month != nil && event.Period.Month != *filter.Month {
			continue
		}
		if filter.Category != nil && event.Category != *filter.Category {
			continue
		}
		if filter.UserID != nil && event.UserID != *filter.UserID {
			continue
		}
		result = append(result, *event)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memoryContributionRepository) SumByUser(ctx context.Context, userID string, period domain.PeriodKey) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, event := range r.events {
		if event.UserID != userID || event.Period.Year != period.Year {
			continue
		}
		if period.Month != 0 && event.Period.Month != period.Month {
			continue
		}
		total += event.Points
	}
	return total, nil
}
