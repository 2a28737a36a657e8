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

// memoryAuthorityRepository is an in-memory AuthorityRepository.
type memoryAuthorityRepository struct {
	mu          sync.RWMutex
	authorities map[string]*domain.Authority
}

// NewMemoryAuthorityRepository returns an in-memory authority store.
func NewMemoryAuthorityRepository() AuthorityRepository {
	return &memoryAuthorityRepository{authorities: make(map[string]*domain.Authority)}
}

func (r *memoryAuthorityRepository) Create(ctx context.Context, authority *domain.Authority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if authority.ID == "" {
		authority.ID = uuid.NewString()
	}
	now := time.Now()
	if authority.CreatedAt.IsZero() {
		authority.CreatedAt = now
	}
	authority.UpdatedAt = now
	stored := *authority
	r.authorities[authority.ID] = &stored
	return nil
}

func (r *memoryAuthorityRepository) Update(ctx context.Context, authority *domain.Authority) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.authorities[authority.ID]; !ok {
		return pgx.ErrNoRows
	}
	authority.UpdatedAt = time.Now()
	stored := *authority
	r.authorities[authority.ID] = &stored
	return nil
}

func (r *memoryAuthorityRepository) GetByID(ctx context.Context, id string) (*domain.Authority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.authorities[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	dup := *stored
	return &dup, nil
}

func (r *memoryAuthorityRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.authorities[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.authorities, id)
	return nil
}

func (r *memoryAuthorityRepository) List(ctx context.Context, filter AuthorityFilter) ([]domain.Authority, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Authority
	for _, stored := range r.authorities {
		if filter.Department != nil && stored.Department != *filter.Department {
			continue
		}
		if filter.Status != nil && stored.Status != *filter.Status {
			continue
		}
		if filter.ServiceArea != nil && stored.ServiceArea != *filter.ServiceArea {
			continue
		}
		result = append(result, *stored)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}
