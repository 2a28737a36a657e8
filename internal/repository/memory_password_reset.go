package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memoryPasswordResetRepository is an in-memory PasswordResetRepository.
type memoryPasswordResetRepository struct {
	mu     sync.RWMutex
	tokens map[string]*PasswordResetToken
}

// NewMemoryPasswordResetRepository returns an in-memory reset token store.
func NewMemoryPasswordResetRepository() PasswordResetRepository {
	return &memoryPasswordResetRepository{tokens: make(map[string]*PasswordResetToken)}
}

func (r *memoryPasswordResetRepository) Create(ctx context.Context, token *PasswordResetToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	stored := *token
	r.tokens[token.ID] = &stored
	return nil
}

func (r *memoryPasswordResetRepository) GetByToken(ctx context.Context, token string) (*PasswordResetToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stored := range r.tokens {
		if stored.Token == token {
			dup := *stored
			return &dup, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memoryPasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tokens[id]
	if !ok {
		return pgx.ErrNoRows
	}
	now := time.Now()
	stored.UsedAt = &now
	return nil
}
