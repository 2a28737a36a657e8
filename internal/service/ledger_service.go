package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// LedgerService owns the append-only contribution ledger. Every write is an
// idempotent upsert keyed by (user, type, issue); a duplicate attempt is a
// no-op success, never an error.
type LedgerService struct {
	contributions repository.ContributionRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewLedgerService constructs the service.
func NewLedgerService(contributions repository.ContributionRepository, logger *zap.Logger) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		contributions: contributions,
		logger:        logger,
		now:           time.Now,
	}
}

// RecordEvent credits points for one qualifying action on one issue. Returns
// the stored event, which may predate this call when the award already
// exists.
func (s *LedgerService) RecordEvent(ctx context.Context, userID string, eventType domain.ContributionType, issueID string, category domain.IssueCategory, points int) (*domain.ContributionEvent, error) {
	if points < 0 {
		return nil, apperrors.NewValidationError("points must be non-negative", map[string]any{"points": points})
	}
	event := &domain.ContributionEvent{
		UserID:   userID,
		Type:     eventType,
		IssueID:  issueID,
		Points:   points,
		Period:   domain.PeriodOf(s.now()),
		Category: category,
	}
	created, err := s.contributions.Insert(ctx, event)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !created {
		s.logger.Debug("contribution already recorded",
			zap.String("user_id", userID),
			zap.String("event_type", string(eventType)),
			zap.String("issue_id", issueID))
	}
	return event, nil
}

// GetUserTotals sums a user's points for a period. Month 0 sums the whole
// year.
func (s *LedgerService) GetUserTotals(ctx context.Context, userID string, period domain.PeriodKey) (int, error) {
	total, err := s.contributions.SumByUser(ctx, userID, period)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return total, nil
}
