package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

func TestRecordEventIdempotent(t *testing.T) {
	repo := repository.NewMemoryContributionRepository()
	svc := NewLedgerService(repo, nil)
	svc.now = func() time.Time { return time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first, err := svc.RecordEvent(ctx, "citizen-1", domain.ContributionIssueReported, "issue-1", domain.CategoryRoad, domain.PointsIssueReported)
	if err != nil {
		t.Fatalf("first RecordEvent: %v", err)
	}
	if first.Period.Year != 2026 || first.Period.Month != 8 {
		t.Fatalf("period = %+v, want 2026-08", first.Period)
	}

	second, err := svc.RecordEvent(ctx, "citizen-1", domain.ContributionIssueReported, "issue-1", domain.CategoryRoad, domain.PointsIssueReported)
	if err != nil {
		t.Fatalf("duplicate RecordEvent: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate returned new event %q, want existing %q", second.ID, first.ID)
	}

	total, err := svc.GetUserTotals(ctx, "citizen-1", domain.PeriodKey{Year: 2026, Month: 8})
	if err != nil {
		t.Fatalf("GetUserTotals: %v", err)
	}
	if total != domain.PointsIssueReported {
		t.Fatalf("total = %d, want %d after duplicate write", total, domain.PointsIssueReported)
	}
}

func TestRecordEventDistinctKeys(t *testing.T) {
	repo := repository.NewMemoryContributionRepository()
	svc := NewLedgerService(repo, nil)
	svc.now = func() time.Time { return time.Date(2026, time.August, 20, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	// Same user and issue with different event types are separate ledger rows.
	if _, err := svc.RecordEvent(ctx, "citizen-1", domain.ContributionIssueReported, "issue-1", domain.CategoryRoad, 2); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if _, err := svc.RecordEvent(ctx, "citizen-1", domain.ContributionUpvoteGiven, "issue-1", domain.CategoryRoad, 1); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if _, err := svc.RecordEvent(ctx, "citizen-1", domain.ContributionUpvoteGiven, "issue-2", domain.CategoryRoad, 1); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	total, err := svc.GetUserTotals(ctx, "citizen-1", domain.PeriodKey{Year: 2026})
	if err != nil {
		t.Fatalf("GetUserTotals: %v", err)
	}
	if total != 4 {
		t.Fatalf("total = %d, want 4", total)
	}
}

func TestRecordEventRejectsNegativePoints(t *testing.T) {
	svc := NewLedgerService(repository.NewMemoryContributionRepository(), nil)

	_, err := svc.RecordEvent(context.Background(), "citizen-1", domain.ContributionIssueReported, "issue-1", domain.CategoryRoad, -1)
	if apperrors.Code(err) != "VALIDATION_FAILED" {
		t.Fatalf("code = %q, want VALIDATION_FAILED", apperrors.Code(err))
	}
}
