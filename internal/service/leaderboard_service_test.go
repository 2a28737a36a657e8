package service

import (
	"context"
	"testing"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
)

func seedContribution(t *testing.T, repo repository.ContributionRepository, userID string, eventType domain.ContributionType, issueID string, points, month, year int, category domain.IssueCategory) {
	t.Helper()
	_, err := repo.Insert(context.Background(), &domain.ContributionEvent{
		UserID:   userID,
		Type:     eventType,
		IssueID:  issueID,
		Points:   points,
		Period:   domain.PeriodKey{Month: month, Year: year},
		Category: category,
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
}

func newLeaderboardFixture() (*LeaderboardService, repository.ContributionRepository, repository.IssueRepository) {
	contributions := repository.NewMemoryContributionRepository()
	issues := repository.NewMemoryIssueRepository()
	svc := NewLeaderboardService(contributions, issues, nil, nil)
	return svc, contributions, issues
}

func month(m int) *int { return &m }

func TestGetLeaderboardDeterministicOrdering(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	// dave 10 points; bob 7 over 3 events; alice and carol 7 over 2 events
	// each, so the user id breaks the tie.
	seedContribution(t, contributions, "dave", domain.ContributionIssueResolved, "i1", 5, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "dave", domain.ContributionIssueResolved, "i2", 5, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "bob", domain.ContributionIssueResolved, "i3", 5, 6, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "bob", domain.ContributionUpvoteGiven, "i4", 1, 6, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "bob", domain.ContributionCommentAdded, "i5", 1, 6, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "alice", domain.ContributionIssueResolved, "i6", 5, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i6", 2, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "carol", domain.ContributionIssueResolved, "i7", 5, 6, 2026, domain.CategorySanitation)
	seedContribution(t, contributions, "carol", domain.ContributionIssueReported, "i7", 2, 6, 2026, domain.CategorySanitation)

	board, err := svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(6)}, nil, 10, 0, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}

	want := []string{"dave", "bob", "alice", "carol"}
	if len(board.Rows) != len(want) {
		t.Fatalf("rows = %d, want %d", len(board.Rows), len(want))
	}
	for i, userID := range want {
		if board.Rows[i].UserID != userID {
			t.Fatalf("row %d = %q, want %q (rows=%+v)", i, board.Rows[i].UserID, userID, board.Rows)
		}
	}
	if board.TotalUsers != 4 {
		t.Fatalf("total users = %d, want 4", board.TotalUsers)
	}
	if board.Period != "2026-06" {
		t.Fatalf("period = %q, want 2026-06", board.Period)
	}
}

func TestGetLeaderboardRequesterRank(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "dave", domain.ContributionIssueResolved, "i1", 10, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "alice", domain.ContributionIssueResolved, "i2", 7, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "carol", domain.ContributionIssueResolved, "i3", 7, 6, 2026, domain.CategoryRoad)

	carol := "carol"
	board, err := svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(6)}, nil, 10, 0, &carol)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	// Only dave outranks on points, so both tied users share rank 2.
	if board.RequesterRank == nil || *board.RequesterRank != 2 {
		t.Fatalf("requester rank = %v, want 2", board.RequesterRank)
	}

	absent := "nobody"
	board, err = svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(6)}, nil, 10, 0, &absent)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if board.RequesterRank != nil {
		t.Fatalf("requester rank = %v, want nil for user with no events", board.RequesterRank)
	}
}

func TestGetLeaderboardEmptyWindow(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i1", 2, 6, 2026, domain.CategoryRoad)

	requester := "alice"
	board, err := svc.GetLeaderboard(ctx, PeriodSelector{Year: 2024, Month: month(1)}, nil, 10, 0, &requester)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(board.Rows) != 0 || board.TotalUsers != 0 {
		t.Fatalf("board = %+v, want empty", board)
	}
	if board.RequesterRank != nil {
		t.Fatalf("requester rank = %v, want nil", board.RequesterRank)
	}
}

func TestGetLeaderboardFilters(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i1", 2, 3, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "bob", domain.ContributionIssueReported, "i2", 2, 4, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "carol", domain.ContributionIssueReported, "i3", 2, 3, 2026, domain.CategoryWater)

	board, err := svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(3)}, nil, 10, 0, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if board.TotalUsers != 2 {
		t.Fatalf("month filter: total users = %d, want 2", board.TotalUsers)
	}

	water := domain.CategoryWater
	board, err = svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026}, &water, 10, 0, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if board.TotalUsers != 2 {
		t.Fatalf("category filter: total users = %d, want 2", board.TotalUsers)
	}
	if board.Period != "2026" {
		t.Fatalf("period = %q, want yearly label 2026", board.Period)
	}
}

func TestGetLeaderboardPagination(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "alice", domain.ContributionIssueResolved, "i1", 5, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "bob", domain.ContributionIssueReported, "i2", 2, 6, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "carol", domain.ContributionUpvoteGiven, "i3", 1, 6, 2026, domain.CategoryRoad)

	board, err := svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(6)}, nil, 2, 2, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(board.Rows) != 1 || board.Rows[0].UserID != "carol" {
		t.Fatalf("page 2 rows = %+v, want just carol", board.Rows)
	}
	if board.TotalUsers != 3 {
		t.Fatalf("total users = %d, want 3", board.TotalUsers)
	}

	board, err = svc.GetLeaderboard(ctx, PeriodSelector{Year: 2026, Month: month(6)}, nil, 2, 50, nil)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(board.Rows) != 0 {
		t.Fatalf("out of range offset rows = %+v, want empty", board.Rows)
	}
}

func TestGetUserContributionHistory(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i1", 2, 2, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "alice", domain.ContributionIssueResolved, "i1", 5, 5, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "alice", domain.ContributionCommentAdded, "i2", 1, 5, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "bob", domain.ContributionIssueReported, "i3", 2, 5, 2026, domain.CategoryWater)
	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i4", 2, 5, 2025, domain.CategoryRoad)

	history, err := svc.GetUserContributionHistory(ctx, "alice", 2026)
	if err != nil {
		t.Fatalf("GetUserContributionHistory: %v", err)
	}
	if history.TotalPoints != 8 {
		t.Fatalf("total points = %d, want 8", history.TotalPoints)
	}
	if len(history.MonthlyBreakdown) != 12 {
		t.Fatalf("monthly buckets = %d, want 12", len(history.MonthlyBreakdown))
	}
	feb := history.MonthlyBreakdown[1]
	if feb.Points != 2 || feb.Contributions != 1 {
		t.Fatalf("february = %+v, want 2 points over 1 contribution", feb)
	}
	may := history.MonthlyBreakdown[4]
	if may.Points != 6 || may.Contributions != 2 {
		t.Fatalf("may = %+v, want 6 points over 2 contributions", may)
	}
	if history.MonthlyBreakdown[0].Points != 0 {
		t.Fatalf("january = %+v, want empty bucket", history.MonthlyBreakdown[0])
	}

	if len(history.CategoryBreakdown) != 2 {
		t.Fatalf("category buckets = %+v, want 2", history.CategoryBreakdown)
	}
	if history.CategoryBreakdown[0].Category != domain.CategoryRoad || history.CategoryBreakdown[0].Points != 7 {
		t.Fatalf("road bucket = %+v, want 7 points", history.CategoryBreakdown[0])
	}
	if history.CategoryBreakdown[1].Category != domain.CategoryWater || history.CategoryBreakdown[1].Points != 1 {
		t.Fatalf("water bucket = %+v, want 1 point", history.CategoryBreakdown[1])
	}
}

func seedResolvedIssue(t *testing.T, issues repository.IssueRepository, category domain.IssueCategory, hours float64) {
	t.Helper()
	err := issues.Create(context.Background(), &domain.Issue{
		Title:                 "seeded",
		Description:           "seeded",
		Category:              category,
		Status:                domain.IssueStatusResolved,
		ActualResolutionHours: &hours,
	})
	if err != nil {
		t.Fatalf("Create issue: %v", err)
	}
}

func TestMedianResolutionHours(t *testing.T) {
	svc, _, issues := newLeaderboardFixture()
	ctx := context.Background()

	median, err := svc.MedianResolutionHours(ctx, domain.CategoryRoad)
	if err != nil {
		t.Fatalf("MedianResolutionHours: %v", err)
	}
	if median != nil {
		t.Fatalf("median = %v, want nil with no resolved issues", *median)
	}

	seedResolvedIssue(t, issues, domain.CategoryRoad, 10)
	seedResolvedIssue(t, issues, domain.CategoryRoad, 30)
	seedResolvedIssue(t, issues, domain.CategoryRoad, 50)
	seedResolvedIssue(t, issues, domain.CategoryWater, 500)

	median, err = svc.MedianResolutionHours(ctx, domain.CategoryRoad)
	if err != nil {
		t.Fatalf("MedianResolutionHours: %v", err)
	}
	if median == nil || *median != 30 {
		t.Fatalf("odd count median = %v, want 30", median)
	}

	seedResolvedIssue(t, issues, domain.CategoryRoad, 40)
	median, err = svc.MedianResolutionHours(ctx, domain.CategoryRoad)
	if err != nil {
		t.Fatalf("MedianResolutionHours: %v", err)
	}
	if median == nil || *median != 35 {
		t.Fatalf("even count median = %v, want 35", median)
	}
}

func TestLiveScore(t *testing.T) {
	svc, contributions, _ := newLeaderboardFixture()
	ctx := context.Background()

	seedContribution(t, contributions, "alice", domain.ContributionIssueReported, "i1", 2, 3, 2026, domain.CategoryRoad)
	seedContribution(t, contributions, "alice", domain.ContributionIssueResolved, "i1", 5, 7, 2026, domain.CategoryRoad)

	total, err := svc.LiveScore(ctx, "alice", PeriodSelector{Year: 2026, Month: month(3)})
	if err != nil {
		t.Fatalf("LiveScore: %v", err)
	}
	if total != 2 {
		t.Fatalf("monthly total = %d, want 2", total)
	}

	total, err = svc.LiveScore(ctx, "alice", PeriodSelector{Year: 2026})
	if err != nil {
		t.Fatalf("LiveScore: %v", err)
	}
	if total != 7 {
		t.Fatalf("yearly total = %d, want 7", total)
	}
}
