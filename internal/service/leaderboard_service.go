package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// PeriodSelector windows a leaderboard query. Month nil selects the whole
// year.
type PeriodSelector struct {
	Year  int
	Month *int
}

// Label renders "2026-08" or "2026".
func (p PeriodSelector) Label() string {
	if p.Month == nil {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, *p.Month)
}

// LeaderboardEntry is a derived per-user total. Presentation data only; the
// ledger remains the sole source of truth for ordering.
type LeaderboardEntry struct {
	UserID             string                 `json:"user_id"`
	TotalPoints        int                    `json:"total_points"`
	TotalContributions int                    `json:"total_contributions"`
	Categories         []domain.IssueCategory `json:"categories"`
}

// Leaderboard is one ranked page plus the requester's overall rank.
type Leaderboard struct {
	Period        string             `json:"period"`
	Rows          []LeaderboardEntry `json:"rows"`
	TotalUsers    int                `json:"total_users"`
	RequesterRank *int               `json:"requester_rank"`
}

// MonthBucket is one month of a user's contribution history.
type MonthBucket struct {
	Month         int `json:"month"`
	Points        int `json:"points"`
	Contributions int `json:"contributions"`
}

// CategoryBucket groups a user's contributions by issue category.
type CategoryBucket struct {
	Category      domain.IssueCategory `json:"category"`
	Points        int                  `json:"points"`
	Contributions int                  `json:"contributions"`
}

// ContributionHistory is a user's yearly trend view.
type ContributionHistory struct {
	UserID            string           `json:"user_id"`
	Year              int              `json:"year"`
	TotalPoints       int              `json:"total_points"`
	MonthlyBreakdown  []MonthBucket    `json:"monthly_breakdown"`
	CategoryBreakdown []CategoryBucket `json:"category_breakdown"`
}

// ScoreSnapshot is a cached per-user score for fast reads. Never consulted
// for ranking; the ledger stays authoritative.
type ScoreSnapshot struct {
	UserID      string    `json:"user_id"`
	Period      string    `json:"period"`
	TotalPoints int       `json:"total_points"`
	ComputedAt  time.Time `json:"computed_at"`
}

const snapshotTTL = 10 * time.Minute

// LeaderboardService computes ranked views from the ledger at query time. It
// never mutates the ledger and tolerates concurrent writers.
type LeaderboardService struct {
	contributions repository.ContributionRepository
	issues        repository.IssueRepository
	cache         *redis.Client
	logger        *zap.Logger
	now           func() time.Time
}

// NewLeaderboardService constructs the service. cache is optional.
func NewLeaderboardService(contributions repository.ContributionRepository, issues repository.IssueRepository, cache *redis.Client, logger *zap.Logger) *LeaderboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeaderboardService{
		contributions: contributions,
		issues:        issues,
		cache:         cache,
		logger:        logger,
		now:           time.Now,
	}
}

// GetLeaderboard ranks users over the selected window. An empty window yields
// empty rows and a nil requester rank, never an error.
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, period PeriodSelector, category *domain.IssueCategory, limit, offset int, requesterID *string) (*Leaderboard, error) {
	filter := repository.ContributionFilter{
		Year:     period.Year,
		Month:    period.Month,
		Category: category,
	}
	eventsInWindow, err := s.contributions.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	entries := aggregateEntries(eventsInWindow)

	board := &Leaderboard{
		Period:     period.Label(),
		Rows:       []LeaderboardEntry{},
		TotalUsers: len(entries),
	}
	if requesterID != nil {
		board.RequesterRank = rankOf(entries, *requesterID)
	}

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	if offset < len(entries) {
		end := offset + limit
		if end > len(entries) {
			end = len(entries)
		}
		board.Rows = entries[offset:end]
	}
	return board, nil
}

// aggregateEntries is the single grouping core shared by monthly and yearly
// views. The tie-break (points desc, contributions desc, user id asc) makes
// ordering fully deterministic.
func aggregateEntries(entries []domain.ContributionEvent) []LeaderboardEntry {
	type accumulator struct {
		points        int
		contributions int
		categories    map[domain.IssueCategory]struct{}
	}
	byUser := make(map[string]*accumulator)
	for _, event := range entries {
		acc, ok := byUser[event.UserID]
		if !ok {
			acc = &accumulator{categories: make(map[domain.IssueCategory]struct{})}
			byUser[event.UserID] = acc
		}
		acc.points += event.Points
		acc.contributions++
		acc.categories[event.Category] = struct{}{}
	}

	result := make([]LeaderboardEntry, 0, len(byUser))
	for userID, acc := range byUser {
		categories := make([]domain.IssueCategory, 0, len(acc.categories))
		for category := range acc.categories {
			categories = append(categories, category)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
		result = append(result, LeaderboardEntry{
			UserID:             userID,
			TotalPoints:        acc.points,
			TotalContributions: acc.contributions,
			Categories:         categories,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalPoints != result[j].TotalPoints {
			return result[i].TotalPoints > result[j].TotalPoints
		}
		if result[i].TotalContributions != result[j].TotalContributions {
			return result[i].TotalContributions > result[j].TotalContributions
		}
		return result[i].UserID < result[j].UserID
	})
	return result
}

// rankOf is (count of users with strictly greater totals) + 1, nil when the
// user has no events in the window.
func rankOf(entries []LeaderboardEntry, userID string) *int {
	var own *LeaderboardEntry
	for i := range entries {
		if entries[i].UserID == userID {
			own = &entries[i]
			break
		}
	}
	if own == nil {
		return nil
	}
	rank := 1
	for i := range entries {
		if entries[i].TotalPoints > own.TotalPoints {
			rank++
		}
	}
	return &rank
}

// GetUserContributionHistory folds a user's year into monthly and category
// breakdowns. Reuses the yearly window with per-month bucketing so the
// grouping logic lives in one place.
func (s *LeaderboardService) GetUserContributionHistory(ctx context.Context, userID string, year int) (*ContributionHistory, error) {
	eventsInYear, err := s.contributions.ListWithFilter(ctx, repository.ContributionFilter{
		Year:   year,
		UserID: &userID,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	history := &ContributionHistory{
		UserID:           userID,
		Year:             year,
		MonthlyBreakdown: make([]MonthBucket, 12),
	}
	for i := range history.MonthlyBreakdown {
		history.MonthlyBreakdown[i].Month = i + 1
	}
	byCategory := make(map[domain.IssueCategory]*CategoryBucket)
	for _, event := range eventsInYear {
		history.TotalPoints += event.Points
		if event.Period.Month >= 1 && event.Period.Month <= 12 {
			bucket := &history.MonthlyBreakdown[event.Period.Month-1]
			bucket.Points += event.Points
			bucket.Contributions++
		}
		cat, ok := byCategory[event.Category]
		if !ok {
			cat = &CategoryBucket{Category: event.Category}
			byCategory[event.Category] = cat
		}
		cat.Points += event.Points
		cat.Contributions++
	}
	history.CategoryBreakdown = make([]CategoryBucket, 0, len(byCategory))
	for _, bucket := range byCategory {
		history.CategoryBreakdown = append(history.CategoryBreakdown, *bucket)
	}
	sort.Slice(history.CategoryBreakdown, func(i, j int) bool {
		return history.CategoryBreakdown[i].Category < history.CategoryBreakdown[j].Category
	})
	return history, nil
}

// MedianResolutionHours computes the median actual resolution time for a
// category via explicit sort-and-midpoint, independent of any storage engine
// aggregation primitive. Returns nil when no resolved issues exist.
func (s *LeaderboardService) MedianResolutionHours(ctx context.Context, category domain.IssueCategory) (*float64, error) {
	hours, err := s.issues.ResolvedHoursByCategory(ctx, category)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(hours) == 0 {
		return nil, nil
	}
	sort.Float64s(hours)
	mid := len(hours) / 2
	var median float64
	if len(hours)%2 == 1 {
		median = hours[mid]
	} else {
		median = (hours[mid-1] + hours[mid]) / 2
	}
	return &median, nil
}

// RefreshScoreSnapshots recomputes cached per-user scores for the current
// month. Called by the scheduled snapshot worker.
func (s *LeaderboardService) RefreshScoreSnapshots(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}
	now := s.now()
	month := int(now.Month())
	period := PeriodSelector{Year: now.Year(), Month: &month}
	eventsInWindow, err := s.contributions.ListWithFilter(ctx, repository.ContributionFilter{
		Year:  period.Year,
		Month: period.Month,
	})
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	entries := aggregateEntries(eventsInWindow)
	for _, entry := range entries {
		snapshot := ScoreSnapshot{
			UserID:      entry.UserID,
			Period:      period.Label(),
			TotalPoints: entry.TotalPoints,
			ComputedAt:  now,
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return 0, err
		}
		if err := s.cache.Set(ctx, snapshotKey(entry.UserID, period.Label()), raw, snapshotTTL).Err(); err != nil {
			return 0, err
		}
	}
	return len(entries), nil
}

// CachedScore reads the snapshot for fast display. A miss returns nil, nil;
// callers needing authoritative totals go through GetUserTotals or
// GetLeaderboard instead.
func (s *LeaderboardService) CachedScore(ctx context.Context, userID string, period PeriodSelector) (*ScoreSnapshot, error) {
	if s.cache == nil {
		return nil, nil
	}
	raw, err := s.cache.Get(ctx, snapshotKey(userID, period.Label())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	var snapshot ScoreSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// LiveScore sums a user's points for the period straight from the ledger.
func (s *LeaderboardService) LiveScore(ctx context.Context, userID string, period PeriodSelector) (int, error) {
	key := domain.PeriodKey{Year: period.Year}
	if period.Month != nil {
		key.Month = *period.Month
	}
	total, err := s.contributions.SumByUser(ctx, userID, key)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return total, nil
}

func snapshotKey(userID, period string) string {
	return "leaderboard:score:" + period + ":" + userID
}
