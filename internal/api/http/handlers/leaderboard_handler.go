package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// LeaderboardHandler exposes ranked views over the contribution ledger.
type LeaderboardHandler struct {
	leaderboard *service.LeaderboardService
}

// NewLeaderboardHandler constructs handler.
func NewLeaderboardHandler(leaderboard *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboard: leaderboard}
}

// GetLeaderboard GET /leaderboard.
func (h *LeaderboardHandler) GetLeaderboard(c *fiber.Ctx) error {
	period, err := parsePeriod(c)
	if err != nil {
		return err
	}
	var category *domain.IssueCategory
	if categoryStr := c.Query("category"); categoryStr != "" {
		cat := domain.IssueCategory(categoryStr)
		if !domain.ValidCategory(cat) {
			return apperrors.NewValidationError("unknown category", map[string]any{"category": categoryStr})
		}
		category = &cat
	}
	limit := parseInt(c.Query("limit"), 10)
	offset := 0
	if page := parseInt(c.Query("page"), 1); page > 1 {
		offset = (page - 1) * limit
	}

	var requesterID *string
	if principal, ok := auth.PrincipalFromContext(c); ok && principal.User != nil {
		requesterID = &principal.User.ID
	}

	board, err := h.leaderboard.GetLeaderboard(c.UserContext(), period, category, limit, offset, requesterID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": board})
}

// ContributionHistory GET /users/:id/contributions.
func (h *LeaderboardHandler) ContributionHistory(c *fiber.Ctx) error {
	year := parseInt(c.Query("year"), 0)
	if year == 0 {
		return apperrors.NewValidationError("year required", nil)
	}
	history, err := h.leaderboard.GetUserContributionHistory(c.UserContext(), c.Params("id"), year)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": history})
}

// CachedScore GET /users/:id/score. Serves the snapshot written by the
// background refresh; falls back to a live computation when no snapshot
// exists.
func (h *LeaderboardHandler) CachedScore(c *fiber.Ctx) error {
	period, err := parsePeriod(c)
	if err != nil {
		return err
	}
	userID := c.Params("id")
	snapshot, err := h.leaderboard.CachedScore(c.UserContext(), userID, period)
	if err != nil {
		return err
	}
	if snapshot != nil {
		return c.JSON(fiber.Map{"data": snapshot, "cached": true})
	}

	points, err := h.leaderboard.LiveScore(c.UserContext(), userID, period)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user_id":      userID,
			"period":       period.Label(),
			"total_points": points,
		},
		"cached": false,
	})
}

// MedianResolution GET /stats/resolution-median.
func (h *LeaderboardHandler) MedianResolution(c *fiber.Ctx) error {
	category := domain.IssueCategory(c.Query("category"))
	if !domain.ValidCategory(category) {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": string(category)})
	}
	median, err := h.leaderboard.MedianResolutionHours(c.UserContext(), category)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"category":     category,
		"median_hours": median,
	}})
}

func parsePeriod(c *fiber.Ctx) (service.PeriodSelector, error) {
	year := parseInt(c.Query("year"), 0)
	if year == 0 {
		return service.PeriodSelector{}, apperrors.NewValidationError("year required", nil)
	}
	period := service.PeriodSelector{Year: year}
	if monthStr := c.Query("month"); monthStr != "" {
		month := parseInt(monthStr, 0)
		if month < 1 || month > 12 {
			return service.PeriodSelector{}, apperrors.NewValidationError("month out of range", map[string]any{"month": monthStr})
		}
		period.Month = &month
	}
	return period, nil
}
