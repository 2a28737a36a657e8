package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// IssuesHandler manages citizen-facing issue endpoints.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// SubmitIssue POST /issues.
func (h *IssuesHandler) SubmitIssue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	draft := service.IssueDraft{
		Title:                    req.Title,
		Description:              req.Description,
		Category:                 req.Category,
		Priority:                 req.Priority,
		Location:                 req.Location,
		MediaRefs:                req.MediaRefs,
		Tags:                     req.Tags,
		Visibility:               req.Visibility,
		EstimatedResolutionHours: req.EstimatedResolutionHours,
	}
	issue, err := h.service.SubmitIssue(c.UserContext(), principal.User.ID, draft)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": issueDetail(issue)})
}

// ListIssues GET /issues.
func (h *IssuesHandler) ListIssues(c *fiber.Ctx) error {
	filter := parseIssueQuery(c)
	issues, err := h.service.ListIssues(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.IssueSummary, 0, len(issues))
	for i := range issues {
		items = append(items, issueSummary(&issues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetIssue GET /issues/:id.
func (h *IssuesHandler) GetIssue(c *fiber.Ctx) error {
	issue, err := h.service.GetIssue(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}

// ToggleUpvote POST /issues/:id/upvote.
func (h *IssuesHandler) ToggleUpvote(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	issue, err := h.service.ToggleUpvote(c.UserContext(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"issue_id": issue.ID,
		"upvotes":  len(issue.Upvoters),
		"upvoted":  issue.HasUpvote(principal.User.ID),
	}})
}

// AddComment POST /issues/:id/comments.
func (h *IssuesHandler) AddComment(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Body) == "" {
		return apperrors.NewValidationError("body required", nil)
	}
	comment, err := h.service.AddComment(c.UserContext(), c.Params("id"), principal.Actor, req.Body)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.CommentResponse{
		ID:        comment.ID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
	}})
}

// Transition PATCH /issues/:id/status.
func (h *IssuesHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TargetStatus == "" {
		return apperrors.NewValidationError("target_status required", nil)
	}
	issue, err := h.service.Transition(c.UserContext(), c.Params("id"), principal.Actor, req.TargetStatus, req.Notes, req.AssignedAuthorityID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueDetail(issue)})
}

// BulkTransition POST /issues/bulk/status.
func (h *IssuesHandler) BulkTransition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.BulkTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if len(req.IssueIDs) == 0 {
		return apperrors.NewValidationError("issue_ids required", nil)
	}
	if req.TargetStatus == "" {
		return apperrors.NewValidationError("target_status required", nil)
	}
	result := h.service.BulkTransition(c.UserContext(), req.IssueIDs, principal.Actor, req.TargetStatus, req.Notes, req.AssignedAuthorityID)

	failed := make([]dto.BulkFailureItem, 0, len(result.Failed))
	for _, item := range result.Failed {
		failed = append(failed, dto.BulkFailureItem{IssueID: item.IssueID, Code: item.Code, Message: item.Message})
	}
	return c.JSON(fiber.Map{"data": dto.BulkTransitionResponse{
		Successful: result.Successful,
		Failed:     failed,
	}})
}

func parseIssueQuery(c *fiber.Ctx) repository.IssueFilter {
	filter := repository.IssueFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.IssueStatus(strings.TrimSpace(part)))
		}
	}
	if categoryStr := c.Query("category"); categoryStr != "" {
		for _, part := range strings.Split(categoryStr, ",") {
			filter.Categories = append(filter.Categories, domain.IssueCategory(strings.TrimSpace(part)))
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			filter.Priorities = append(filter.Priorities, domain.IssuePriority(strings.TrimSpace(part)))
		}
	}
	if ward := c.Query("ward"); ward != "" {
		filter.Ward = &ward
	}
	if reporter := c.Query("reporter_id"); reporter != "" {
		filter.ReporterID = &reporter
	}
	if authority := c.Query("authority_id"); authority != "" {
		filter.AuthorityID = &authority
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func issueSummary(issue *domain.Issue) dto.IssueSummary {
	return dto.IssueSummary{
		ID:                  issue.ID,
		Title:               issue.Title,
		Category:            issue.Category,
		Priority:            issue.Priority,
		Status:              issue.Status,
		Ward:                issue.Location.Ward,
		AssignedAuthorityID: issue.AssignedAuthorityID,
		Upvotes:             len(issue.Upvoters),
		CreatedAt:           issue.CreatedAt,
		UpdatedAt:           issue.UpdatedAt,
	}
}

func issueDetail(issue *domain.Issue) dto.IssueDetailResponse {
	timeline := make([]dto.TimelineEntryResponse, 0, len(issue.Timeline))
	for _, entry := range issue.Timeline {
		timeline = append(timeline, dto.TimelineEntryResponse{
			Action:    entry.Action,
			Timestamp: entry.Timestamp,
			ActorID:   entry.ActorID,
			Notes:     entry.Notes,
		})
	}
	comments := make([]dto.CommentResponse, 0, len(issue.Comments))
	for _, comment := range issue.Comments {
		comments = append(comments, dto.CommentResponse{
			ID:        comment.ID,
			AuthorID:  comment.AuthorID,
			Body:      comment.Body,
			CreatedAt: comment.CreatedAt,
		})
	}
	return dto.IssueDetailResponse{
		ID:                       issue.ID,
		Title:                    issue.Title,
		Description:              issue.Description,
		Category:                 issue.Category,
		Priority:                 issue.Priority,
		Location:                 issue.Location,
		MediaRefs:                issue.MediaRefs,
		ReporterID:               issue.ReporterID,
		AssignedAuthorityID:      issue.AssignedAuthorityID,
		Status:                   issue.Status,
		Timeline:                 timeline,
		Upvotes:                  len(issue.Upvoters),
		Comments:                 comments,
		EstimatedResolutionHours: issue.EstimatedResolutionHours,
		ActualResolutionHours:    issue.ActualResolutionHours,
		Tags:                     issue.Tags,
		Visibility:               issue.Visibility,
		CreatedAt:                issue.CreatedAt,
		UpdatedAt:                issue.UpdatedAt,
	}
}
