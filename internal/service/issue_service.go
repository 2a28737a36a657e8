package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// allowedTransitions is the complete status edge set. Anything not listed
// fails with INVALID_TRANSITION before any mutation.
var allowedTransitions = map[domain.IssueStatus][]domain.IssueStatus{
	domain.IssueStatusPending:    {domain.IssueStatusVerified, domain.IssueStatusRejected},
	domain.IssueStatusVerified:   {domain.IssueStatusAssigned},
	domain.IssueStatusAssigned:   {domain.IssueStatusInProgress},
	domain.IssueStatusInProgress: {domain.IssueStatusResolved},
	domain.IssueStatusResolved:   {domain.IssueStatusClosed},
	domain.IssueStatusRejected:   {},
	domain.IssueStatusClosed:     {},
}

func isValidTransition(current, next domain.IssueStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// bulkWorkers bounds parallelism for bulk transitions.
const bulkWorkers = 8

// notifyWindow is the best-effort budget for asynchronous event dispatch.
const notifyWindow = 5 * time.Second

// candidateRanker orders candidate authorities for an issue.
type candidateRanker interface {
	RankCandidates(ctx context.Context, issue *domain.Issue) ([]domain.Authority, error)
}

// IssueService is the single entry point for issue mutation: submission,
// status transitions, upvotes and comments. Direct status writes bypassing
// Transition do not exist.
type IssueService struct {
	issues      repository.IssueRepository
	authorities repository.AuthorityRepository
	ledger      *LedgerService
	resolver    candidateRanker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	now         func() time.Time
}

// IssueDependencies bundles collaborators for the issue service. Resolver and
// Dispatcher are optional.
type IssueDependencies struct {
	IssueRepo     repository.IssueRepository
	AuthorityRepo repository.AuthorityRepository
	Ledger        *LedgerService
	Resolver      candidateRanker
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:      deps.IssueRepo,
		authorities: deps.AuthorityRepo,
		ledger:      deps.Ledger,
		resolver:    deps.Resolver,
		dispatcher:  deps.Dispatcher,
		logger:      logger,
		now:         time.Now,
	}
}

// IssueDraft describes a submission payload.
type IssueDraft struct {
	Title                    string
	Description              string
	Category                 domain.IssueCategory
	Priority                 domain.IssuePriority
	Location                 domain.Location
	MediaRefs                []string
	Tags                     []string
	Visibility               domain.IssueVisibility
	EstimatedResolutionHours *float64
}

func validateDraft(draft IssueDraft) map[string]any {
	details := map[string]any{}
	if strings.TrimSpace(draft.Title) == "" {
		details["title"] = "required"
	} else if len(draft.Title) > 200 {
		details["title"] = "must be at most 200 characters"
	}
	if strings.TrimSpace(draft.Description) == "" {
		details["description"] = "required"
	}
	if !domain.ValidCategory(draft.Category) {
		details["category"] = "unknown category"
	}
	if draft.Priority != "" && !domain.ValidPriority(draft.Priority) {
		details["priority"] = "unknown priority"
	}
	if strings.TrimSpace(draft.Location.Address) == "" {
		details["location.address"] = "required"
	}
	if draft.Location.Latitude != nil && (*draft.Location.Latitude < -90 || *draft.Location.Latitude > 90) {
		details["location.latitude"] = "out of range"
	}
	if draft.Location.Longitude != nil && (*draft.Location.Longitude < -180 || *draft.Location.Longitude > 180) {
		details["location.longitude"] = "out of range"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// SubmitIssue creates a pending issue and credits the reporter with the
// issue_reported contribution.
func (s *IssueService) SubmitIssue(ctx context.Context, reporterID string, draft IssueDraft) (*domain.Issue, error) {
	if details := validateDraft(draft); details != nil {
		return nil, apperrors.NewValidationError("invalid issue draft", details)
	}

	now := s.now()
	issue := &domain.Issue{
		Title:                    strings.TrimSpace(draft.Title),
		Description:              strings.TrimSpace(draft.Description),
		Category:                 draft.Category,
		Priority:                 draft.Priority,
		Location:                 draft.Location,
		MediaRefs:                draft.MediaRefs,
		ReporterID:               reporterID,
		Status:                   domain.IssueStatusPending,
		Tags:                     draft.Tags,
		Visibility:               draft.Visibility,
		EstimatedResolutionHours: draft.EstimatedResolutionHours,
		Timeline: []domain.TimelineEntry{{
			Action:    "reported",
			Timestamp: now,
			ActorID:   reporterID,
		}},
		CreatedAt: now,
	}
	if issue.Priority == "" {
		issue.Priority = domain.IssuePriorityMedium
	}
	if issue.Visibility == "" {
		issue.Visibility = domain.VisibilityPublic
	}

	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}

	if s.ledger != nil {
		if _, err := s.ledger.RecordEvent(ctx, reporterID, domain.ContributionIssueReported, issue.ID, issue.Category, domain.PointsIssueReported); err != nil {
			s.logger.Warn("issue_reported award failed",
				zap.String("issue_id", issue.ID), zap.Error(err))
		}
	}

	s.publishIssueCreated(issue, reporterID)
	return issue, nil
}

// GetIssue loads an issue by id.
func (s *IssueService) GetIssue(ctx context.Context, id string) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return issue, nil
}

// ListIssues returns issues matching the filter.
func (s *IssueService) ListIssues(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	issues, err := s.issues.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return issues, nil
}

// Transition applies one status edge. The status change and its timeline
// entry commit as a single conditional update; a concurrent transition that
// wins the race surfaces as CONFLICT and the caller may retry against the new
// current state.
func (s *IssueService) Transition(ctx context.Context, issueID string, actor domain.Actor, target domain.IssueStatus, notes string, assignedAuthorityID *string) (*domain.Issue, error) {
	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	if !isValidTransition(issue.Status, target) {
		return nil, apperrors.NewInvalidTransition(string(issue.Status), string(target))
	}
	if err := s.authorizeTransition(actor, issue, target); err != nil {
		return nil, err
	}

	oldStatus := issue.Status
	now := s.now()

	if target == domain.IssueStatusAssigned {
		if assignedAuthorityID == nil || *assignedAuthorityID == "" {
			return nil, apperrors.NewValidationError("assigned_authority_id required for assignment", map[string]any{"assigned_authority_id": "required"})
		}
		authority, err := s.authorities.GetByID(ctx, *assignedAuthorityID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("authority", map[string]any{"authority_id": *assignedAuthorityID})
			}
			return nil, apperrors.MapError(err)
		}
		if authority.Status != domain.AuthorityActive {
			return nil, apperrors.NewConflict("authority inactive", map[string]any{"authority_id": authority.ID})
		}
		issue.AssignedAuthorityID = &authority.ID
	}

	issue.Status = target
	issue.Timeline = append(issue.Timeline, domain.TimelineEntry{
		Action:    strings.ToLower(string(target)),
		Timestamp: monotonicAfter(issue.Timeline, now),
		ActorID:   actor.ID,
		Notes:     notes,
	})

	// actualResolutionHours freezes on the first entry into RESOLVED and is
	// never written again.
	if target == domain.IssueStatusResolved && issue.ActualResolutionHours == nil {
		hours := math.Round(now.Sub(issue.CreatedAt).Hours()*100) / 100
		issue.ActualResolutionHours = &hours
	}

	if err := s.issues.UpdateStatus(ctx, issue, oldStatus); err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, apperrors.NewConflict("issue status changed concurrently", map[string]any{"issue_id": issueID})
		case errors.Is(err, pgx.ErrNoRows):
			return nil, apperrors.NewNotFound("issue", map[string]any{"issue_id": issueID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	if target == domain.IssueStatusResolved && s.ledger != nil {
		// Idempotent: repeated resolutions of the same issue never double-award.
		if _, err := s.ledger.RecordEvent(ctx, issue.ReporterID, domain.ContributionIssueResolved, issue.ID, issue.Category, domain.PointsIssueResolved); err != nil {
			s.logger.Warn("issue_resolved award failed",
				zap.String("issue_id", issue.ID), zap.Error(err))
		}
	}

	s.publishStatusChanged(issue, actor, oldStatus, target, notes)
	return issue, nil
}

func (s *IssueService) authorizeTransition(actor domain.Actor, issue *domain.Issue, target domain.IssueStatus) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleAuthority:
		if target != domain.IssueStatusInProgress && target != domain.IssueStatusResolved {
			return apperrors.NewForbidden("authorities may only start or resolve work")
		}
		if issue.AssignedAuthorityID == nil || *issue.AssignedAuthorityID != actor.ID {
			return apperrors.NewForbidden("issue not assigned to this authority")
		}
		return nil
	default:
		return apperrors.NewForbidden("role cannot transition issues")
	}
}

// BulkResult reports the outcome of a bulk transition.
type BulkResult struct {
	Successful []string
	Failed     []BulkFailure
}

// BulkFailure carries the per-item reason code.
type BulkFailure struct {
	IssueID string
	Code    string
	Message string
}

// BulkTransition applies the same edge to each issue independently with
// bounded parallelism. Individual failures never block or roll back other
// items.
func (s *IssueService) BulkTransition(ctx context.Context, issueIDs []string, actor domain.Actor, target domain.IssueStatus, notes string, assignedAuthorityID *string) BulkResult {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		sem    = make(chan struct{}, bulkWorkers)
		result BulkResult
	)
	for _, id := range issueIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(issueID string) {
			defer wg.Done()
			defer func() { <-sem }()
			_, err := s.Transition(ctx, issueID, actor, target, notes, assignedAuthorityID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				domainErr := apperrors.ToDomainError(err)
				result.Failed = append(result.Failed, BulkFailure{
					IssueID: issueID,
					Code:    domainErr.Code,
					Message: domainErr.Message,
				})
				return
			}
			result.Successful = append(result.Successful, issueID)
		}(id)
	}
	wg.Wait()
	return result
}

// ToggleUpvote flips the caller's upvote on an issue. The upvote_given point
// is awarded only on the first toggle-on per (user, issue); toggling off and
// on again neither retracts nor re-awards it.
func (s *IssueService) ToggleUpvote(ctx context.Context, issueID, userID string) (*domain.Issue, error) {
	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	upvoted := false
	if issue.HasUpvote(userID) {
		kept := issue.Upvoters[:0]
		for _, id := range issue.Upvoters {
			if id != userID {
				kept = append(kept, id)
			}
		}
		issue.Upvoters = kept
	} else {
		issue.Upvoters = append(issue.Upvoters, userID)
		upvoted = true
	}

	if err := s.issues.UpdateEngagement(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}

	if upvoted && s.ledger != nil {
		if _, err := s.ledger.RecordEvent(ctx, userID, domain.ContributionUpvoteGiven, issue.ID, issue.Category, domain.PointsUpvoteGiven); err != nil {
			s.logger.Warn("upvote_given award failed",
				zap.String("issue_id", issue.ID), zap.Error(err))
		}
	}

	s.publishEvent(events.Event{
		Type:    events.EventIssueUpvoted,
		IssueID: issue.ID,
		Actor:   events.Actor{ID: userID, Role: domain.RoleCitizen},
		Payload: events.IssueUpvotedPayload{
			UserID:  userID,
			Upvoted: upvoted,
			Total:   len(issue.Upvoters),
		},
	})
	return issue, nil
}

// AddComment appends a comment. The first comment per (user, issue) earns the
// comment_added contribution.
func (s *IssueService) AddComment(ctx context.Context, issueID string, actor domain.Actor, body string) (*domain.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("comment body required", map[string]any{"body": "required"})
	}
	issue, err := s.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		AuthorID:  actor.ID,
		Body:      body,
		CreatedAt: s.now(),
	}
	issue.Comments = append(issue.Comments, comment)

	if err := s.issues.UpdateEngagement(ctx, issue); err != nil {
		return nil, apperrors.MapError(err)
	}

	if actor.Role == domain.RoleCitizen && s.ledger != nil {
		if _, err := s.ledger.RecordEvent(ctx, actor.ID, domain.ContributionCommentAdded, issue.ID, issue.Category, domain.PointsCommentAdded); err != nil {
			s.logger.Warn("comment_added award failed",
				zap.String("issue_id", issue.ID), zap.Error(err))
		}
	}

	s.publishEvent(events.Event{
		Type:    events.EventIssueCommentAdded,
		IssueID: issue.ID,
		Actor:   events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.IssueCommentAddedPayload{
			CommentID:   comment.ID,
			AuthorID:    actor.ID,
			BodyPreview: stringPreview(body, 120),
		},
	})
	return &comment, nil
}

func (s *IssueService) publishIssueCreated(issue *domain.Issue, reporterID string) {
	payload := events.IssueCreatedPayload{
		Category: issue.Category,
		Priority: issue.Priority,
		Title:    issue.Title,
		Ward:     issue.Location.Ward,
	}
	if s.resolver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), notifyWindow)
		defer cancel()
		candidates, err := s.resolver.RankCandidates(ctx, issue)
		if err != nil {
			s.logger.Warn("candidate ranking failed", zap.String("issue_id", issue.ID), zap.Error(err))
		}
		for _, candidate := range candidates {
			payload.CandidateAuthorities = append(payload.CandidateAuthorities, candidate.ID)
		}
	}
	s.publishEvent(events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   events.Actor{ID: reporterID, Role: domain.RoleCitizen},
		Payload: payload,
	})
}

func (s *IssueService) publishStatusChanged(issue *domain.Issue, actor domain.Actor, oldStatus, newStatus domain.IssueStatus, notes string) {
	s.publishEvent(events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: issue.ID,
		Actor:   events.Actor{ID: actor.ID, Role: actor.Role},
		Payload: events.IssueStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Notes:     notes,
		},
	})
	if newStatus == domain.IssueStatusAssigned && issue.AssignedAuthorityID != nil {
		s.publishEvent(events.Event{
			Type:    events.EventIssueAssigned,
			IssueID: issue.ID,
			Actor:   events.Actor{ID: actor.ID, Role: actor.Role},
			Payload: events.IssueAssignedPayload{AuthorityID: *issue.AssignedAuthorityID},
		})
	}
}

// publishEvent dispatches asynchronously within a short best-effort window.
// Dispatch outcome never reaches the caller of the originating operation.
func (s *IssueService) publishEvent(event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyWindow)
		defer cancel()
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event dispatch failed",
				zap.String("event_type", string(event.Type)),
				zap.String("issue_id", event.IssueID),
				zap.Error(err))
		}
	}()
}

// monotonicAfter keeps timeline timestamps non-decreasing even under clock
// adjustment.
func monotonicAfter(timeline []domain.TimelineEntry, ts time.Time) time.Time {
	if len(timeline) == 0 {
		return ts
	}
	if last := timeline[len(timeline)-1].Timestamp; ts.Before(last) {
		return last
	}
	return ts
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
