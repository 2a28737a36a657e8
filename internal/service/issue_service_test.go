package service

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type issueFixture struct {
	svc         *IssueService
	issues      repository.IssueRepository
	authorities repository.AuthorityRepository
	ledgerRepo  repository.ContributionRepository
	clock       *fakeClock
}

func newIssueFixture() *issueFixture {
	issues := repository.NewMemoryIssueRepository()
	authorities := repository.NewMemoryAuthorityRepository()
	ledgerRepo := repository.NewMemoryContributionRepository()
	clock := &fakeClock{t: time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)}

	ledger := NewLedgerService(ledgerRepo, nil)
	ledger.now = clock.Now

	svc := NewIssueService(IssueDependencies{
		IssueRepo:     issues,
		AuthorityRepo: authorities,
		Ledger:        ledger,
	})
	svc.now = clock.Now

	return &issueFixture{
		svc:         svc,
		issues:      issues,
		authorities: authorities,
		ledgerRepo:  ledgerRepo,
		clock:       clock,
	}
}

func validDraft() IssueDraft {
	return IssueDraft{
		Title:       "Broken streetlight on main road",
		Description: "The light has been out for a week.",
		Category:    domain.CategoryStreetlight,
		Location: domain.Location{
			Address:  "12 Main Road",
			Ward:     "ward-7",
			District: "north",
		},
	}
}

func (f *issueFixture) submit(t *testing.T, reporterID string) *domain.Issue {
	t.Helper()
	issue, err := f.svc.SubmitIssue(context.Background(), reporterID, validDraft())
	if err != nil {
		t.Fatalf("SubmitIssue: %v", err)
	}
	return issue
}

func (f *issueFixture) seedAuthority(t *testing.T, department domain.IssueCategory, status domain.AuthorityStatus) *domain.Authority {
	t.Helper()
	authority := &domain.Authority{
		Name:        "Streetlight Department",
		Department:  department,
		ServiceArea: "north",
		Status:      status,
	}
	if err := f.authorities.Create(context.Background(), authority); err != nil {
		t.Fatalf("Create authority: %v", err)
	}
	return authority
}

func (f *issueFixture) ledgerEvents(t *testing.T, userID string) []domain.ContributionEvent {
	t.Helper()
	events, err := f.ledgerRepo.ListWithFilter(context.Background(), repository.ContributionFilter{
		Year:   f.clock.t.Year(),
		UserID: &userID,
	})
	if err != nil {
		t.Fatalf("ListWithFilter: %v", err)
	}
	return events
}

func TestSubmitIssueStartsPending(t *testing.T) {
	f := newIssueFixture()
	issue := f.submit(t, "citizen-1")

	if issue.Status != domain.IssueStatusPending {
		t.Fatalf("status = %v, want %v", issue.Status, domain.IssueStatusPending)
	}
	if issue.Priority != domain.IssuePriorityMedium {
		t.Fatalf("priority = %v, want default %v", issue.Priority, domain.IssuePriorityMedium)
	}
	if len(issue.Timeline) != 1 || issue.Timeline[0].Action != "reported" {
		t.Fatalf("timeline = %+v, want single reported entry", issue.Timeline)
	}

	events := f.ledgerEvents(t, "citizen-1")
	if len(events) != 1 {
		t.Fatalf("ledger events = %d, want 1", len(events))
	}
	if events[0].Type != domain.ContributionIssueReported || events[0].Points != domain.PointsIssueReported {
		t.Fatalf("event = %+v, want issue_reported worth %d", events[0], domain.PointsIssueReported)
	}
}

func TestSubmitIssueValidation(t *testing.T) {
	f := newIssueFixture()

	draft := validDraft()
	draft.Title = ""
	draft.Category = "PLUMBING"
	lat := 123.0
	draft.Location.Latitude = &lat

	_, err := f.svc.SubmitIssue(context.Background(), "citizen-1", draft)
	if apperrors.Code(err) != "VALIDATION_FAILED" {
		t.Fatalf("code = %q, want VALIDATION_FAILED (err=%v)", apperrors.Code(err), err)
	}
	domainErr := apperrors.ToDomainError(err)
	for _, field := range []string{"title", "category", "location.latitude"} {
		if _, ok := domainErr.Details[field]; !ok {
			t.Fatalf("details missing %q: %+v", field, domainErr.Details)
		}
	}
}

func TestTransitionFullLifecycle(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")
	authority := f.seedAuthority(t, issue.Category, domain.AuthorityActive)
	operator := domain.Actor{ID: authority.ID, Role: domain.RoleAuthority}

	f.clock.Advance(1 * time.Hour)
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusVerified, "checked photos", nil); err != nil {
		t.Fatalf("verify: %v", err)
	}

	f.clock.Advance(1 * time.Hour)
	assigned, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusAssigned, "", &authority.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assigned.AssignedAuthorityID == nil || *assigned.AssignedAuthorityID != authority.ID {
		t.Fatalf("assigned authority = %v, want %s", assigned.AssignedAuthorityID, authority.ID)
	}

	f.clock.Advance(1 * time.Hour)
	if _, err := f.svc.Transition(ctx, issue.ID, operator, domain.IssueStatusInProgress, "crew dispatched", nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clock.Advance(26 * time.Hour) // 29h after submission
	resolved, err := f.svc.Transition(ctx, issue.ID, operator, domain.IssueStatusResolved, "light replaced", nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ActualResolutionHours == nil || *resolved.ActualResolutionHours != 29.0 {
		t.Fatalf("actual resolution hours = %v, want 29.0", resolved.ActualResolutionHours)
	}
	if len(resolved.Timeline) != 5 {
		t.Fatalf("timeline entries = %d, want 5", len(resolved.Timeline))
	}
	for i := 1; i < len(resolved.Timeline); i++ {
		if resolved.Timeline[i].Timestamp.Before(resolved.Timeline[i-1].Timestamp) {
			t.Fatalf("timeline timestamps decrease at %d: %+v", i, resolved.Timeline)
		}
	}

	f.clock.Advance(1 * time.Hour)
	closed, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusClosed, "citizen confirmed", nil)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if *closed.ActualResolutionHours != 29.0 {
		t.Fatalf("resolution hours changed after close: %v", *closed.ActualResolutionHours)
	}

	events := f.ledgerEvents(t, "citizen-1")
	var resolvedAwards int
	total := 0
	for _, event := range events {
		total += event.Points
		if event.Type == domain.ContributionIssueResolved {
			resolvedAwards++
		}
	}
	if resolvedAwards != 1 {
		t.Fatalf("issue_resolved awards = %d, want 1", resolvedAwards)
	}
	if total != domain.PointsIssueReported+domain.PointsIssueResolved {
		t.Fatalf("total points = %d, want %d", total, domain.PointsIssueReported+domain.PointsIssueResolved)
	}
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")

	_, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusResolved, "", nil)
	if apperrors.Code(err) != "INVALID_TRANSITION" {
		t.Fatalf("code = %q, want INVALID_TRANSITION", apperrors.Code(err))
	}

	stored, err := f.svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if stored.Status != domain.IssueStatusPending {
		t.Fatalf("status after rejected edge = %v, want PENDING", stored.Status)
	}
	if len(stored.Timeline) != 1 {
		t.Fatalf("timeline grew on rejected edge: %d entries", len(stored.Timeline))
	}
}

func TestTransitionTerminalStates(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusRejected, "duplicate", nil); err != nil {
		t.Fatalf("reject: %v", err)
	}

	for _, target := range []domain.IssueStatus{
		domain.IssueStatusVerified,
		domain.IssueStatusPending,
		domain.IssueStatusClosed,
	} {
		if _, err := f.svc.Transition(ctx, issue.ID, admin, target, "", nil); apperrors.Code(err) != "INVALID_TRANSITION" {
			t.Fatalf("REJECTED -> %s: code = %q, want INVALID_TRANSITION", target, apperrors.Code(err))
		}
	}
}

func TestTransitionAuthorization(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	citizen := domain.Actor{ID: "citizen-1", Role: domain.RoleCitizen}

	issue := f.submit(t, "citizen-1")
	authority := f.seedAuthority(t, issue.Category, domain.AuthorityActive)
	other := f.seedAuthority(t, issue.Category, domain.AuthorityActive)
	operator := domain.Actor{ID: authority.ID, Role: domain.RoleAuthority}
	stranger := domain.Actor{ID: other.ID, Role: domain.RoleAuthority}

	if _, err := f.svc.Transition(ctx, issue.ID, citizen, domain.IssueStatusVerified, "", nil); apperrors.Code(err) != "FORBIDDEN" {
		t.Fatalf("citizen verify: code = %q, want FORBIDDEN", apperrors.Code(err))
	}
	if _, err := f.svc.Transition(ctx, issue.ID, operator, domain.IssueStatusVerified, "", nil); apperrors.Code(err) != "FORBIDDEN" {
		t.Fatalf("authority verify: code = %q, want FORBIDDEN", apperrors.Code(err))
	}

	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusVerified, "", nil); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusAssigned, "", &authority.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if _, err := f.svc.Transition(ctx, issue.ID, stranger, domain.IssueStatusInProgress, "", nil); apperrors.Code(err) != "FORBIDDEN" {
		t.Fatalf("unassigned authority start: code = %q, want FORBIDDEN", apperrors.Code(err))
	}
	if _, err := f.svc.Transition(ctx, issue.ID, operator, domain.IssueStatusInProgress, "", nil); err != nil {
		t.Fatalf("assigned authority start: %v", err)
	}
}

func TestTransitionAssignmentValidatesAuthority(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusVerified, "", nil); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusAssigned, "", nil); apperrors.Code(err) != "VALIDATION_FAILED" {
		t.Fatalf("missing authority: code = %q, want VALIDATION_FAILED", apperrors.Code(err))
	}

	missing := "no-such-authority"
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusAssigned, "", &missing); apperrors.Code(err) != "NOT_FOUND" {
		t.Fatalf("unknown authority: code = %q, want NOT_FOUND", apperrors.Code(err))
	}

	inactive := f.seedAuthority(t, issue.Category, domain.AuthorityInactive)
	if _, err := f.svc.Transition(ctx, issue.ID, admin, domain.IssueStatusAssigned, "", &inactive.ID); apperrors.Code(err) != "CONFLICT" {
		t.Fatalf("inactive authority: code = %q, want CONFLICT", apperrors.Code(err))
	}
}

// interceptIssueRepo mutates stored state between the service's read and its
// conditional write so the write observes a lost race.
type interceptIssueRepo struct {
	repository.IssueRepository
	afterGet func()
}

func (r *interceptIssueRepo) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	issue, err := r.IssueRepository.GetByID(ctx, id)
	if err == nil && r.afterGet != nil {
		hook := r.afterGet
		r.afterGet = nil
		hook()
	}
	return issue, err
}

func TestTransitionConflictOnLostRace(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}
	rival := domain.Actor{ID: "admin-2", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")

	intercept := &interceptIssueRepo{IssueRepository: f.issues}
	racer := NewIssueService(IssueDependencies{
		IssueRepo:     intercept,
		AuthorityRepo: f.authorities,
	})
	racer.now = f.clock.Now

	intercept.afterGet = func() {
		if _, err := f.svc.Transition(ctx, issue.ID, rival, domain.IssueStatusRejected, "", nil); err != nil {
			t.Fatalf("rival transition: %v", err)
		}
	}

	_, err := racer.Transition(ctx, issue.ID, admin, domain.IssueStatusVerified, "", nil)
	if apperrors.Code(err) != "CONFLICT" {
		t.Fatalf("code = %q, want CONFLICT (err=%v)", apperrors.Code(err), err)
	}

	stored, err := f.svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if stored.Status != domain.IssueStatusRejected {
		t.Fatalf("status = %v, want winner's REJECTED", stored.Status)
	}
}

func TestBulkTransitionIsolatesFailures(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	first := f.submit(t, "citizen-1")
	second := f.submit(t, "citizen-2")
	third := f.submit(t, "citizen-3")
	if _, err := f.svc.Transition(ctx, third.ID, admin, domain.IssueStatusVerified, "", nil); err != nil {
		t.Fatalf("pre-verify: %v", err)
	}

	result := f.svc.BulkTransition(ctx, []string{first.ID, second.ID, third.ID, "missing-id"}, admin, domain.IssueStatusVerified, "", nil)

	if len(result.Successful) != 2 {
		t.Fatalf("successful = %v, want 2 entries", result.Successful)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("failed = %+v, want 2 entries", result.Failed)
	}
	codes := map[string]string{}
	for _, item := range result.Failed {
		codes[item.IssueID] = item.Code
	}
	if codes[third.ID] != "INVALID_TRANSITION" {
		t.Fatalf("already-verified code = %q, want INVALID_TRANSITION", codes[third.ID])
	}
	if codes["missing-id"] != "NOT_FOUND" {
		t.Fatalf("missing issue code = %q, want NOT_FOUND", codes["missing-id"])
	}
}

func TestToggleUpvoteAwardsOnce(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()

	issue := f.submit(t, "citizen-1")

	upvoted, err := f.svc.ToggleUpvote(ctx, issue.ID, "citizen-2")
	if err != nil {
		t.Fatalf("toggle on: %v", err)
	}
	if !upvoted.HasUpvote("citizen-2") {
		t.Fatalf("upvote not recorded: %v", upvoted.Upvoters)
	}

	removed, err := f.svc.ToggleUpvote(ctx, issue.ID, "citizen-2")
	if err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if removed.HasUpvote("citizen-2") {
		t.Fatalf("upvote not removed: %v", removed.Upvoters)
	}

	if _, err := f.svc.ToggleUpvote(ctx, issue.ID, "citizen-2"); err != nil {
		t.Fatalf("toggle on again: %v", err)
	}

	events := f.ledgerEvents(t, "citizen-2")
	if len(events) != 1 || events[0].Type != domain.ContributionUpvoteGiven || events[0].Points != domain.PointsUpvoteGiven {
		t.Fatalf("events = %+v, want exactly one upvote_given worth %d", events, domain.PointsUpvoteGiven)
	}
}

func TestAddCommentAwardsFirstOnly(t *testing.T) {
	f := newIssueFixture()
	ctx := context.Background()
	citizen := domain.Actor{ID: "citizen-2", Role: domain.RoleCitizen}
	admin := domain.Actor{ID: "admin-1", Role: domain.RoleAdmin}

	issue := f.submit(t, "citizen-1")

	if _, err := f.svc.AddComment(ctx, issue.ID, citizen, "same problem on my street"); err != nil {
		t.Fatalf("first comment: %v", err)
	}
	if _, err := f.svc.AddComment(ctx, issue.ID, citizen, "still not fixed"); err != nil {
		t.Fatalf("second comment: %v", err)
	}
	if _, err := f.svc.AddComment(ctx, issue.ID, admin, "scheduled for review"); err != nil {
		t.Fatalf("admin comment: %v", err)
	}

	stored, err := f.svc.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if len(stored.Comments) != 3 {
		t.Fatalf("comments = %d, want 3", len(stored.Comments))
	}

	citizenEvents := f.ledgerEvents(t, citizen.ID)
	if len(citizenEvents) != 1 || citizenEvents[0].Type != domain.ContributionCommentAdded {
		t.Fatalf("citizen events = %+v, want one comment_added", citizenEvents)
	}
	if adminEvents := f.ledgerEvents(t, admin.ID); len(adminEvents) != 0 {
		t.Fatalf("admin events = %+v, want none", adminEvents)
	}

	if _, err := f.svc.AddComment(ctx, issue.ID, citizen, "   "); apperrors.Code(err) != "VALIDATION_FAILED" {
		t.Fatalf("blank body: code = %q, want VALIDATION_FAILED", apperrors.Code(err))
	}
}
