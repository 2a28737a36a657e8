package service

import (
	"context"
	"testing"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

type assignmentFixture struct {
	svc         *AssignmentService
	issues      repository.IssueRepository
	authorities repository.AuthorityRepository
}

func newAssignmentFixture() *assignmentFixture {
	issues := repository.NewMemoryIssueRepository()
	authorities := repository.NewMemoryAuthorityRepository()
	svc := NewAssignmentService(AssignmentDependencies{
		IssueRepo:     issues,
		AuthorityRepo: authorities,
	})
	return &assignmentFixture{svc: svc, issues: issues, authorities: authorities}
}

func (f *assignmentFixture) addAuthority(t *testing.T, name string, department domain.IssueCategory, serviceArea string, status domain.AuthorityStatus) *domain.Authority {
	t.Helper()
	authority := &domain.Authority{
		Name:        name,
		Department:  department,
		ServiceArea: serviceArea,
		Status:      status,
	}
	if err := f.authorities.Create(context.Background(), authority); err != nil {
		t.Fatalf("Create authority: %v", err)
	}
	return authority
}

func (f *assignmentFixture) addAssignedIssue(t *testing.T, authorityID string, status domain.IssueStatus) {
	t.Helper()
	err := f.issues.Create(context.Background(), &domain.Issue{
		Title:               "seeded",
		Description:         "seeded",
		Category:            domain.CategoryRoad,
		ReporterID:          "citizen-1",
		AssignedAuthorityID: &authorityID,
		Status:              status,
	})
	if err != nil {
		t.Fatalf("Create issue: %v", err)
	}
}

func TestRankCandidatesOrdersByWorkload(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	busy := f.addAuthority(t, "Busy Crew", domain.CategoryRoad, "north", domain.AuthorityActive)
	idle := f.addAuthority(t, "Idle Crew", domain.CategoryRoad, "north", domain.AuthorityActive)
	f.addAuthority(t, "Water Crew", domain.CategoryWater, "north", domain.AuthorityActive)
	f.addAuthority(t, "Retired Crew", domain.CategoryRoad, "north", domain.AuthorityInactive)

	f.addAssignedIssue(t, busy.ID, domain.IssueStatusAssigned)
	f.addAssignedIssue(t, busy.ID, domain.IssueStatusInProgress)
	f.addAssignedIssue(t, idle.ID, domain.IssueStatusClosed)

	issue := &domain.Issue{Category: domain.CategoryRoad, Location: domain.Location{District: "north"}}
	candidates, err := f.svc.RankCandidates(ctx, issue)
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want 2 active road authorities", len(candidates))
	}
	if candidates[0].ID != idle.ID {
		t.Fatalf("first candidate = %s, want least-loaded %s", candidates[0].Name, idle.Name)
	}
	if candidates[1].ID != busy.ID {
		t.Fatalf("second candidate = %s, want %s", candidates[1].Name, busy.Name)
	}
}

func TestRankCandidatesPrefersDistrict(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	f.addAuthority(t, "South Crew", domain.CategoryRoad, "south", domain.AuthorityActive)
	local := f.addAuthority(t, "North Crew", domain.CategoryRoad, "North", domain.AuthorityActive)

	issue := &domain.Issue{Category: domain.CategoryRoad, Location: domain.Location{District: "north"}}
	candidates, err := f.svc.RankCandidates(ctx, issue)
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	// Service area match is case-insensitive and excludes the rest of the
	// department when any local candidate exists.
	if len(candidates) != 1 || candidates[0].ID != local.ID {
		t.Fatalf("candidates = %+v, want only the north crew", candidates)
	}

	issue.Location.District = "east"
	candidates, err = f.svc.RankCandidates(ctx, issue)
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("candidates = %d, want whole department when no local match", len(candidates))
	}
}

func TestRankCandidatesEmptyDepartment(t *testing.T) {
	f := newAssignmentFixture()

	issue := &domain.Issue{Category: domain.CategoryElectricity}
	candidates, err := f.svc.RankCandidates(context.Background(), issue)
	if err != nil {
		t.Fatalf("RankCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("candidates = %+v, want none", candidates)
	}
}

func TestCreateAuthorityValidation(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	_, err := f.svc.CreateAuthority(ctx, AuthorityInput{Name: " ", Department: "PLUMBING"})
	if apperrors.Code(err) != "VALIDATION_FAILED" {
		t.Fatalf("code = %q, want VALIDATION_FAILED", apperrors.Code(err))
	}

	created, err := f.svc.CreateAuthority(ctx, AuthorityInput{Name: "Road Crew", Department: domain.CategoryRoad})
	if err != nil {
		t.Fatalf("CreateAuthority: %v", err)
	}
	if created.Status != domain.AuthorityActive {
		t.Fatalf("status = %v, want default ACTIVE", created.Status)
	}
}

func TestDeleteAuthorityRefusedWithOpenAssignments(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	authority := f.addAuthority(t, "Road Crew", domain.CategoryRoad, "north", domain.AuthorityActive)
	f.addAssignedIssue(t, authority.ID, domain.IssueStatusInProgress)

	err := f.svc.DeleteAuthority(ctx, authority.ID)
	if apperrors.Code(err) != "CONFLICT" {
		t.Fatalf("code = %q, want CONFLICT", apperrors.Code(err))
	}

	if _, err := f.svc.GetAuthority(ctx, authority.ID); err != nil {
		t.Fatalf("authority deleted despite open assignment: %v", err)
	}
}

func TestDeleteAuthorityWithOnlyClosedWork(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	authority := f.addAuthority(t, "Road Crew", domain.CategoryRoad, "north", domain.AuthorityActive)
	f.addAssignedIssue(t, authority.ID, domain.IssueStatusClosed)

	if err := f.svc.DeleteAuthority(ctx, authority.ID); err != nil {
		t.Fatalf("DeleteAuthority: %v", err)
	}
	if _, err := f.svc.GetAuthority(ctx, authority.ID); apperrors.Code(err) != "NOT_FOUND" {
		t.Fatalf("code = %q, want NOT_FOUND after delete", apperrors.Code(err))
	}
}

func TestAuthorityPerformanceCounters(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()

	authority := f.addAuthority(t, "Road Crew", domain.CategoryRoad, "north", domain.AuthorityActive)
	f.addAssignedIssue(t, authority.ID, domain.IssueStatusAssigned)
	f.addAssignedIssue(t, authority.ID, domain.IssueStatusResolved)
	f.addAssignedIssue(t, authority.ID, domain.IssueStatusClosed)

	load, err := f.svc.AuthorityPerformance(ctx, authority.ID)
	if err != nil {
		t.Fatalf("AuthorityPerformance: %v", err)
	}
	if load.OpenAssigned != 1 || load.ResolvedTotal != 2 || load.AssignedTotal != 3 {
		t.Fatalf("workload = %+v, want open 1 resolved 2 total 3", load)
	}
	if rate := load.ResolutionRate(); rate != 2.0/3.0 {
		t.Fatalf("resolution rate = %v, want 2/3", rate)
	}
}
