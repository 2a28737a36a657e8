package domain

import (
	"testing"
	"time"
)

func TestIssueStatusIsTerminal(t *testing.T) {
	cases := []struct {
		status IssueStatus
		want   bool
	}{
		{IssueStatusPending, false},
		{IssueStatusVerified, false},
		{IssueStatusAssigned, false},
		{IssueStatusInProgress, false},
		{IssueStatusResolved, false},
		{IssueStatusRejected, true},
		{IssueStatusClosed, true},
	}
	for _, tc := range cases {
		if got := tc.status.IsTerminal(); got != tc.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestPeriodKeyString(t *testing.T) {
	if got := (PeriodKey{Year: 2026, Month: 8}).String(); got != "2026-08" {
		t.Fatalf("monthly key = %q, want 2026-08", got)
	}
	if got := (PeriodKey{Year: 2026}).String(); got != "2026" {
		t.Fatalf("yearly key = %q, want 2026", got)
	}
}

func TestPeriodOf(t *testing.T) {
	key := PeriodOf(time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC))
	if key.Year != 2026 || key.Month != 1 {
		t.Fatalf("PeriodOf = %+v, want 2026-01", key)
	}
}

func TestUserActorDerivation(t *testing.T) {
	authorityID := "authority-1"
	operator := &User{ID: "user-1", Role: RoleAuthority, AuthorityID: &authorityID}
	if actor := operator.Actor(); actor.ID != authorityID || actor.Role != RoleAuthority {
		t.Fatalf("operator actor = %+v, want authority identity", actor)
	}

	citizen := &User{ID: "user-2", Role: RoleCitizen}
	if actor := citizen.Actor(); actor.ID != "user-2" || actor.Role != RoleCitizen {
		t.Fatalf("citizen actor = %+v, want own identity", actor)
	}
}

func TestAuthorityWorkloadResolutionRate(t *testing.T) {
	if rate := (AuthorityWorkload{}).ResolutionRate(); rate != 0 {
		t.Fatalf("rate with no assignments = %v, want 0", rate)
	}
	load := AuthorityWorkload{ResolvedTotal: 3, AssignedTotal: 4}
	if rate := load.ResolutionRate(); rate != 0.75 {
		t.Fatalf("rate = %v, want 0.75", rate)
	}
}
