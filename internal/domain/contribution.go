package domain

import (
	"fmt"
	"time"
)

// ContributionType enumerates point-earning actions.
type ContributionType string

const (
	ContributionIssueReported ContributionType = "issue_reported"
	ContributionIssueResolved ContributionType = "issue_resolved"
	ContributionUpvoteGiven   ContributionType = "upvote_given"
	ContributionCommentAdded  ContributionType = "comment_added"
)

// Point values per contribution type.
const (
	PointsIssueReported = 2
	PointsIssueResolved = 5
	PointsUpvoteGiven   = 1
	PointsCommentAdded  = 1
)

// PeriodKey buckets ledger events into a (month, year) window. Month 0 means
// a yearly bucket.
type PeriodKey struct {
	Month int
	Year  int
}

// PeriodOf derives the monthly bucket for a timestamp.
func PeriodOf(t time.Time) PeriodKey {
	return PeriodKey{Month: int(t.Month()), Year: t.Year()}
}

// String renders "2026-08" for monthly keys and "2026" for yearly ones.
func (p PeriodKey) String() string {
	if p.Month == 0 {
		return fmt.Sprintf("%04d", p.Year)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// ContributionEvent is an immutable ledger row crediting a user with points
// for one qualifying action on one issue. At most one event exists per
// (UserID, Type, IssueID); the storage layer enforces the uniqueness.
type ContributionEvent struct {
	ID        string
	UserID    string
	Type      ContributionType
	IssueID   string
	Points    int
	Period    PeriodKey
	Category  IssueCategory
	CreatedAt time.Time
}
