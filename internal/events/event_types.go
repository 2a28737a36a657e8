package events

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueCreated       EventType = "issue_created"
	EventIssueStatusChanged EventType = "issue_status_changed"
	EventIssueAssigned      EventType = "issue_assigned"
	EventIssueUpvoted       EventType = "issue_upvoted"
	EventIssueCommentAdded  EventType = "issue_comment_added"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services. Delivery is
// best-effort; emitters never depend on the outcome.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueCreatedPayload carries the new issue plus the ranked candidate
// authorities so subscribers can alert likely assignees.
type IssueCreatedPayload struct {
	Category             domain.IssueCategory `json:"category"`
	Priority             domain.IssuePriority `json:"priority"`
	Title                string               `json:"title"`
	Ward                 string               `json:"ward,omitempty"`
	CandidateAuthorities []string             `json:"candidate_authorities,omitempty"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Notes     string             `json:"notes,omitempty"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AuthorityID string `json:"authority_id"`
}

// IssueUpvotedPayload payload.
type IssueUpvotedPayload struct {
	UserID  string `json:"user_id"`
	Upvoted bool   `json:"upvoted"`
	Total   int    `json:"total"`
}

// IssueCommentAddedPayload payload.
type IssueCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}
