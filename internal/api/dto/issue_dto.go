package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title                    string                 `json:"title"`
	Description              string                 `json:"description"`
	Category                 domain.IssueCategory   `json:"category"`
	Priority                 domain.IssuePriority   `json:"priority"`
	Location                 domain.Location        `json:"location"`
	MediaRefs                []string               `json:"media_refs"`
	Tags                     []string               `json:"tags"`
	Visibility               domain.IssueVisibility `json:"visibility"`
	EstimatedResolutionHours *float64               `json:"estimated_resolution_hours"`
}

// TransitionRequest payload.
type TransitionRequest struct {
	TargetStatus        domain.IssueStatus `json:"target_status"`
	Notes               string             `json:"notes"`
	AssignedAuthorityID *string            `json:"assigned_authority_id"`
}

// BulkTransitionRequest payload.
type BulkTransitionRequest struct {
	IssueIDs            []string           `json:"issue_ids"`
	TargetStatus        domain.IssueStatus `json:"target_status"`
	Notes               string             `json:"notes"`
	AssignedAuthorityID *string            `json:"assigned_authority_id"`
}

// BulkTransitionResponse reports per-item outcomes.
type BulkTransitionResponse struct {
	Successful []string          `json:"successful"`
	Failed     []BulkFailureItem `json:"failed"`
}

// BulkFailureItem is one failed bulk item with its reason code.
type BulkFailureItem struct {
	IssueID string `json:"issue_id"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommentRequest payload.
type CommentRequest struct {
	Body string `json:"body"`
}

// TimelineEntryResponse is one audit record.
type TimelineEntryResponse struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Notes     string    `json:"notes,omitempty"`
}

// CommentResponse is one issue comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// IssueSummary response.
type IssueSummary struct {
	ID                  string               `json:"id"`
	Title               string               `json:"title"`
	Category            domain.IssueCategory `json:"category"`
	Priority            domain.IssuePriority `json:"priority"`
	Status              domain.IssueStatus   `json:"status"`
	Ward                string               `json:"ward,omitempty"`
	AssignedAuthorityID *string              `json:"assigned_authority_id"`
	Upvotes             int                  `json:"upvotes"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
}

// IssueDetailResponse provides full issue info.
type IssueDetailResponse struct {
	ID                       string                  `json:"id"`
	Title                    string                  `json:"title"`
	Description              string                  `json:"description"`
	Category                 domain.IssueCategory    `json:"category"`
	Priority                 domain.IssuePriority    `json:"priority"`
	Location                 domain.Location         `json:"location"`
	MediaRefs                []string                `json:"media_refs"`
	ReporterID               string                  `json:"reporter_id"`
	AssignedAuthorityID      *string                 `json:"assigned_authority_id"`
	Status                   domain.IssueStatus      `json:"status"`
	Timeline                 []TimelineEntryResponse `json:"timeline"`
	Upvotes                  int                     `json:"upvotes"`
	Comments                 []CommentResponse       `json:"comments"`
	EstimatedResolutionHours *float64                `json:"estimated_resolution_hours"`
	ActualResolutionHours    *float64                `json:"actual_resolution_hours"`
	Tags                     []string                `json:"tags"`
	Visibility               domain.IssueVisibility  `json:"visibility"`
	CreatedAt                time.Time               `json:"created_at"`
	UpdatedAt                time.Time               `json:"updated_at"`
}
