package domain

import "time"

// IssueStatus enumerates lifecycle states for civic issues.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "PENDING"
	IssueStatusVerified   IssueStatus = "VERIFIED"
	IssueStatusRejected   IssueStatus = "REJECTED"
	IssueStatusAssigned   IssueStatus = "ASSIGNED"
	IssueStatusInProgress IssueStatus = "IN_PROGRESS"
	IssueStatusResolved   IssueStatus = "RESOLVED"
	IssueStatusClosed     IssueStatus = "CLOSED"
)

// IsTerminal reports whether no further transitions are allowed.
func (s IssueStatus) IsTerminal() bool {
	return s == IssueStatusRejected || s == IssueStatusClosed
}

// IssueCategory is the closed set of reportable problem categories.
type IssueCategory string

const (
	CategoryRoad        IssueCategory = "ROAD"
	CategoryWater       IssueCategory = "WATER"
	CategorySanitation  IssueCategory = "SANITATION"
	CategoryElectricity IssueCategory = "ELECTRICITY"
	CategoryStreetlight IssueCategory = "STREETLIGHT"
	CategoryOther       IssueCategory = "OTHER"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c IssueCategory) bool {
	switch c {
	case CategoryRoad, CategoryWater, CategorySanitation, CategoryElectricity, CategoryStreetlight, CategoryOther:
		return true
	}
	return false
}

// IssuePriority enumerates urgency.
type IssuePriority string

const (
	IssuePriorityLow    IssuePriority = "LOW"
	IssuePriorityMedium IssuePriority = "MEDIUM"
	IssuePriorityHigh   IssuePriority = "HIGH"
	IssuePriorityUrgent IssuePriority = "URGENT"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p IssuePriority) bool {
	switch p {
	case IssuePriorityLow, IssuePriorityMedium, IssuePriorityHigh, IssuePriorityUrgent:
		return true
	}
	return false
}

// IssueVisibility controls public listing exposure.
type IssueVisibility string

const (
	VisibilityPublic  IssueVisibility = "PUBLIC"
	VisibilityPrivate IssueVisibility = "PRIVATE"
)

// Location pins an issue to a place.
type Location struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Ward      string   `json:"ward,omitempty"`
	District  string   `json:"district,omitempty"`
}

// TimelineEntry is one immutable audit record on an issue. Entries are only
// ever appended, with non-decreasing timestamps.
type TimelineEntry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id"`
	Notes     string    `json:"notes,omitempty"`
}

// Comment is a citizen or authority remark on an issue.
type Comment struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue is the aggregate for a reported civic problem. Status changes happen
// only through the state machine; the timeline and status commit together.
type Issue struct {
	ID                       string
	Title                    string
	Description              string
	Category                 IssueCategory
	Priority                 IssuePriority
	Location                 Location
	MediaRefs                []string
	ReporterID               string
	AssignedAuthorityID      *string
	Status                   IssueStatus
	Timeline                 []TimelineEntry
	Upvoters                 []string
	Comments                 []Comment
	EstimatedResolutionHours *float64
	ActualResolutionHours    *float64
	Tags                     []string
	Visibility               IssueVisibility
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// HasUpvote reports whether userID currently upvotes the issue.
func (i *Issue) HasUpvote(userID string) bool {
	for _, id := range i.Upvoters {
		if id == userID {
			return true
		}
	}
	return false
}
