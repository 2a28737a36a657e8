package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// CreateAuthorityRequest payload.
type CreateAuthorityRequest struct {
	Name         string               `json:"name"`
	Department   domain.IssueCategory `json:"department"`
	ContactEmail string               `json:"contact_email"`
	ContactPhone string               `json:"contact_phone"`
	ServiceArea  string               `json:"service_area"`
}

// UpdateAuthorityRequest payload. Replaces mutable fields; an empty status
// keeps the current one.
type UpdateAuthorityRequest struct {
	Name         string                 `json:"name"`
	Department   domain.IssueCategory   `json:"department"`
	ContactEmail string                 `json:"contact_email"`
	ContactPhone string                 `json:"contact_phone"`
	ServiceArea  string                 `json:"service_area"`
	Status       domain.AuthorityStatus `json:"status"`
}

// AuthorityResponse is the public authority representation.
type AuthorityResponse struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Department   domain.IssueCategory   `json:"department"`
	ContactEmail string                 `json:"contact_email"`
	ContactPhone string                 `json:"contact_phone"`
	ServiceArea  string                 `json:"service_area"`
	Status       domain.AuthorityStatus `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// AuthorityPerformanceResponse reports recomputed workload counters.
type AuthorityPerformanceResponse struct {
	AuthorityID    string  `json:"authority_id"`
	OpenAssigned   int     `json:"open_assigned"`
	ResolvedTotal  int     `json:"resolved_total"`
	AssignedTotal  int     `json:"assigned_total"`
	ResolutionRate float64 `json:"resolution_rate"`
}
