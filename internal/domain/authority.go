package domain

import "time"

// AuthorityStatus marks whether an authority accepts assignments.
type AuthorityStatus string

const (
	AuthorityActive   AuthorityStatus = "ACTIVE"
	AuthorityInactive AuthorityStatus = "INACTIVE"
)

// Authority is a department responsible for resolving issues in a category
// and service area.
type Authority struct {
	ID           string
	Name         string
	Department   IssueCategory
	ContactEmail string
	ContactPhone string
	ServiceArea  string
	Status       AuthorityStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthorityWorkload holds recomputed performance counters for an authority.
// Derived from the issue store on demand, never persisted as truth.
type AuthorityWorkload struct {
	AuthorityID   string
	OpenAssigned  int
	ResolvedTotal int
	AssignedTotal int
}

// ResolutionRate is resolved over total lifetime assignments, 0 when none.
func (w AuthorityWorkload) ResolutionRate() float64 {
	if w.AssignedTotal == 0 {
		return 0
	}
	return float64(w.ResolvedTotal) / float64(w.AssignedTotal)
}
