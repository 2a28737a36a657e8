package domain

import "time"

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is an account that can act on the platform. Citizens report issues;
// authority operators carry the authority they act for; admins verify and
// assign.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	AuthorityID  *string
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Actor derives the core-facing actor identity for an account. Authority
// operators act as their authority.
func (u *User) Actor() Actor {
	if u.Role == RoleAuthority && u.AuthorityID != nil {
		return Actor{ID: *u.AuthorityID, Role: RoleAuthority}
	}
	return Actor{ID: u.ID, Role: u.Role}
}
