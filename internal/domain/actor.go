package domain

// Role enumerates caller roles supplied by the identity layer.
type Role string

const (
	RoleCitizen   Role = "CITIZEN"
	RoleAuthority Role = "AUTHORITY"
	RoleAdmin     Role = "ADMIN"
)

// Actor is the already-verified caller identity attached to every core call.
// For RoleAuthority the ID is the authority id the caller acts for.
type Actor struct {
	ID   string
	Role Role
}
