package models

const (
	RoleAdmin = "ADMIN"
	RoleAgent = "AGENT"
)

// User carries the approval hierarchy as an explicit ownership edge:
// SupervisorID is nil for top-level users. Approval authority over a user's
// reduction requests belongs to the direct supervisor only.
type User struct {
	ID           int64
	Name         string
	Role         string
	SupervisorID *int64
	CommuneID    string
}

// IsAdmin reports whether the user has the administrator role.
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// CanSee reports whether the user's organizational scope covers the given
// commune. Administrators see every jurisdiction.
func (u *User) CanSee(communeID string) bool {
	return u.IsAdmin() || u.CommuneID == communeID
}
