package model

import "time"

// Role is the coarse permission tag carried by every account. It is
// serialized as its number (99, 89), both in tokens and in JSON bodies.
type Role uint8

const (
	RoleAdmin Role = 99
	RoleStaff Role = 89
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStaff
}

// Name returns the display name of the role, "Unknown" for anything else.
func (r Role) Name() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleStaff:
		return "Staff"
	}
	return "Unknown"
}

// RoleFromName maps a display name back to its role tag.
func RoleFromName(name string) (Role, bool) {
	switch name {
	case "Admin":
		return RoleAdmin, true
	case "Staff":
		return RoleStaff, true
	}
	return 0, false
}

// User represents an account as stored in the `users` table.
//
// Fields:
//
//	ID           – opaque identifier (UUID string).
//	LoginName    – unique, case-sensitive login name.
//	PasswordHash – bcrypt hash; only populated by lookups that ask for it.
//	Role         – RoleAdmin or RoleStaff.
//	IsActive     – inactive accounts cannot log in or pass the gate.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           string    `json:"userId"`
	LoginName    string    `json:"loginName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
