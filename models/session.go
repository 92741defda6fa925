package models

import "strings"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSupplier Role = "supplier"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSupplier
}

// Label is the generic display name used when no profile name is known.
func (r Role) Label() string {
	return string(r)
}

// Session identifies who is looking at the portal. It is threaded explicitly
// through every component instead of being read from ambient state.
type Session struct {
	Role   Role   `json:"role"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (s Session) IsAdmin() bool    { return s.Role == RoleAdmin }
func (s Session) IsSupplier() bool { return s.Role == RoleSupplier }

// NormalizedEmail returns the session email lowercased and trimmed, the form
// supplier_email columns are matched against.
func (s Session) NormalizedEmail() string {
	return NormalizeEmail(s.Email)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Identity is what the authentication backend knows about the caller.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
