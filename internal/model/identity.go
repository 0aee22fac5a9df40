package model

// Identity is what the authentication gate attaches to a request once all
// checks have passed.
type Identity struct {
	UserID    string
	LoginName string
	Role      Role
	Token     string // raw bearer token, kept for logout
}
