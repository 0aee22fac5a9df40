package model

import "time"

// RevocationReason explains why a token was invalidated before its natural
// expiry.
type RevocationReason string

const (
	ReasonLogout   RevocationReason = "logout"
	ReasonSecurity RevocationReason = "security"
	ReasonExpired  RevocationReason = "expired"
)

// Valid reports whether the reason is one of the known values.
func (r RevocationReason) Valid() bool {
	switch r {
	case ReasonLogout, ReasonSecurity, ReasonExpired:
		return true
	}
	return false
}

// Revocation models a row in `token_revocations`. The raw token is never
// stored, only its SHA-256 hex digest. ExpiresAt equals the token's own
// expiry claim; once it passes the row carries no information and the
// sweeper removes it.
type Revocation struct {
	TokenHash string
	UserID    string
	Reason    RevocationReason
	ExpiresAt time.Time
	CreatedAt time.Time
}
