package utils

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptHash signals that a stored hash could not be parsed. It is a
// data-integrity fault and must not be confused with a wrong password.
var ErrCorruptHash = errors.New("stored password hash is malformed")

// HashPassword returns a bcrypt hash using the given cost. bcrypt draws a
// fresh salt on every call, so hashing the same plaintext twice yields
// different outputs.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash and a plain password. A mismatch is
// (false, nil); only an unreadable hash produces an error.
func VerifyPassword(hash, plain string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrCorruptHash, err)
	}
}
