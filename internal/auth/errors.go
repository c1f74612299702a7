package auth

import "errors"

var (
	// ErrUnauthorized is returned when credentials do not match a student
	// record. Unknown email and wrong password are indistinguishable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken is returned for malformed, expired, or revoked tokens.
	ErrInvalidToken = errors.New("invalid token")
)
