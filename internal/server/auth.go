package server

import (
	"crypto/subtle"
)

const (
	BearerPrefix = "Bearer "
)

// CheckAuthToken verifies the Authorization header against the configured
// secret. The header must be exactly "Bearer <secret>"; any deviation
// (missing header, wrong scheme, wrong token, stray whitespace) fails.
//
// An empty secret disables authentication and every request is accepted.
func CheckAuthToken(header, secret string) bool {
	if secret == "" {
		return true
	}

	expected := BearerPrefix + secret

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}
