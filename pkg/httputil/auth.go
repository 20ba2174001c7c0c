package httputil

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// ExtractBearerToken extracts a Bearer token from the Authorization header.
// The scheme is matched case-insensitively. Returns "" and false when the
// header is absent, uses another scheme, or carries an empty token.
func ExtractBearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if len(auth) < len(bearerPrefix) || !strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(auth[len(bearerPrefix):])
	return tok, tok != ""
}

// HasAuthHeader checks if the request has any Authorization header.
func HasAuthHeader(r *http.Request) bool {
	return r.Header.Get("Authorization") != ""
}

// ConstantTimeEqual compares two secrets without leaking their common
// prefix length through timing.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
