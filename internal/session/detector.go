// Package session decides whether an API failure means the caller has to
// sign in again, and sends them to the sign-in page when it does.
package session

import "strings"

// AuthPath is where expired sessions are sent.
const AuthPath = "/auth"

var expiryMarkers = []string{"expired", "invalid", "unauthorized"}

// IsExpired reports whether err's message says the session is no longer
// valid: it must mention "session" and one of expired, invalid or
// unauthorized, case-insensitively. A nil error is never expired.
//
// TODO: match on a structured error code once the API returns one; message
// matching breaks as soon as the server wording changes.
func IsExpired(err error) bool {
	if err == nil {
		return false
	}
	return IsExpiredMessage(err.Error())
}

// IsExpiredMessage applies the IsExpired rule to raw text.
func IsExpiredMessage(msg string) bool {
	msg = strings.ToLower(msg)
	if !strings.Contains(msg, "session") {
		return false
	}
	for _, m := range expiryMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
