package testutil

import (
	"net/http"

	authmw "sigil/pkg/platform/middleware/auth"
)

// WithSubject adds an authenticated subject to the request context,
// simulating what the auth middleware does for requests carrying a valid
// bearer token.
func WithSubject(req *http.Request, subject string) *http.Request {
	if subject == "" {
		return req
	}
	return req.WithContext(authmw.WithSubject(req.Context(), subject))
}
