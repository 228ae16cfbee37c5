// Package requestid assigns a correlation id to every request. Incoming
// X-Request-ID headers are honored so ids survive proxy hops; otherwise a
// fresh UUID is generated.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"sigil/pkg/requestcontext"
)

// HeaderName is the header carrying the correlation id in both directions.
const HeaderName = "X-Request-ID"

// Middleware injects a request id into the context and echoes it in the
// response so callers can correlate logs.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderName)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderName, reqID)
		ctx := requestcontext.WithRequestID(r.Context(), reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
