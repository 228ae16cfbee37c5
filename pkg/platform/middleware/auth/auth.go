// Package auth guards mutating endpoints with bearer token authentication.
// Tokens are HS256 JWTs issued out of band to integrating services; the
// engine only validates them. Verification endpoints stay public so offline
// collaborators (e.g. regulators) can check envelopes without credentials.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"sigil/pkg/platform/middleware/metadata"
	"sigil/pkg/requestcontext"
)

// Claims are the claims the engine cares about. Subject identifies the
// calling service.
type Claims struct {
	Subject string
}

type contextKeySubject struct{}

// GetSubject retrieves the authenticated subject from the context.
func GetSubject(ctx context.Context) string {
	if sub, ok := ctx.Value(contextKeySubject{}).(string); ok {
		return sub
	}
	return ""
}

// WithSubject injects a subject into a context. Useful for handler tests
// that bypass the middleware.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKeySubject{}, subject)
}

// Validator validates HS256 bearer tokens against a shared signing key.
type Validator struct {
	signingKey []byte
}

// NewValidator creates a token validator. The key must not be empty.
func NewValidator(signingKey []byte) (*Validator, error) {
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("auth: signing key is required")
	}
	return &Validator{signingKey: signingKey}, nil
}

// ValidateToken parses and verifies a token string.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("token missing subject")
	}
	return &Claims{Subject: sub}, nil
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":%q,"error_description":%q}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and records the
// authenticated subject in the context.
func RequireAuth(validator *Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
					"client_ip", metadata.GetClientIP(ctx),
					"user_agent", metadata.GetUserAgent(ctx),
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(ctx, claims.Subject)))
		})
	}
}
