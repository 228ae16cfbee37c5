// Package httpapi assembles the HTTP surface: middleware chain, feature
// handlers, and operational endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	envelopehandler "sigil/internal/hashchain/handler"
	provenancehandler "sigil/internal/provenance/handler"
	scorehandler "sigil/internal/score/handler"
	verifyhandler "sigil/internal/verify/handler"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/platform/middleware/metadata"
	"sigil/pkg/platform/middleware/requestid"
	"sigil/pkg/platform/middleware/requesttime"
)

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts. Health checkers may be nil
// when the corresponding backend is not configured.
type Deps struct {
	Envelope   *envelopehandler.Handler
	Provenance *provenancehandler.Handler
	Verify     *verifyhandler.Handler
	Score      *scorehandler.Handler

	AuthValidator *auth.Validator
	Logger        *slog.Logger

	HealthCheckers map[string]HealthChecker
}

// New wires all public endpoints. Envelope building, verification, and
// scoring are pure computation and stay public; record appends require a
// bearer token.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	deps.Envelope.Register(r)
	deps.Provenance.Register(r)
	deps.Verify.Register(r)
	deps.Score.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(deps.AuthValidator, deps.Logger))
		deps.Provenance.RegisterProtected(r)
	})

	r.Get("/healthz", handleHealth(deps.HealthCheckers))
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func handleHealth(checkers map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := http.StatusOK
		report := make(map[string]string, len(checkers)+1)
		report["status"] = "ok"

		for name, c := range checkers {
			if c == nil {
				continue
			}
			if err := c.Health(ctx); err != nil {
				report[name] = err.Error()
				report["status"] = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}
		httputil.WriteJSON(w, status, report)
	}
}
