package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"sigil/internal/score"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/requestcontext"
)

// ScoreRequest is the HTTP request body for POST /score.
type ScoreRequest struct {
	GovernanceLevel string   `json:"governanceLevel"`
	Controls        []string `json:"controls"`
}

// Validate implements the Validator interface for httputil.DecodeAndPrepare.
// Level and control values are checked by the scorer itself.
func (r *ScoreRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.GovernanceLevel == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "governanceLevel is required")
	}
	return nil
}

// Handler wires the resilience score endpoint to the scorer.
type Handler struct {
	logger *slog.Logger
}

// New constructs a score handler.
func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register mounts score endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/score", h.HandleScore)
}

// HandleScore handles POST /score requests.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[*ScoreRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	controls := make([]score.Control, len(req.Controls))
	for i, c := range req.Controls {
		controls[i] = score.Control(c)
	}

	result, err := score.Compute(score.GovernanceLevel(req.GovernanceLevel), controls)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
