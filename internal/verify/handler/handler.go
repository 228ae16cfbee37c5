package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/provenance"
	"sigil/internal/verify"
	"sigil/pkg/domain"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/metadata"
	"sigil/pkg/requestcontext"
)

// Engine defines the interface for verification.
type Engine interface {
	Verify(ctx context.Context, req verify.Request) (verify.Verdict, error)
}

// RecordSource resolves stored records for verification by provenance id.
type RecordSource interface {
	Get(ctx context.Context, id domain.ProvenanceID) (provenance.Record, error)
}

// Handler wires the verification endpoint to the engine. Verification stays
// public: offline collaborators check envelopes without credentials.
type Handler struct {
	engine  Engine
	records RecordSource
	logger  *slog.Logger
}

// New constructs a verify handler with its dependencies.
func New(engine Engine, records RecordSource, logger *slog.Logger) *Handler {
	return &Handler{
		engine:  engine,
		records: records,
		logger:  logger,
	}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
}

// HandleVerify handles POST /verify requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[*VerifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	env := req.Envelope
	if env == nil {
		rec, err := h.records.Get(ctx, req.ParsedProvenanceID())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		env = &rec.Envelope
	}

	var body io.Reader
	if req.ParsedBody() != nil {
		body = bytes.NewReader(req.ParsedBody())
	}

	verdict, err := h.engine.Verify(ctx, verify.Request{
		Body:     body,
		Envelope: *env,
		Secret:   req.ParsedSecret(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "verification failed",
			"request_id", requestID,
			"document_id", env.Document.DocumentID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "verification performed",
		"request_id", requestID,
		"client_ip", metadata.GetClientIP(ctx),
		"user_agent", metadata.GetUserAgent(ctx),
		"document_id", env.Document.DocumentID,
		"version_id", env.Document.VersionID,
		"status", verdict.Status,
		"reason", verdict.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, verdict)
}
