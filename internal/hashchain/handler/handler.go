package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/envelope"
	"sigil/internal/hashchain"
	"sigil/internal/hashchain/metrics"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/requestcontext"
)

// Builder defines the interface for envelope creation.
type Builder interface {
	Build(ctx context.Context, req hashchain.BuildRequest) (envelope.Envelope, error)
}

// Handler wires the envelope build endpoint to the hash chain builder.
type Handler struct {
	builder Builder
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New constructs an envelope handler with its dependencies.
func New(builder Builder, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		builder: builder,
		logger:  logger,
		metrics: metrics,
	}
}

// Register mounts envelope endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/envelope/build", h.HandleBuild)
}

// HandleBuild handles POST /envelope/build requests.
func (h *Handler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[*BuildEnvelopeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	env, err := h.builder.Build(ctx, hashchain.BuildRequest{
		DocumentID:  req.DocumentID,
		VersionID:   req.VersionID,
		ContentType: req.ContentType,
		Body:        bytes.NewReader(req.ParsedBody()),
		Governance:  req.ParsedGovernance(),
		Secret:      req.ParsedSecret(),
		AlgorithmID: req.AlgorithmID,
	})
	if err != nil {
		h.metrics.IncBuild("error", metricAlgorithm(req.AlgorithmID))
		h.logger.ErrorContext(ctx, "envelope build failed",
			"request_id", requestID,
			"document_id", req.DocumentID,
			"version_id", req.VersionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.metrics.IncBuild("ok", env.Integrity.AlgorithmID)
	h.metrics.ObserveBuildLatency(time.Since(start))
	h.metrics.ObserveDocumentBytes(len(req.ParsedBody()))

	h.logger.InfoContext(ctx, "envelope built",
		"request_id", requestID,
		"document_id", env.Document.DocumentID,
		"version_id", env.Document.VersionID,
		"algorithm", env.Integrity.AlgorithmID,
		"trust_level", env.TrustLevel,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, env)
}

// metricAlgorithm maps a caller-supplied algorithm id to a bounded label
// value. Unregistered ids collapse to "unknown" so label cardinality stays
// fixed at the registry size.
func metricAlgorithm(algorithmID string) string {
	if algorithmID == "" {
		return hashchain.AlgSHA256HMAC
	}
	if _, err := hashchain.Lookup(algorithmID); err != nil {
		return "unknown"
	}
	return algorithmID
}
