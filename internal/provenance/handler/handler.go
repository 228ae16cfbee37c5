package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sigil/internal/envelope"
	"sigil/internal/provenance"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/httputil"
	"sigil/pkg/platform/middleware/auth"
	"sigil/pkg/platform/middleware/metadata"
	"sigil/pkg/requestcontext"
)

// Service defines the interface for provenance operations.
type Service interface {
	Append(ctx context.Context, env envelope.Envelope, submissionID domain.SubmissionID) (provenance.Record, error)
	Get(ctx context.Context, id domain.ProvenanceID) (provenance.Record, error)
	FindByDocument(ctx context.Context, documentID, versionID string) (provenance.Record, error)
	VerifyChain(ctx context.Context, issuerID domain.IssuerID) (provenance.ChainReport, error)
	ReconstructStateAt(ctx context.Context, issuerID domain.IssuerID, ts time.Time) (provenance.Record, error)
}

// Handler wires provenance endpoints to the provenance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a provenance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the read-side provenance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/provenance/records/{provenanceID}", h.HandleGet)
	r.Get("/provenance/records", h.HandleFindByDocument)
	r.Get("/provenance/issuers/{issuerID}/chain", h.HandleVerifyChain)
	r.Get("/provenance/issuers/{issuerID}/state", h.HandleReconstructState)
}

// RegisterProtected mounts the mutating endpoints; the router wraps them
// with bearer token auth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/provenance/records", h.HandleAppend)
}

// HandleAppend handles POST /provenance/records requests.
func (h *Handler) HandleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	subject := auth.GetSubject(ctx)
	if subject == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*AppendRecordRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rec, err := h.service.Append(ctx, req.Envelope, req.ParsedSubmissionID())
	if err != nil {
		h.logger.ErrorContext(ctx, "record append failed",
			"request_id", requestID,
			"subject", subject,
			"client_ip", metadata.GetClientIP(ctx),
			"issuer_id", req.Envelope.Governance.IssuerID,
			"submission_id", req.SubmissionID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "record appended",
		"request_id", requestID,
		"subject", subject,
		"client_ip", metadata.GetClientIP(ctx),
		"user_agent", metadata.GetUserAgent(ctx),
		"issuer_id", rec.Governance.IssuerID,
		"provenance_id", rec.ProvenanceID,
		"submission_id", rec.SubmissionID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, rec)
}

// HandleGet handles GET /provenance/records/{provenanceID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := domain.ParseProvenanceID(chi.URLParam(r, "provenanceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleFindByDocument handles GET /provenance/records?documentId=&versionId=
// requests.
func (h *Handler) HandleFindByDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	documentID := r.URL.Query().Get("documentId")
	versionID := r.URL.Query().Get("versionId")
	if documentID == "" || versionID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput,
			"documentId and versionId query parameters are required"))
		return
	}

	rec, err := h.service.FindByDocument(ctx, documentID, versionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

// HandleVerifyChain handles GET /provenance/issuers/{issuerID}/chain requests.
func (h *Handler) HandleVerifyChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	issuerID, err := domain.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	report, err := h.service.VerifyChain(ctx, issuerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "chain verification failed",
			"request_id", requestID,
			"issuer_id", issuerID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if !report.Intact {
		h.logger.WarnContext(ctx, "chain break detected",
			"request_id", requestID,
			"issuer_id", issuerID,
			"break_at", report.BreakAt,
			"length", report.Length,
		)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleReconstructState handles GET /provenance/issuers/{issuerID}/state?at=
// requests.
func (h *Handler) HandleReconstructState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	issuerID, err := domain.ParseIssuerID(chi.URLParam(r, "issuerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	at := r.URL.Query().Get("at")
	if at == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "at query parameter is required"))
		return
	}
	ts, err := time.Parse(time.RFC3339, at)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "at must be RFC 3339"))
		return
	}

	rec, err := h.service.ReconstructStateAt(ctx, issuerID, ts)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}
