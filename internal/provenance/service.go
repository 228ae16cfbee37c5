package provenance

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sigil/internal/envelope"
	"sigil/internal/notify"
	"sigil/internal/provenance/metrics"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

// Notifier is the best-effort side channel fed after authoritative
// operations complete. A nil-safe no-op implementation is acceptable.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

// Service coordinates record appends, lookups, and the forensic chain
// operations. All hashing is delegated to the record's canonical form; the
// service owns id assignment, timestamps, and the notification side channel.
type Service struct {
	store    Store
	notifier Notifier
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewService constructs the provenance service. notifier and m may be nil.
func NewService(store Store, notifier Notifier, m *metrics.Metrics) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "provenance store is required")
	}
	return &Service{
		store:    store,
		notifier: notifier,
		metrics:  m,
		tracer:   otel.Tracer("sigil/provenance"),
	}, nil
}

// Append persists an envelope as a new provenance record. The store assigns
// the chain link under per-issuer serialization; this method assigns the
// provenance id and creation time, then emits the side-channel notification
// only after the authoritative write succeeded.
func (s *Service) Append(ctx context.Context, env envelope.Envelope, submissionID domain.SubmissionID) (Record, error) {
	ctx, span := s.tracer.Start(ctx, "provenance.Append",
		trace.WithAttributes(
			attribute.String("issuer_id", env.Governance.IssuerID.String()),
			attribute.String("submission_id", submissionID.String()),
		))
	defer span.End()
	start := time.Now()

	if err := env.Validate(); err != nil {
		s.metrics.IncAppend("error")
		return Record{}, err
	}
	if submissionID.IsNil() {
		s.metrics.IncAppend("error")
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "submission id is required")
	}

	rec := Record{
		Envelope:     env,
		ProvenanceID: domain.NewProvenanceID(),
		SubmissionID: submissionID,
		CreatedAt:    requestcontext.Now(ctx).UTC(),
	}

	persisted, err := s.store.Append(ctx, rec)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			s.metrics.IncAppend("conflict")
		} else {
			s.metrics.IncAppend("error")
		}
		return Record{}, err
	}

	s.metrics.IncAppend("ok")
	s.metrics.ObserveAppendLatency(time.Since(start))

	if s.notifier != nil {
		s.notifier.Emit(ctx, notify.Event{
			Type:         notify.EventRecordAppended,
			IssuerID:     persisted.Governance.IssuerID.String(),
			ProvenanceID: persisted.ProvenanceID.String(),
			SubmissionID: persisted.SubmissionID.String(),
			DocumentID:   persisted.Document.DocumentID,
			VersionID:    persisted.Document.VersionID,
			RequestID:    requestcontext.RequestID(ctx),
		})
	}
	return persisted, nil
}

// Get returns a record by provenance id.
func (s *Service) Get(ctx context.Context, id domain.ProvenanceID) (Record, error) {
	if id.IsNil() {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "provenance id is required")
	}
	return s.store.Get(ctx, id)
}

// FindByDocument returns the record for a document version.
func (s *Service) FindByDocument(ctx context.Context, documentID, versionID string) (Record, error) {
	if documentID == "" || versionID == "" {
		return Record{}, dErrors.New(dErrors.CodeInvalidInput, "document id and version id are required")
	}
	return s.store.FindByDocument(ctx, documentID, versionID)
}
