package provenance

import (
	"context"

	"sigil/pkg/domain"
)

// Store persists provenance records. Implementations must guarantee:
//
//   - Append assigns PreviousRecordHash from the issuer's current chain head
//     (GenesisHash when the chain is empty) under per-issuer serialization,
//     so no two records ever claim the same predecessor position.
//   - A reused (issuer, submission) pair fails with CodeConflict and does not
//     grow the chain.
//   - A reused (document, version) pair fails with CodeConflict; superseding
//     content requires a new version id.
//   - Once Append returns, the record is durably retrievable and immutable.
//   - Reads observe a consistent snapshot, never a half-written record.
//
// Lookup misses return CodeNotFound.
type Store interface {
	// Append persists rec after assigning its PreviousRecordHash. The
	// returned record is the persisted form.
	Append(ctx context.Context, rec Record) (Record, error)

	// Get returns the record with the given provenance id.
	Get(ctx context.Context, id domain.ProvenanceID) (Record, error)

	// FindByDocument returns the record for a document version.
	FindByDocument(ctx context.Context, documentID, versionID string) (Record, error)

	// ListByIssuer returns the issuer's records in append order. Used by the
	// forensic chain walk and point-in-time reconstruction.
	ListByIssuer(ctx context.Context, issuerID domain.IssuerID) ([]Record, error)
}
