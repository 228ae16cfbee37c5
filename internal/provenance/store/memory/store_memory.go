// Package memory provides the in-memory provenance store used by tests and
// single-process deployments. For durable multi-instance deployments use the
// postgres store instead.
package memory

import (
	"context"
	"sync"

	"sigil/internal/provenance"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

type docKey struct {
	documentID string
	versionID  string
}

type submissionKey struct {
	issuerID     domain.IssuerID
	submissionID domain.SubmissionID
}

// InMemoryStore implements provenance.Store with mutex-guarded maps. A single
// write lock serializes all appends, which trivially satisfies the per-issuer
// serialization requirement; chains stay fork-free by construction.
type InMemoryStore struct {
	mu          sync.RWMutex
	byID        map[domain.ProvenanceID]provenance.Record
	byDoc       map[docKey]domain.ProvenanceID
	byIssuer    map[domain.IssuerID][]domain.ProvenanceID
	submissions map[submissionKey]struct{}
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[domain.ProvenanceID]provenance.Record),
		byDoc:       make(map[docKey]domain.ProvenanceID),
		byIssuer:    make(map[domain.IssuerID][]domain.ProvenanceID),
		submissions: make(map[submissionKey]struct{}),
	}
}

// Append assigns the chain link and persists the record.
func (s *InMemoryStore) Append(_ context.Context, rec provenance.Record) (provenance.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuerID := rec.Governance.IssuerID
	subKey := submissionKey{issuerID: issuerID, submissionID: rec.SubmissionID}
	if _, exists := s.submissions[subKey]; exists {
		return provenance.Record{}, dErrors.Newf(dErrors.CodeConflict,
			"submission %q was already used by issuer %q", rec.SubmissionID, issuerID)
	}
	dKey := docKey{documentID: rec.Document.DocumentID, versionID: rec.Document.VersionID}
	if _, exists := s.byDoc[dKey]; exists {
		return provenance.Record{}, dErrors.Newf(dErrors.CodeConflict,
			"document %q version %q already has a record", dKey.documentID, dKey.versionID)
	}

	prevHash := provenance.GenesisHash
	if chain := s.byIssuer[issuerID]; len(chain) > 0 {
		head := s.byID[chain[len(chain)-1]]
		h, err := head.CanonicalHash()
		if err != nil {
			return provenance.Record{}, err
		}
		prevHash = h
	}
	rec.PreviousRecordHash = prevHash

	s.byID[rec.ProvenanceID] = rec
	s.byDoc[dKey] = rec.ProvenanceID
	s.byIssuer[issuerID] = append(s.byIssuer[issuerID], rec.ProvenanceID)
	s.submissions[subKey] = struct{}{}
	return rec, nil
}

// Get returns a record by provenance id.
func (s *InMemoryStore) Get(_ context.Context, id domain.ProvenanceID) (provenance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return provenance.Record{}, dErrors.Newf(dErrors.CodeNotFound, "no record with provenance id %q", id)
	}
	return rec, nil
}

// FindByDocument returns the record for a document version.
func (s *InMemoryStore) FindByDocument(_ context.Context, documentID, versionID string) (provenance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byDoc[docKey{documentID: documentID, versionID: versionID}]
	if !ok {
		return provenance.Record{}, dErrors.Newf(dErrors.CodeNotFound,
			"no record for document %q version %q", documentID, versionID)
	}
	return s.byID[id], nil
}

// ListByIssuer returns the issuer's records in append order.
func (s *InMemoryStore) ListByIssuer(_ context.Context, issuerID domain.IssuerID) ([]provenance.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byIssuer[issuerID]
	records := make([]provenance.Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, s.byID[id])
	}
	return records, nil
}

// Tamper overwrites a stored record in place, bypassing the append-only
// contract. It exists only so tests can simulate storage-level tampering;
// production code has no path to it.
func (s *InMemoryStore) Tamper(id domain.ProvenanceID, mutate func(*provenance.Record)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return false
	}
	mutate(&rec)
	s.byID[id] = rec
	return true
}
