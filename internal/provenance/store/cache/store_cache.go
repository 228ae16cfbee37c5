// Package cache decorates a provenance store with a Redis read-through
// cache. Records are immutable once written, so entries never need
// invalidation - a TTL bounds memory, nothing else. Cache failures degrade
// to the underlying store; they are logged, never surfaced.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"sigil/internal/provenance"
	"sigil/pkg/domain"
)

// TTL bounds cache residency for record lookups.
const TTL = 15 * time.Minute

// Store wraps an inner provenance.Store with Redis caching of Get and
// FindByDocument. Append and ListByIssuer pass through.
type Store struct {
	inner  provenance.Store
	client *redis.Client
	logger *slog.Logger
}

// New creates a caching decorator. The client must be non-nil; callers that
// run without Redis should use the inner store directly.
func New(inner provenance.Store, client *redis.Client, logger *slog.Logger) *Store {
	return &Store{inner: inner, client: client, logger: logger}
}

// Append passes through and warms the cache with the persisted record.
func (s *Store) Append(ctx context.Context, rec provenance.Record) (provenance.Record, error) {
	persisted, err := s.inner.Append(ctx, rec)
	if err != nil {
		return provenance.Record{}, err
	}
	s.put(ctx, persisted)
	return persisted, nil
}

// Get returns a record by provenance id, preferring the cache.
func (s *Store) Get(ctx context.Context, id domain.ProvenanceID) (provenance.Record, error) {
	if rec, ok := s.lookup(ctx, idKey(id)); ok {
		return rec, nil
	}
	rec, err := s.inner.Get(ctx, id)
	if err != nil {
		return provenance.Record{}, err
	}
	s.put(ctx, rec)
	return rec, nil
}

// FindByDocument returns the record for a document version, preferring the
// cache.
func (s *Store) FindByDocument(ctx context.Context, documentID, versionID string) (provenance.Record, error) {
	if rec, ok := s.lookup(ctx, docKey(documentID, versionID)); ok {
		return rec, nil
	}
	rec, err := s.inner.FindByDocument(ctx, documentID, versionID)
	if err != nil {
		return provenance.Record{}, err
	}
	s.put(ctx, rec)
	return rec, nil
}

// ListByIssuer always hits the underlying store: chain walks must see the
// authoritative append order.
func (s *Store) ListByIssuer(ctx context.Context, issuerID domain.IssuerID) ([]provenance.Record, error) {
	return s.inner.ListByIssuer(ctx, issuerID)
}

func (s *Store) lookup(ctx context.Context, key string) (provenance.Record, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return provenance.Record{}, false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "record cache read failed", "key", key, "error", err)
		return provenance.Record{}, false
	}
	var rec provenance.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.logger.WarnContext(ctx, "record cache entry corrupt", "key", key, "error", err)
		return provenance.Record{}, false
	}
	return rec, true
}

func (s *Store) put(ctx context.Context, rec provenance.Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, idKey(rec.ProvenanceID), raw, TTL)
	pipe.Set(ctx, docKey(rec.Document.DocumentID, rec.Document.VersionID), raw, TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WarnContext(ctx, "record cache write failed",
			"provenance_id", rec.ProvenanceID,
			"error", err,
		)
	}
}

func idKey(id domain.ProvenanceID) string {
	return "sigil:record:id:" + id.String()
}

func docKey(documentID, versionID string) string {
	return fmt.Sprintf("sigil:record:doc:%s:%s", documentID, versionID)
}
