//go:build integration

package cache_test

import (
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/envelope"
	"sigil/internal/hashchain"
	"sigil/internal/provenance"
	"sigil/internal/provenance/store/cache"
	"sigil/internal/provenance/store/memory"
	"sigil/pkg/domain"
	"sigil/pkg/testutil/containers"
)

func newCachedStore(t *testing.T) (*cache.Store, *memory.InMemoryStore) {
	t.Helper()
	rc := containers.NewRedisContainer(t)
	inner := memory.NewInMemoryStore()
	logger := slog.New(slog.DiscardHandler)
	return cache.New(inner, rc.Client, logger), inner
}

func newRecord(t *testing.T, docID string) provenance.Record {
	t.Helper()
	env, err := hashchain.NewBuilder().Build(context.Background(), hashchain.BuildRequest{
		DocumentID:  docID,
		VersionID:   "v1",
		ContentType: "application/pdf",
		Body:        strings.NewReader("BODY-" + docID),
		Governance: envelope.GovernanceMetadata{
			IssuerID:           "acme",
			ResponsibleActorID: "u1",
			IntentCode:         "export.pdf",
			PolicyReference:    "p1",
			Jurisdictions:      []string{"DE"},
			TimestampIssued:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Secret: []byte("s3cr3t"),
	})
	require.NoError(t, err)

	return provenance.Record{
		Envelope:     env,
		ProvenanceID: domain.NewProvenanceID(),
		SubmissionID: domain.SubmissionID("sub-" + docID),
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCacheStore_ReadThrough(t *testing.T) {
	store, inner := newCachedStore(t)
	ctx := context.Background()

	rec, err := store.Append(ctx, newRecord(t, "doc-1"))
	require.NoError(t, err)

	t.Run("append warms the cache", func(t *testing.T) {
		// Mutate the inner copy; a cache hit returns the original.
		inner.Tamper(rec.ProvenanceID, func(r *provenance.Record) {
			r.Governance.IntentCode = "mutated"
		})

		got, err := store.Get(ctx, rec.ProvenanceID)
		require.NoError(t, err)
		assert.Equal(t, "export.pdf", got.Governance.IntentCode)
	})

	t.Run("find by document hits the cache too", func(t *testing.T) {
		got, err := store.FindByDocument(ctx, "doc-1", "v1")
		require.NoError(t, err)
		assert.Equal(t, rec.ProvenanceID, got.ProvenanceID)
		assert.Equal(t, "export.pdf", got.Governance.IntentCode)
	})

	t.Run("misses fall through to the inner store", func(t *testing.T) {
		rec2, err := inner.Append(ctx, newRecord(t, "doc-2"))
		require.NoError(t, err)

		got, err := store.Get(ctx, rec2.ProvenanceID)
		require.NoError(t, err)
		assert.Equal(t, rec2.ProvenanceID, got.ProvenanceID)
	})

	t.Run("chain walks bypass the cache", func(t *testing.T) {
		records, err := store.ListByIssuer(ctx, "acme")
		require.NoError(t, err)
		require.Len(t, records, 2)
		// The tampered inner copy is what a walk must see.
		assert.Equal(t, "mutated", records[0].Governance.IntentCode)
	})
}
