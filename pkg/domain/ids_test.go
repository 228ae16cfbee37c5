package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sigil/pkg/domain-errors"
)

func TestParseProvenanceID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseProvenanceID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseProvenanceID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseProvenanceID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		want := uuid.New()
		id, err := ParseProvenanceID(want.String())
		require.NoError(t, err)
		assert.Equal(t, want.String(), id.String())
		assert.False(t, id.IsNil())
	})

	t.Run("round-trips through String", func(t *testing.T) {
		id := NewProvenanceID()
		parsed, err := ParseProvenanceID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})
}

func TestParseIssuerID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseIssuerID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts opaque identifiers", func(t *testing.T) {
		id, err := ParseIssuerID("acme")
		require.NoError(t, err)
		assert.Equal(t, IssuerID("acme"), id)
	})
}

func TestParseSubmissionID(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseSubmissionID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts caller keys", func(t *testing.T) {
		id, err := ParseSubmissionID("sub-42")
		require.NoError(t, err)
		assert.Equal(t, "sub-42", id.String())
	})
}
