package hashchain

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigil/internal/envelope"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

func validMetadata() envelope.GovernanceMetadata {
	return envelope.GovernanceMetadata{
		IssuerID:           domain.IssuerID("acme"),
		ResponsibleActorID: "u1",
		IntentCode:         "export.pdf",
		PolicyReference:    "p1",
		Jurisdictions:      []string{"DE"},
		TimestampIssued:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func buildReq(body string, secret []byte) BuildRequest {
	return BuildRequest{
		DocumentID:  "doc-1",
		VersionID:   "v1",
		ContentType: "application/pdf",
		Body:        strings.NewReader(body),
		Governance:  validMetadata(),
		Secret:      secret,
	}
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	builder := NewBuilder()

	t.Run("signed envelope carries all four stages", func(t *testing.T) {
		env, err := builder.Build(ctx, buildReq("INVOICE-001", []byte("s3cr3t")))
		require.NoError(t, err)

		assert.Equal(t, envelope.SchemaVersion, env.SchemaVersion)
		assert.Equal(t, AlgSHA256HMAC, env.Integrity.AlgorithmID)
		assert.Equal(t, envelope.TrustSigned, env.TrustLevel)
		assert.Len(t, env.Document.BodySHA256, 64)
		assert.Len(t, env.Integrity.GovernanceDigest, 64)
		assert.Len(t, env.Integrity.DocumentHash, 64)
		assert.NotEmpty(t, env.Integrity.StructuralSignature)
		require.NoError(t, env.Validate())
	})

	t.Run("no secret yields unsigned trust level and no signature", func(t *testing.T) {
		env, err := builder.Build(ctx, buildReq("INVOICE-001", nil))
		require.NoError(t, err)

		assert.Equal(t, envelope.TrustUnsigned, env.TrustLevel)
		assert.Empty(t, env.Integrity.StructuralSignature)
	})

	t.Run("empty document is rejected", func(t *testing.T) {
		_, err := builder.Build(ctx, buildReq("", []byte("s3cr3t")))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("missing governance field is rejected before hashing", func(t *testing.T) {
		req := buildReq("INVOICE-001", nil)
		req.Governance.PolicyReference = ""
		_, err := builder.Build(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		assert.Contains(t, err.Error(), "policyReference")
	})

	t.Run("unknown algorithm id is rejected", func(t *testing.T) {
		req := buildReq("INVOICE-001", nil)
		req.AlgorithmID = "md5+none"
		_, err := builder.Build(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("cancelled context aborts hashing", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := builder.Build(cancelled, buildReq("INVOICE-001", nil))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func TestBuild_Determinism(t *testing.T) {
	ctx := context.Background()
	builder := NewBuilder()

	a, err := builder.Build(ctx, buildReq("INVOICE-001", []byte("s3cr3t")))
	require.NoError(t, err)
	b, err := builder.Build(ctx, buildReq("INVOICE-001", []byte("s3cr3t")))
	require.NoError(t, err)

	assert.Equal(t, a.Integrity, b.Integrity)
	assert.Equal(t, a.Document.BodySHA256, b.Document.BodySHA256)
}

func TestBuild_Sensitivity(t *testing.T) {
	ctx := context.Background()
	builder := NewBuilder()

	base, err := builder.Build(ctx, buildReq("INVOICE-001", []byte("s3cr3t")))
	require.NoError(t, err)

	t.Run("single bit flip in body changes whole chain", func(t *testing.T) {
		body := []byte("INVOICE-001")
		body[0] ^= 0x01
		req := buildReq("", []byte("s3cr3t"))
		req.Body = bytes.NewReader(body)

		flipped, err := builder.Build(ctx, req)
		require.NoError(t, err)
		assert.NotEqual(t, base.Document.BodySHA256, flipped.Document.BodySHA256)
		assert.NotEqual(t, base.Integrity.DocumentHash, flipped.Integrity.DocumentHash)
		assert.NotEqual(t, base.Integrity.StructuralSignature, flipped.Integrity.StructuralSignature)
		// Governance untouched, so its digest is stable.
		assert.Equal(t, base.Integrity.GovernanceDigest, flipped.Integrity.GovernanceDigest)
	})

	t.Run("metadata change shifts governance digest and document hash", func(t *testing.T) {
		req := buildReq("INVOICE-001", []byte("s3cr3t"))
		req.Governance.IntentCode = "export.docx"
		changed, err := builder.Build(ctx, req)
		require.NoError(t, err)
		assert.NotEqual(t, base.Integrity.GovernanceDigest, changed.Integrity.GovernanceDigest)
		assert.NotEqual(t, base.Integrity.DocumentHash, changed.Integrity.DocumentHash)
		assert.Equal(t, base.Document.BodySHA256, changed.Document.BodySHA256)
	})

	t.Run("different secret changes only the signature", func(t *testing.T) {
		req := buildReq("INVOICE-001", []byte("other"))
		other, err := builder.Build(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, base.Integrity.DocumentHash, other.Integrity.DocumentHash)
		assert.NotEqual(t, base.Integrity.StructuralSignature, other.Integrity.StructuralSignature)
	})
}

func TestAlgorithms(t *testing.T) {
	ctx := context.Background()
	builder := NewBuilder()

	t.Run("blake2b keyed mode round-trips", func(t *testing.T) {
		req := buildReq("INVOICE-001", []byte("s3cr3t"))
		req.AlgorithmID = AlgBlake2bHMAC
		env, err := builder.Build(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, AlgBlake2bHMAC, env.Integrity.AlgorithmID)

		alg, err := Lookup(AlgBlake2bHMAC)
		require.NoError(t, err)
		docHash, err := DecodeHex("documentHash", env.Integrity.DocumentHash)
		require.NoError(t, err)
		sig, err := DecodeHex("structuralSignature", env.Integrity.StructuralSignature)
		require.NoError(t, err)
		ok, err := alg.Verifier.VerifySignature([]byte("s3cr3t"), docHash, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ed25519 signature verifies and rejects wrong seed", func(t *testing.T) {
		seed := bytes.Repeat([]byte{0x42}, 32)
		req := buildReq("INVOICE-001", seed)
		req.AlgorithmID = AlgSHA256Ed25519
		env, err := builder.Build(ctx, req)
		require.NoError(t, err)

		alg, err := Lookup(AlgSHA256Ed25519)
		require.NoError(t, err)
		docHash, err := DecodeHex("documentHash", env.Integrity.DocumentHash)
		require.NoError(t, err)
		sig, err := DecodeHex("structuralSignature", env.Integrity.StructuralSignature)
		require.NoError(t, err)

		ok, err := alg.Verifier.VerifySignature(seed, docHash, sig)
		require.NoError(t, err)
		assert.True(t, ok)

		wrong := bytes.Repeat([]byte{0x43}, 32)
		ok, err = alg.Verifier.VerifySignature(wrong, docHash, sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ed25519 rejects short seed", func(t *testing.T) {
		req := buildReq("INVOICE-001", []byte("short"))
		req.AlgorithmID = AlgSHA256Ed25519
		_, err := builder.Build(ctx, req)
		require.Error(t, err)
	})
}

func BenchmarkBuild(b *testing.B) {
	ctx := context.Background()
	builder := NewBuilder()
	body := bytes.Repeat([]byte("x"), 1<<20)
	b.SetBytes(int64(len(body)))
	b.ReportAllocs()
	for b.Loop() {
		req := buildReq("", []byte("s3cr3t"))
		req.Body = bytes.NewReader(body)
		if _, err := builder.Build(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
