package hashchain

import (
	"context"
	"encoding/hex"
	"io"

	"sigil/internal/canonical"
	"sigil/internal/envelope"
	dErrors "sigil/pkg/domain-errors"
)

// BuildRequest carries the inputs for envelope creation. Body is streamed,
// never buffered, so arbitrarily large documents hash in constant memory.
// Secret is injected per call; there is no ambient issuer secret.
type BuildRequest struct {
	DocumentID  string
	VersionID   string
	ContentType string
	Body        io.Reader
	Governance  envelope.GovernanceMetadata

	// Secret enables the structural signature stage. When nil the stage is
	// skipped and the envelope is marked unsigned - never defaulted to an
	// empty or all-zero signature.
	Secret []byte

	// AlgorithmID selects the hash/MAC combination; empty selects the
	// default sha256+hmac-sha256.
	AlgorithmID string
}

// Builder computes envelopes. It is stateless and safe for concurrent use.
type Builder struct{}

// NewBuilder returns a Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build computes the four-stage hash chain and assembles the envelope.
//
// Stages, in order:
//
//	bodyHash           = Digest(document bytes)
//	governanceDigest   = Digest(canonical(governance metadata))
//	documentHash       = Digest(governanceDigest_bytes ++ bodyHash_bytes)
//	structuralSignature = Sign(secret, documentHash)   (signed envelopes only)
//
// No partial envelope is ever returned: any stage failure aborts the build.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (envelope.Envelope, error) {
	if req.DocumentID == "" || req.VersionID == "" {
		return envelope.Envelope{}, dErrors.New(dErrors.CodeInvalidInput, "document id and version id are required")
	}
	if err := req.Governance.Validate(); err != nil {
		return envelope.Envelope{}, err
	}

	algID := req.AlgorithmID
	if algID == "" {
		algID = AlgSHA256HMAC
	}
	alg, err := Lookup(algID)
	if err != nil {
		return envelope.Envelope{}, dErrors.Wrap(dErrors.CodeInvalidInput, "unknown algorithm id", err)
	}

	bodyHash, n, err := StreamDigest(ctx, alg, req.Body)
	if err != nil {
		return envelope.Envelope{}, err
	}
	if n == 0 {
		return envelope.Envelope{}, dErrors.New(dErrors.CodeInvalidInput, "document is empty")
	}

	govDigest, err := GovernanceDigest(alg, req.Governance)
	if err != nil {
		return envelope.Envelope{}, err
	}

	docHash := DocumentHash(alg, govDigest, bodyHash)

	env := envelope.Envelope{
		SchemaVersion: envelope.SchemaVersion,
		Document: envelope.DocumentReference{
			DocumentID:  req.DocumentID,
			VersionID:   req.VersionID,
			ContentType: req.ContentType,
			BodySHA256:  hex.EncodeToString(bodyHash),
		},
		Governance: req.Governance,
		Integrity: envelope.IntegrityProof{
			GovernanceDigest: hex.EncodeToString(govDigest),
			DocumentHash:     hex.EncodeToString(docHash),
			AlgorithmID:      alg.ID,
		},
		TrustLevel: envelope.TrustUnsigned,
	}

	if req.Secret != nil {
		sig, err := alg.Signer.Sign(req.Secret, docHash)
		if err != nil {
			return envelope.Envelope{}, dErrors.Wrap(dErrors.CodeInternal, "structural signature failed", err)
		}
		env.Integrity.StructuralSignature = hex.EncodeToString(sig)
		env.TrustLevel = envelope.TrustSigned
	}

	return env, nil
}

// StreamDigest hashes a body reader in 32 KiB chunks, checking for
// cancellation between chunks so oversized uploads can be abandoned. The
// verify path uses it to recompute body hashes with the same memory bounds
// as envelope creation.
func StreamDigest(ctx context.Context, alg Algorithm, body io.Reader) ([]byte, int64, error) {
	if body == nil {
		return nil, 0, dErrors.New(dErrors.CodeInvalidInput, "document body is required")
	}
	h := alg.NewDigest()
	buf := make([]byte, 32*1024)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, total, dErrors.Wrap(dErrors.CodeUnavailable, "hashing cancelled", err)
		}
		n, err := body.Read(buf)
		if n > 0 {
			total += int64(n)
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, total, dErrors.Wrap(dErrors.CodeInternal, "reading document body", err)
		}
	}
	return h.Sum(nil), total, nil
}

// GovernanceDigest computes Digest(canonical(metadata)).
func GovernanceDigest(alg Algorithm, meta envelope.GovernanceMetadata) ([]byte, error) {
	canon, err := canonical.Marshal(meta.CanonicalMap())
	if err != nil {
		// Unreachable for validated metadata by construction.
		return nil, dErrors.Wrap(dErrors.CodeInternal, "canonicalize governance metadata", err)
	}
	h := alg.NewDigest()
	h.Write(canon)
	return h.Sum(nil), nil
}

// DocumentHash computes Digest(governanceDigest ++ bodyHash). The
// concatenation order is fixed per algorithm id; changing it requires a new
// identifier.
func DocumentHash(alg Algorithm, governanceDigest, bodyHash []byte) []byte {
	h := alg.NewDigest()
	h.Write(governanceDigest)
	h.Write(bodyHash)
	return h.Sum(nil)
}

// DigestBytes hashes a byte slice with the algorithm's digest. Used by the
// verify path to recompute a body hash from supplied bytes.
func DigestBytes(alg Algorithm, b []byte) []byte {
	h := alg.NewDigest()
	h.Write(b)
	return h.Sum(nil)
}

// DecodeHex decodes a hex-encoded digest field, mapping malformed input to a
// caller-fault error.
func DecodeHex(field, value string) ([]byte, error) {
	b, err := hex.DecodeString(value)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not valid hex", field)
	}
	return b, nil
}
