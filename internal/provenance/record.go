// Package provenance owns the append-only record store and the forensic
// audit chain built over it. Records are the persisted, chain-linked form of
// envelopes: once written no field may change, and deletion is not a
// supported operation - history only grows.
package provenance

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"sigil/internal/canonical"
	"sigil/internal/envelope"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// GenesisHash is the previousRecordHash of the first record in an issuer's
// chain: 64 hex zeros.
var GenesisHash = strings.Repeat("0", 64)

// Record is the persisted form of an envelope plus its chain linkage. The
// embedded envelope fields and the four record fields together form the
// normative JSON shape.
type Record struct {
	envelope.Envelope

	ProvenanceID       domain.ProvenanceID `json:"provenanceId"`
	SubmissionID       domain.SubmissionID `json:"submissionId"`
	PreviousRecordHash string              `json:"previousRecordHash"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// Validate checks a record is structurally complete.
func (r Record) Validate() error {
	if r.ProvenanceID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record missing provenanceId")
	}
	if r.SubmissionID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "record missing submissionId")
	}
	if r.PreviousRecordHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "record missing previousRecordHash")
	}
	if r.CreatedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "record missing createdAt")
	}
	return r.Envelope.Validate()
}

// CanonicalHash computes the SHA-256 of the record's canonical form. This is
// the single linkage rule for the audit chain: the next record's
// previousRecordHash must equal this value. The chain hash is always SHA-256
// regardless of the envelope's own algorithm so one walk procedure covers
// mixed-algorithm chains.
func (r Record) CanonicalHash() (string, error) {
	tree := map[string]any{
		"schemaVersion": r.SchemaVersion,
		"document": map[string]any{
			"documentId":  r.Document.DocumentID,
			"versionId":   r.Document.VersionID,
			"contentType": r.Document.ContentType,
			"bodySha256":  r.Document.BodySHA256,
		},
		"governance": r.Governance.CanonicalMap(),
		"integrity": map[string]any{
			"governanceDigest":    r.Integrity.GovernanceDigest,
			"documentHash":        r.Integrity.DocumentHash,
			"structuralSignature": r.Integrity.StructuralSignature,
			"algorithmId":         r.Integrity.AlgorithmID,
		},
		"trustLevel":         string(r.TrustLevel),
		"provenanceId":       r.ProvenanceID.String(),
		"submissionId":       r.SubmissionID.String(),
		"previousRecordHash": r.PreviousRecordHash,
		"createdAt":          r.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	canon, err := canonical.Marshal(tree)
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeInternal, "canonicalize record", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}
