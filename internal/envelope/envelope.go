// Package envelope defines the value objects bound together by the hash
// chain: governance metadata, the document reference, and the integrity
// proof. JSON field names are normative for interop and must not change
// without a schema version bump.
package envelope

import (
	"time"

	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// SchemaVersion is the current persisted envelope schema.
const SchemaVersion = "0.1"

// TrustLevel records whether the envelope carries a structural signature.
type TrustLevel string

const (
	// TrustSigned means a keyed structural signature is present.
	TrustSigned TrustLevel = "signed"

	// TrustUnsigned means no issuer secret was supplied at build time. The
	// envelope is internally consistent but proves nothing about authorship.
	TrustUnsigned TrustLevel = "unsigned"
)

// GovernanceMetadata is the immutable governance context bound to a document.
// All fields are required before hashing; a missing field is a creation-time
// failure, never a runtime one.
type GovernanceMetadata struct {
	IssuerID           domain.IssuerID `json:"issuerId"`
	ResponsibleActorID string          `json:"responsibleActorId"`
	IntentCode         string          `json:"intentCode"`
	PolicyReference    string          `json:"policyReference"`
	Jurisdictions      []string        `json:"jurisdictions"`
	TimestampIssued    time.Time       `json:"timestampIssued"`
}

// Validate enforces the presence invariant.
func (m GovernanceMetadata) Validate() error {
	switch {
	case m.IssuerID.IsNil():
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing issuerId")
	case m.ResponsibleActorID == "":
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing responsibleActorId")
	case m.IntentCode == "":
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing intentCode")
	case m.PolicyReference == "":
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing policyReference")
	case len(m.Jurisdictions) == 0:
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing jurisdictions")
	case m.TimestampIssued.IsZero():
		return dErrors.New(dErrors.CodeInvalidInput, "governance metadata missing timestampIssued")
	}
	for _, j := range m.Jurisdictions {
		if j == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "governance metadata contains empty jurisdiction")
		}
	}
	return nil
}

// CanonicalMap converts the metadata to the tree form consumed by the
// canonicalizer. Timestamps serialize as RFC 3339 UTC so two in-memory
// representations of the same instant digest identically.
func (m GovernanceMetadata) CanonicalMap() map[string]any {
	jurisdictions := make([]any, len(m.Jurisdictions))
	for i, j := range m.Jurisdictions {
		jurisdictions[i] = j
	}
	return map[string]any{
		"issuerId":           m.IssuerID.String(),
		"responsibleActorId": m.ResponsibleActorID,
		"intentCode":         m.IntentCode,
		"policyReference":    m.PolicyReference,
		"jurisdictions":      jurisdictions,
		"timestampIssued":    m.TimestampIssued.UTC().Format(time.RFC3339Nano),
	}
}

// DocumentReference identifies one immutable version of a document.
// BodySHA256 is the hex digest of the raw document bytes.
type DocumentReference struct {
	DocumentID  string `json:"documentId"`
	VersionID   string `json:"versionId"`
	ContentType string `json:"contentType"`
	BodySHA256  string `json:"bodySha256"`
}

// IntegrityProof is the derived hash chain output. AlgorithmID explicitly
// names the digest and MAC combination; it is never implicit.
type IntegrityProof struct {
	GovernanceDigest    string `json:"governanceDigest"`
	DocumentHash        string `json:"documentHash"`
	StructuralSignature string `json:"structuralSignature,omitempty"`
	AlgorithmID         string `json:"algorithmId"`
}

// Envelope binds a document reference, governance metadata, and integrity
// proof. Created once, read many times, never mutated: any change requires
// a new version id and a new envelope.
type Envelope struct {
	SchemaVersion string             `json:"schemaVersion"`
	Document      DocumentReference  `json:"document"`
	Governance    GovernanceMetadata `json:"governance"`
	Integrity     IntegrityProof     `json:"integrity"`
	TrustLevel    TrustLevel         `json:"trustLevel"`
}

// Validate checks structural completeness of a claimed envelope before any
// verification work happens.
func (e Envelope) Validate() error {
	if e.SchemaVersion == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope missing schemaVersion")
	}
	if e.Document.DocumentID == "" || e.Document.VersionID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope missing document identity")
	}
	if e.Document.BodySHA256 == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope missing bodySha256")
	}
	if err := e.Governance.Validate(); err != nil {
		return err
	}
	if e.Integrity.GovernanceDigest == "" || e.Integrity.DocumentHash == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope missing integrity digests")
	}
	if e.Integrity.AlgorithmID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "envelope missing algorithmId")
	}
	if e.TrustLevel == TrustSigned && e.Integrity.StructuralSignature == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "signed envelope missing structuralSignature")
	}
	return nil
}
