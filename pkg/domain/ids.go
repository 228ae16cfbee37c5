// Package domain defines the identifier primitives shared by all engine
// modules. IDs are validated at trust boundaries so downstream code can
// assume they are well formed.
package domain

import (
	"github.com/google/uuid"

	dErrors "sigil/pkg/domain-errors"
)

// ProvenanceID uniquely identifies a persisted provenance record.
type ProvenanceID uuid.UUID

// NewProvenanceID returns a fresh random provenance id.
func NewProvenanceID() ProvenanceID {
	return ProvenanceID(uuid.New())
}

// ParseProvenanceID validates and returns a ProvenanceID.
func ParseProvenanceID(s string) (ProvenanceID, error) {
	if s == "" {
		return ProvenanceID{}, dErrors.New(dErrors.CodeInvalidInput, "provenance id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ProvenanceID{}, dErrors.New(dErrors.CodeInvalidInput, "provenance id is not a valid UUID")
	}
	if u == uuid.Nil {
		return ProvenanceID{}, dErrors.New(dErrors.CodeInvalidInput, "provenance id cannot be the nil UUID")
	}
	return ProvenanceID(u), nil
}

// String returns the canonical UUID string form.
func (id ProvenanceID) String() string { return uuid.UUID(id).String() }

// IsNil reports whether the id is the zero UUID.
func (id ProvenanceID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText implements encoding.TextMarshaler so the id serializes as its
// UUID string in JSON rather than a byte array.
func (id ProvenanceID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ProvenanceID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*id = ProvenanceID(u)
	return nil
}

// IssuerID identifies the party that created an envelope. Issuer ids are
// external identifiers, not UUIDs, so they stay opaque strings.
type IssuerID string

// ParseIssuerID validates and returns an IssuerID.
func ParseIssuerID(s string) (IssuerID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "issuer id cannot be empty")
	}
	return IssuerID(s), nil
}

func (id IssuerID) String() string { return string(id) }

// IsNil reports whether the issuer id is empty.
func (id IssuerID) IsNil() bool { return id == "" }

// SubmissionID is the caller-supplied idempotency key for appends. A retried
// submission with the same id must not create a second chain entry.
type SubmissionID string

// ParseSubmissionID validates and returns a SubmissionID.
func ParseSubmissionID(s string) (SubmissionID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "submission id cannot be empty")
	}
	return SubmissionID(s), nil
}

func (id SubmissionID) String() string { return string(id) }

// IsNil reports whether the submission id is empty.
func (id SubmissionID) IsNil() bool { return id == "" }
