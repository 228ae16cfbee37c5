package handler

import (
	"encoding/base64"
	"strings"

	"sigil/internal/envelope"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// VerifyRequest is the HTTP request body for POST /verify. Callers supply
// either an inline envelope or the provenance id of a stored record, plus
// optional document bytes and an optional secret.
type VerifyRequest struct {
	ProvenanceID   string             `json:"provenanceId,omitempty"`
	Envelope       *envelope.Envelope `json:"envelope,omitempty"`
	DocumentBase64 string             `json:"documentBase64,omitempty"`
	Secret         string             `json:"secret,omitempty"`
	SecretBase64   string             `json:"secretBase64,omitempty"`

	// Parsed values (populated by Validate)
	parsedProvenanceID domain.ProvenanceID
	parsedBody         []byte
	parsedSecret       []byte
}

// Validate validates and parses the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *VerifyRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.ProvenanceID = strings.TrimSpace(r.ProvenanceID)
	if (r.ProvenanceID == "") == (r.Envelope == nil) {
		return dErrors.New(dErrors.CodeInvalidInput,
			"exactly one of provenanceId and envelope is required")
	}
	if r.ProvenanceID != "" {
		id, err := domain.ParseProvenanceID(r.ProvenanceID)
		if err != nil {
			return err
		}
		r.parsedProvenanceID = id
	}

	if r.DocumentBase64 != "" {
		body, err := base64.StdEncoding.DecodeString(r.DocumentBase64)
		if err != nil {
			return dErrors.New(dErrors.CodeInvalidInput, "documentBase64 is not valid base64")
		}
		r.parsedBody = body
	}

	secret, err := parseSecret(r.Secret, r.SecretBase64)
	if err != nil {
		return err
	}
	r.parsedSecret = secret
	return nil
}

func parseSecret(plain, encoded string) ([]byte, error) {
	if plain != "" && encoded != "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "secret and secretBase64 are mutually exclusive")
	}
	if plain != "" {
		return []byte(plain), nil
	}
	if encoded != "" {
		b, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "secretBase64 is not valid base64")
		}
		return b, nil
	}
	return nil, nil
}

// ParsedProvenanceID returns the validated provenance id, zero when an
// inline envelope was supplied.
func (r *VerifyRequest) ParsedProvenanceID() domain.ProvenanceID {
	return r.parsedProvenanceID
}

// ParsedBody returns the decoded document bytes, nil for metadata-only
// verification.
func (r *VerifyRequest) ParsedBody() []byte {
	return r.parsedBody
}

// ParsedSecret returns the decoded secret, nil when absent.
func (r *VerifyRequest) ParsedSecret() []byte {
	return r.parsedSecret
}
