package handler

import (
	"encoding/base64"
	"strings"
	"time"

	"sigil/internal/envelope"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	pstrings "sigil/pkg/platform/strings"
)

// BuildEnvelopeRequest is the HTTP request body for POST /envelope/build.
// The issuer secret travels in the request, never in server configuration.
type BuildEnvelopeRequest struct {
	DocumentID     string             `json:"documentId"`
	VersionID      string             `json:"versionId"`
	ContentType    string             `json:"contentType"`
	DocumentBase64 string             `json:"documentBase64"`
	Governance     GovernanceRequest  `json:"governance"`
	Secret         string             `json:"secret,omitempty"`
	SecretBase64   string             `json:"secretBase64,omitempty"`
	AlgorithmID    string             `json:"algorithmId,omitempty"`

	// Parsed values (populated by Validate)
	parsedBody       []byte
	parsedSecret     []byte
	parsedGovernance envelope.GovernanceMetadata
}

// GovernanceRequest mirrors the governance metadata wire shape with the
// timestamp as a string so parse failures are caller faults, not decode
// faults.
type GovernanceRequest struct {
	IssuerID           string   `json:"issuerId"`
	ResponsibleActorID string   `json:"responsibleActorId"`
	IntentCode         string   `json:"intentCode"`
	PolicyReference    string   `json:"policyReference"`
	Jurisdictions      []string `json:"jurisdictions"`
	TimestampIssued    string   `json:"timestampIssued"`
}

func (g GovernanceRequest) parse() (envelope.GovernanceMetadata, error) {
	issuerID, err := domain.ParseIssuerID(strings.TrimSpace(g.IssuerID))
	if err != nil {
		return envelope.GovernanceMetadata{}, err
	}

	ts, err := time.Parse(time.RFC3339, g.TimestampIssued)
	if err != nil {
		return envelope.GovernanceMetadata{}, dErrors.New(dErrors.CodeInvalidInput,
			"governance.timestampIssued must be RFC 3339")
	}

	meta := envelope.GovernanceMetadata{
		IssuerID:           issuerID,
		ResponsibleActorID: strings.TrimSpace(g.ResponsibleActorID),
		IntentCode:         strings.TrimSpace(g.IntentCode),
		PolicyReference:    strings.TrimSpace(g.PolicyReference),
		Jurisdictions:      pstrings.DedupeAndTrim(g.Jurisdictions),
		TimestampIssued:    ts,
	}
	return meta, meta.Validate()
}

// Validate validates and parses the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *BuildEnvelopeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.DocumentID = strings.TrimSpace(r.DocumentID)
	r.VersionID = strings.TrimSpace(r.VersionID)
	if r.DocumentID == "" || r.VersionID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "documentId and versionId are required")
	}
	if r.DocumentBase64 == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "documentBase64 is required")
	}

	body, err := base64.StdEncoding.DecodeString(r.DocumentBase64)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "documentBase64 is not valid base64")
	}
	r.parsedBody = body

	secret, err := parseSecret(r.Secret, r.SecretBase64)
	if err != nil {
		return err
	}
	r.parsedSecret = secret

	meta, err := r.Governance.parse()
	if err != nil {
		return err
	}
	r.parsedGovernance = meta
	return nil
}

// parseSecret resolves the two secret encodings. At most one may be set;
// base64 exists for binary key material such as ed25519 seeds.
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

// ParsedBody returns the decoded document bytes.
func (r *BuildEnvelopeRequest) ParsedBody() []byte {
	return r.parsedBody
}

// ParsedSecret returns the decoded secret, nil when absent.
func (r *BuildEnvelopeRequest) ParsedSecret() []byte {
	return r.parsedSecret
}

// ParsedGovernance returns the validated governance metadata.
func (r *BuildEnvelopeRequest) ParsedGovernance() envelope.GovernanceMetadata {
	return r.parsedGovernance
}
