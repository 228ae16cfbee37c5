package handler

import (
	"strings"

	"sigil/internal/envelope"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// AppendRecordRequest is the HTTP request body for POST /provenance/records.
// The envelope arrives exactly as the build endpoint returned it.
type AppendRecordRequest struct {
	SubmissionID string            `json:"submissionId"`
	Envelope     envelope.Envelope `json:"envelope"`

	// Parsed values (populated by Validate)
	parsedSubmissionID domain.SubmissionID
}

// Validate validates and parses the request.
// Implements the Validator interface for httputil.DecodeAndPrepare.
func (r *AppendRecordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	submissionID, err := domain.ParseSubmissionID(strings.TrimSpace(r.SubmissionID))
	if err != nil {
		return err
	}
	r.parsedSubmissionID = submissionID

	return r.Envelope.Validate()
}

// ParsedSubmissionID returns the validated submission id.
func (r *AppendRecordRequest) ParsedSubmissionID() domain.SubmissionID {
	return r.parsedSubmissionID
}
