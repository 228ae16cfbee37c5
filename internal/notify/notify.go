// Package notify dispatches best-effort ledger notifications after
// authoritative operations complete. The engine's append and verify
// contracts never depend on this side channel succeeding: emission is
// non-blocking, failures are logged and counted, and a full buffer drops
// the event rather than backpressuring the caller.
package notify

import (
	"time"
)

// EventType classifies ledger notifications.
type EventType string

const (
	// EventRecordAppended fires after a provenance record is durably stored.
	EventRecordAppended EventType = "record_appended"

	// EventVerificationPerformed fires after a verification completes with
	// any verdict.
	EventVerificationPerformed EventType = "verification_performed"

	// EventChainVerified fires after a forensic chain walk.
	EventChainVerified EventType = "chain_verified"
)

// Event is the transport-agnostic notification shape. Keep it flat so sinks
// can serialize it without knowing domain types.
type Event struct {
	Type         EventType `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	IssuerID     string    `json:"issuerId,omitempty"`
	ProvenanceID string    `json:"provenanceId,omitempty"`
	SubmissionID string    `json:"submissionId,omitempty"`
	DocumentID   string    `json:"documentId,omitempty"`
	VersionID    string    `json:"versionId,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
}
