// Package verify implements the three-state verification engine. Every
// request terminates in exactly one of VALID, UNKNOWN, or TAMPERED; tamper
// findings are verdicts, never errors. Errors are reserved for malformed
// input and infrastructure failure.
package verify

import (
	"context"
	"crypto/hmac"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"sigil/internal/envelope"
	"sigil/internal/hashchain"
	"sigil/internal/notify"
	"sigil/internal/verify/metrics"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

// Status is a terminal verification state. No other states are observable.
type Status string

const (
	StatusValid    Status = "VALID"
	StatusUnknown  Status = "UNKNOWN"
	StatusTampered Status = "TAMPERED"
)

// Reasons attached to non-VALID verdicts. The four mismatch reasons identify
// the first failing chain stage; the remaining reasons explain UNKNOWN.
const (
	ReasonBodyHashMismatch         = "BodyHashMismatch"
	ReasonGovernanceDigestMismatch = "GovernanceDigestMismatch"
	ReasonDocumentHashMismatch     = "DocumentHashMismatch"
	ReasonSignatureMismatch        = "SignatureMismatch"

	// ReasonVerificationTimeout marks a deadline hit during recomputation.
	// Timeout is an availability failure, not evidence of tampering.
	ReasonVerificationTimeout = "VerificationTimeout"

	// ReasonMissingSecret marks secret-less verification: internal
	// consistency holds but authorship cannot be confirmed.
	ReasonMissingSecret = "MissingSecret"

	// ReasonUnsignedEnvelope marks verification of an envelope that carries
	// no structural signature at all.
	ReasonUnsignedEnvelope = "UnsignedEnvelope"
)

// CheckResult is the outcome of a single chain stage.
type CheckResult string

const (
	CheckPass    CheckResult = "pass"
	CheckFail    CheckResult = "fail"
	CheckSkipped CheckResult = "skipped"
)

// Checks reports each stage in evaluation order. A failing stage
// short-circuits; later stages stay "skipped".
type Checks struct {
	BodyHash         CheckResult `json:"bodyHash"`
	GovernanceDigest CheckResult `json:"governanceDigest"`
	DocumentHash     CheckResult `json:"documentHash"`
	Signature        CheckResult `json:"signature"`
}

// Verdict is the structured result of a verification request.
type Verdict struct {
	Status Status `json:"status"`
	Reason string `json:"reason,omitempty"`
	Checks Checks `json:"checks"`
}

// Request carries a verification's inputs.
type Request struct {
	// Body is the document bytes to check, streamed. Nil means a
	// metadata-only verification: the body hash stage is skipped and the
	// stored body hash is trusted as chain input.
	Body io.Reader

	// Envelope is the claimed integrity envelope (or the envelope embedded
	// in a provenance record).
	Envelope envelope.Envelope

	// Secret enables the signature stage. Without it the best reachable
	// verdict is UNKNOWN.
	Secret []byte
}

// Notifier is the best-effort side channel fed after a verdict is reached.
type Notifier interface {
	Emit(ctx context.Context, event notify.Event)
}

// Engine recomputes the hash chain and classifies the result. It is
// stateless and safe for concurrent use.
type Engine struct {
	notifier Notifier
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// NewEngine constructs the engine. notifier and m may be nil.
func NewEngine(notifier Notifier, m *metrics.Metrics) *Engine {
	return &Engine{
		notifier: notifier,
		metrics:  m,
		tracer:   otel.Tracer("sigil/verify"),
	}
}

// Verify runs the staged state machine:
//
//  1. recompute bodyHash from supplied bytes (skipped when metadata-only)
//  2. recompute governanceDigest from the stored metadata
//  3. recompute documentHash from the two digests
//  4. check the structural signature when a secret is supplied
//
// The first mismatch yields TAMPERED with that stage's reason. Passing all
// applicable stages yields VALID with a secret, UNKNOWN without one. A
// deadline hit during recomputation yields UNKNOWN with
// VerificationTimeout.
func (e *Engine) Verify(ctx context.Context, req Request) (Verdict, error) {
	ctx, span := e.tracer.Start(ctx, "verify.Verify",
		trace.WithAttributes(
			attribute.String("document_id", req.Envelope.Document.DocumentID),
			attribute.String("algorithm_id", req.Envelope.Integrity.AlgorithmID),
		))
	defer span.End()
	start := time.Now()

	env := req.Envelope
	if err := env.Validate(); err != nil {
		e.metrics.IncError()
		return Verdict{}, err
	}
	alg, err := hashchain.Lookup(env.Integrity.AlgorithmID)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, dErrors.Wrap(dErrors.CodeInvalidInput, "unknown algorithm id", err)
	}

	storedBodyHash, err := hashchain.DecodeHex("bodySha256", env.Document.BodySHA256)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, err
	}
	storedGovDigest, err := hashchain.DecodeHex("governanceDigest", env.Integrity.GovernanceDigest)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, err
	}
	storedDocHash, err := hashchain.DecodeHex("documentHash", env.Integrity.DocumentHash)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, err
	}

	// Body rehash and governance recanonicalization are independent; run
	// them concurrently.
	var freshBodyHash, freshGovDigest []byte
	g, gctx := errgroup.WithContext(ctx)
	if req.Body != nil {
		g.Go(func() error {
			h, _, err := hashchain.StreamDigest(gctx, alg, req.Body)
			if err != nil {
				return err
			}
			freshBodyHash = h
			return nil
		})
	}
	g.Go(func() error {
		d, err := hashchain.GovernanceDigest(alg, env.Governance)
		if err != nil {
			return err
		}
		freshGovDigest = d
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil || dErrors.HasCode(err, dErrors.CodeUnavailable) {
			return e.finish(ctx, env, Verdict{
				Status: StatusUnknown,
				Reason: ReasonVerificationTimeout,
				Checks: Checks{
					BodyHash:         CheckSkipped,
					GovernanceDigest: CheckSkipped,
					DocumentHash:     CheckSkipped,
					Signature:        CheckSkipped,
				},
			}, start), nil
		}
		e.metrics.IncError()
		return Verdict{}, err
	}

	checks := Checks{
		BodyHash:         CheckSkipped,
		GovernanceDigest: CheckSkipped,
		DocumentHash:     CheckSkipped,
		Signature:        CheckSkipped,
	}

	chainBodyHash := storedBodyHash
	if freshBodyHash != nil {
		if !hmac.Equal(freshBodyHash, storedBodyHash) {
			checks.BodyHash = CheckFail
			return e.finish(ctx, env, Verdict{Status: StatusTampered, Reason: ReasonBodyHashMismatch, Checks: checks}, start), nil
		}
		checks.BodyHash = CheckPass
		chainBodyHash = freshBodyHash
	}

	if !hmac.Equal(freshGovDigest, storedGovDigest) {
		checks.GovernanceDigest = CheckFail
		return e.finish(ctx, env, Verdict{Status: StatusTampered, Reason: ReasonGovernanceDigestMismatch, Checks: checks}, start), nil
	}
	checks.GovernanceDigest = CheckPass

	freshDocHash := hashchain.DocumentHash(alg, freshGovDigest, chainBodyHash)
	if !hmac.Equal(freshDocHash, storedDocHash) {
		checks.DocumentHash = CheckFail
		return e.finish(ctx, env, Verdict{Status: StatusTampered, Reason: ReasonDocumentHashMismatch, Checks: checks}, start), nil
	}
	checks.DocumentHash = CheckPass

	if req.Secret == nil {
		return e.finish(ctx, env, Verdict{Status: StatusUnknown, Reason: ReasonMissingSecret, Checks: checks}, start), nil
	}
	if env.Integrity.StructuralSignature == "" {
		return e.finish(ctx, env, Verdict{Status: StatusUnknown, Reason: ReasonUnsignedEnvelope, Checks: checks}, start), nil
	}

	sig, err := hashchain.DecodeHex("structuralSignature", env.Integrity.StructuralSignature)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, err
	}
	ok, err := alg.Verifier.VerifySignature(req.Secret, freshDocHash, sig)
	if err != nil {
		e.metrics.IncError()
		return Verdict{}, dErrors.Wrap(dErrors.CodeInvalidInput, "signature verification failed", err)
	}
	if !ok {
		checks.Signature = CheckFail
		return e.finish(ctx, env, Verdict{Status: StatusTampered, Reason: ReasonSignatureMismatch, Checks: checks}, start), nil
	}
	checks.Signature = CheckPass

	return e.finish(ctx, env, Verdict{Status: StatusValid, Checks: checks}, start), nil
}

func (e *Engine) finish(ctx context.Context, env envelope.Envelope, v Verdict, start time.Time) Verdict {
	e.metrics.IncVerdict(string(v.Status), v.Reason)
	e.metrics.ObserveLatency(time.Since(start))

	if e.notifier != nil {
		e.notifier.Emit(ctx, notify.Event{
			Type:       notify.EventVerificationPerformed,
			IssuerID:   env.Governance.IssuerID.String(),
			DocumentID: env.Document.DocumentID,
			VersionID:  env.Document.VersionID,
			Outcome:    string(v.Status),
			RequestID:  requestcontext.RequestID(ctx),
		})
	}
	return v
}
