package provenance_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sigil/internal/envelope"
	"sigil/internal/hashchain"
	"sigil/internal/notify"
	"sigil/internal/provenance"
	"sigil/internal/provenance/store/memory"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/requestcontext"
)

type ProvenanceServiceSuite struct {
	suite.Suite
	store    *memory.InMemoryStore
	notifier *recordingNotifier
	service  *provenance.Service
	builder  *hashchain.Builder
}

func TestProvenanceServiceSuite(t *testing.T) {
	suite.Run(t, new(ProvenanceServiceSuite))
}

func (s *ProvenanceServiceSuite) SetupTest() {
	s.store = memory.NewInMemoryStore()
	s.notifier = &recordingNotifier{}
	s.builder = hashchain.NewBuilder()

	var err error
	s.service, err = provenance.NewService(s.store, s.notifier, nil)
	s.Require().NoError(err)
}

// recordingNotifier captures side-channel events synchronously for
// assertions.
type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Emit(_ context.Context, event notify.Event) {
	n.events = append(n.events, event)
}

func (s *ProvenanceServiceSuite) buildEnvelope(issuer, docID, versionID, body string) envelope.Envelope {
	env, err := s.builder.Build(context.Background(), hashchain.BuildRequest{
		DocumentID:  docID,
		VersionID:   versionID,
		ContentType: "application/pdf",
		Body:        strings.NewReader(body),
		Governance: envelope.GovernanceMetadata{
			IssuerID:           domain.IssuerID(issuer),
			ResponsibleActorID: "u1",
			IntentCode:         "export.pdf",
			PolicyReference:    "p1",
			Jurisdictions:      []string{"DE"},
			TimestampIssued:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Secret: []byte("s3cr3t"),
	})
	s.Require().NoError(err)
	return env
}

func (s *ProvenanceServiceSuite) TestAppend() {
	ctx := context.Background()

	s.Run("first record links to genesis", func() {
		env := s.buildEnvelope("acme", "doc-1", "v1", "INVOICE-001")
		rec, err := s.service.Append(ctx, env, "sub-1")
		s.Require().NoError(err)

		s.Equal(provenance.GenesisHash, rec.PreviousRecordHash)
		s.False(rec.ProvenanceID.IsNil())
		s.False(rec.CreatedAt.IsZero())
		s.Require().NoError(rec.Validate())
	})

	s.Run("second record links to the first", func() {
		first, err := s.service.Append(ctx, s.buildEnvelope("beta", "doc-1", "v1", "A"), "sub-1")
		s.Require().NoError(err)
		second, err := s.service.Append(ctx, s.buildEnvelope("beta", "doc-2", "v1", "B"), "sub-2")
		s.Require().NoError(err)

		wantPrev, err := first.CanonicalHash()
		s.Require().NoError(err)
		s.Equal(wantPrev, second.PreviousRecordHash)
	})

	s.Run("duplicate submission id is rejected and chain does not grow", func() {
		_, err := s.service.Append(ctx, s.buildEnvelope("gamma", "doc-1", "v1", "A"), "sub-1")
		s.Require().NoError(err)

		_, err = s.service.Append(ctx, s.buildEnvelope("gamma", "doc-2", "v1", "B"), "sub-1")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		records, err := s.store.ListByIssuer(ctx, "gamma")
		s.Require().NoError(err)
		s.Len(records, 1)
	})

	s.Run("same submission id is independent across issuers", func() {
		_, err := s.service.Append(ctx, s.buildEnvelope("left", "doc-l", "v1", "A"), "shared-sub")
		s.Require().NoError(err)
		_, err = s.service.Append(ctx, s.buildEnvelope("right", "doc-r", "v1", "B"), "shared-sub")
		s.NoError(err)
	})

	s.Run("duplicate document version is rejected", func() {
		_, err := s.service.Append(ctx, s.buildEnvelope("delta", "doc-1", "v1", "A"), "sub-1")
		s.Require().NoError(err)
		_, err = s.service.Append(ctx, s.buildEnvelope("delta", "doc-1", "v1", "A"), "sub-2")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("invalid envelope is rejected before persistence", func() {
		env := s.buildEnvelope("acme", "doc-x", "v1", "X")
		env.Integrity.AlgorithmID = ""
		_, err := s.service.Append(ctx, env, "sub-x")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("missing submission id is rejected", func() {
		_, err := s.service.Append(ctx, s.buildEnvelope("acme", "doc-y", "v1", "Y"), "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("append uses request-scoped time", func() {
		fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		tctx := requestcontext.WithTime(ctx, fixed)
		rec, err := s.service.Append(tctx, s.buildEnvelope("epsilon", "doc-1", "v1", "A"), "sub-1")
		s.Require().NoError(err)
		s.Equal(fixed, rec.CreatedAt)
	})

	s.Run("append emits a notification after success", func() {
		before := len(s.notifier.events)
		rec, err := s.service.Append(ctx, s.buildEnvelope("zeta", "doc-1", "v1", "A"), "sub-1")
		s.Require().NoError(err)

		s.Require().Len(s.notifier.events, before+1)
		event := s.notifier.events[len(s.notifier.events)-1]
		s.Equal(notify.EventRecordAppended, event.Type)
		s.Equal(rec.ProvenanceID.String(), event.ProvenanceID)
	})
}

func (s *ProvenanceServiceSuite) TestLookups() {
	ctx := context.Background()
	rec, err := s.service.Append(ctx, s.buildEnvelope("acme", "doc-1", "v1", "INVOICE-001"), "sub-1")
	s.Require().NoError(err)

	s.Run("get returns the persisted record", func() {
		got, err := s.service.Get(ctx, rec.ProvenanceID)
		s.Require().NoError(err)
		s.Equal(rec, got)
	})

	s.Run("get unknown id returns not found", func() {
		_, err := s.service.Get(ctx, domain.NewProvenanceID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("find by document returns the record", func() {
		got, err := s.service.FindByDocument(ctx, "doc-1", "v1")
		s.Require().NoError(err)
		s.Equal(rec.ProvenanceID, got.ProvenanceID)
	})

	s.Run("find by unknown version returns not found", func() {
		_, err := s.service.FindByDocument(ctx, "doc-1", "v2")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ProvenanceServiceSuite) TestVerifyChain() {
	ctx := context.Background()

	s.Run("empty chain is intact", func() {
		report, err := s.service.VerifyChain(ctx, "nobody")
		s.Require().NoError(err)
		s.True(report.Intact)
		s.Nil(report.BreakAt)
		s.Zero(report.Length)
	})

	s.Run("sequential appends stay intact", func() {
		for i := range 5 {
			_, err := s.service.Append(ctx,
				s.buildEnvelope("acme", fmt.Sprintf("doc-%d", i), "v1", fmt.Sprintf("BODY-%d", i)),
				domain.SubmissionID(fmt.Sprintf("sub-%d", i)))
			s.Require().NoError(err)
		}

		report, err := s.service.VerifyChain(ctx, "acme")
		s.Require().NoError(err)
		s.True(report.Intact)
		s.Nil(report.BreakAt)
		s.Equal(5, report.Length)
	})

	s.Run("editing one record breaks the chain at its successor", func() {
		var records []provenance.Record
		for i := range 4 {
			rec, err := s.service.Append(ctx,
				s.buildEnvelope("tampered", fmt.Sprintf("tdoc-%d", i), "v1", fmt.Sprintf("BODY-%d", i)),
				domain.SubmissionID(fmt.Sprintf("tsub-%d", i)))
			s.Require().NoError(err)
			records = append(records, rec)
		}

		// Storage-level edit of record 1 without touching record 2's link.
		ok := s.store.Tamper(records[1].ProvenanceID, func(r *provenance.Record) {
			r.Governance.IntentCode = "export.docx"
		})
		s.Require().True(ok)

		report, err := s.service.VerifyChain(ctx, "tampered")
		s.Require().NoError(err)
		s.False(report.Intact)
		s.Require().NotNil(report.BreakAt)
		s.Equal(records[2].ProvenanceID, *report.BreakAt)
	})

	s.Run("rewriting a genesis link breaks at the first record", func() {
		rec, err := s.service.Append(ctx, s.buildEnvelope("rewired", "rdoc", "v1", "A"), "rsub")
		s.Require().NoError(err)

		s.store.Tamper(rec.ProvenanceID, func(r *provenance.Record) {
			r.PreviousRecordHash = strings.Repeat("f", 64)
		})

		report, err := s.service.VerifyChain(ctx, "rewired")
		s.Require().NoError(err)
		s.False(report.Intact)
		s.Require().NotNil(report.BreakAt)
		s.Equal(rec.ProvenanceID, *report.BreakAt)
	})
}

func (s *ProvenanceServiceSuite) TestReconstructStateAt() {
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var records []provenance.Record
	for i := range 3 {
		tctx := requestcontext.WithTime(ctx, base.Add(time.Duration(i)*time.Hour))
		rec, err := s.service.Append(tctx,
			s.buildEnvelope("acme", fmt.Sprintf("doc-%d", i), "v1", fmt.Sprintf("BODY-%d", i)),
			domain.SubmissionID(fmt.Sprintf("sub-%d", i)))
		s.Require().NoError(err)
		records = append(records, rec)
	}

	s.Run("returns the latest record at the timestamp", func() {
		rec, err := s.service.ReconstructStateAt(ctx, "acme", base.Add(90*time.Minute))
		s.Require().NoError(err)
		s.Equal(records[1].ProvenanceID, rec.ProvenanceID)
	})

	s.Run("exact timestamp is inclusive", func() {
		rec, err := s.service.ReconstructStateAt(ctx, "acme", base.Add(2*time.Hour))
		s.Require().NoError(err)
		s.Equal(records[2].ProvenanceID, rec.ProvenanceID)
	})

	s.Run("before first record returns not found", func() {
		_, err := s.service.ReconstructStateAt(ctx, "acme", base.Add(-time.Minute))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
