package handler

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"sigil/internal/envelope"
	"sigil/internal/hashchain"
	"sigil/internal/provenance"
	"sigil/internal/provenance/store/memory"
	dErrors "sigil/pkg/domain-errors"
	"sigil/pkg/platform/middleware/metadata"
	"sigil/pkg/testutil"
)

// HandlerSuite validates HTTP concerns (parsing, status mapping) against
// real components and the in-memory store.
type HandlerSuite struct {
	suite.Suite
	router  http.Handler
	builder *hashchain.Builder
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	store := memory.NewInMemoryStore()
	service, err := provenance.NewService(store, nil, nil)
	require.NoError(s.T(), err)

	s.builder = hashchain.NewBuilder()
	h := New(service, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	h.Register(r)
	h.RegisterProtected(r)
	s.router = r
}

func (s *HandlerSuite) buildEnvelope(docID string) envelope.Envelope {
	env, err := s.builder.Build(context.Background(), hashchain.BuildRequest{
		DocumentID:  docID,
		VersionID:   "v1",
		ContentType: "application/pdf",
		Body:        strings.NewReader("BODY-" + docID),
		Governance: envelope.GovernanceMetadata{
			IssuerID:           "acme",
			ResponsibleActorID: "u1",
			IntentCode:         "export.pdf",
			PolicyReference:    "p1",
			Jurisdictions:      []string{"DE"},
			TimestampIssued:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Secret: []byte("s3cr3t"),
	})
	require.NoError(s.T(), err)
	return env
}

func (s *HandlerSuite) TestAppend_RequiresSubject() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"submissionId": "sub-1",
		"envelope":     s.buildEnvelope("doc-1"),
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
}

func (s *HandlerSuite) TestAppend_CreatesRecord() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"submissionId": "sub-1",
		"envelope":     s.buildEnvelope("doc-1"),
	})
	rr := testutil.DoRequest(s.router, testutil.WithSubject(req, "exporter-service"))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	rec := testutil.UnmarshalResponse[provenance.Record](s.T(), rr)
	s.Equal(provenance.GenesisHash, rec.PreviousRecordHash)
	s.False(rec.ProvenanceID.IsNil())
}

func (s *HandlerSuite) TestAppend_DuplicateSubmissionIsConflict() {
	env := s.buildEnvelope("doc-1")

	first := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"submissionId": "sub-1", "envelope": env,
	})
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, testutil.WithSubject(first, "svc")), http.StatusCreated)

	second := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"submissionId": "sub-1", "envelope": s.buildEnvelope("doc-2"),
	})
	rr := testutil.DoRequest(s.router, testutil.WithSubject(second, "svc"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
}

func (s *HandlerSuite) TestAppend_MissingSubmissionID() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"envelope": s.buildEnvelope("doc-1"),
	})
	rr := testutil.DoRequest(s.router, testutil.WithSubject(req, "svc"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
}

func (s *HandlerSuite) TestAppend_InvalidJSON() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/provenance/records", "not valid json")
	rr := testutil.DoRequest(s.router, testutil.WithSubject(req, "svc"))

	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}

// Client metadata extracted by the middleware must surface in the append
// log line, not just sit in the context.
func (s *HandlerSuite) TestAppend_LogsClientMetadata() {
	store := memory.NewInMemoryStore()
	service, err := provenance.NewService(store, nil, nil)
	require.NoError(s.T(), err)

	var logs bytes.Buffer
	h := New(service, slog.New(slog.NewJSONHandler(&logs, nil)))

	r := chi.NewRouter()
	r.Use(metadata.ClientMetadata)
	h.RegisterProtected(r)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/provenance/records", map[string]any{
		"submissionId": "sub-1",
		"envelope":     s.buildEnvelope("doc-1"),
	})
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("User-Agent", "curl/8.5.0")
	rr := testutil.DoRequest(r, testutil.WithSubject(req, "exporter-service"))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	s.Contains(logs.String(), `"client_ip":"203.0.113.7"`)
	s.Contains(logs.String(), `"user_agent"`)
}

func (s *HandlerSuite) TestGet_UnknownIDIsNotFound() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/provenance/records/9f0c5f9e-0000-4000-8000-000000000000")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
}

func (s *HandlerSuite) TestChain_EmptyIssuerIsIntact() {
	req := testutil.NewRequest(s.T(), http.MethodGet, "/provenance/issuers/nobody/chain")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "intact", true)
}
