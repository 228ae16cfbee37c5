// Package postgres provides the durable provenance store. Appends for one
// issuer serialize on a per-issuer advisory lock so previousRecordHash
// assignment is race-free across instances; appends for different issuers
// proceed concurrently.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"sigil/internal/provenance"
	"sigil/pkg/domain"
	dErrors "sigil/pkg/domain-errors"
)

// Store implements provenance.Store on PostgreSQL via database/sql.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL provenance store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the records table if it does not exist. The seq column
// preserves append order for chain walks; the two unique constraints enforce
// submission idempotency and one record per document version.
func (s *Store) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS provenance_records (
			provenance_id UUID PRIMARY KEY,
			issuer_id TEXT NOT NULL,
			submission_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			version_id TEXT NOT NULL,
			previous_record_hash TEXT NOT NULL,
			record JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			seq BIGINT GENERATED ALWAYS AS IDENTITY,
			UNIQUE (issuer_id, submission_id),
			UNIQUE (document_id, version_id)
		);
		CREATE INDEX IF NOT EXISTS provenance_records_issuer_seq
			ON provenance_records (issuer_id, seq);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate provenance schema: %w", err)
	}
	return nil
}

// Append assigns the chain link under the issuer's advisory lock and inserts
// the record in the same transaction.
func (s *Store) Append(ctx context.Context, rec provenance.Record) (provenance.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "begin append transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	issuerID := rec.Governance.IssuerID

	// hashtext collisions between issuer ids would only over-serialize,
	// never under-serialize, so they are harmless.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, issuerID.String()); err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "acquire issuer lock", err)
	}

	prevHash := provenance.GenesisHash
	var headRaw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT record FROM provenance_records
		WHERE issuer_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`, issuerID.String()).Scan(&headRaw)
	switch {
	case err == sql.ErrNoRows:
		// First record for this issuer; genesis link.
	case err != nil:
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "read chain head", err)
	default:
		var head provenance.Record
		if err := json.Unmarshal(headRaw, &head); err != nil {
			return provenance.Record{}, dErrors.Wrap(dErrors.CodeInternal, "decode chain head", err)
		}
		h, err := head.CanonicalHash()
		if err != nil {
			return provenance.Record{}, err
		}
		prevHash = h
	}
	rec.PreviousRecordHash = prevHash

	raw, err := json.Marshal(rec)
	if err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeInternal, "encode record", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO provenance_records (
			provenance_id, issuer_id, submission_id,
			document_id, version_id, previous_record_hash,
			record, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(rec.ProvenanceID),
		issuerID.String(),
		rec.SubmissionID.String(),
		rec.Document.DocumentID,
		rec.Document.VersionID,
		rec.PreviousRecordHash,
		raw,
		rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return provenance.Record{}, dErrors.Wrap(dErrors.CodeConflict,
				"submission or document version already recorded", err)
		}
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "insert record", err)
	}

	if err := tx.Commit(); err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "commit append", err)
	}
	return rec, nil
}

// Get returns a record by provenance id.
func (s *Store) Get(ctx context.Context, id domain.ProvenanceID) (provenance.Record, error) {
	return s.queryOne(ctx, `
		SELECT record FROM provenance_records WHERE provenance_id = $1
	`, fmt.Sprintf("no record with provenance id %q", id), uuid.UUID(id))
}

// FindByDocument returns the record for a document version.
func (s *Store) FindByDocument(ctx context.Context, documentID, versionID string) (provenance.Record, error) {
	return s.queryOne(ctx, `
		SELECT record FROM provenance_records WHERE document_id = $1 AND version_id = $2
	`, fmt.Sprintf("no record for document %q version %q", documentID, versionID), documentID, versionID)
}

// ListByIssuer returns the issuer's records in append order.
func (s *Store) ListByIssuer(ctx context.Context, issuerID domain.IssuerID) ([]provenance.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record FROM provenance_records
		WHERE issuer_id = $1
		ORDER BY seq ASC
	`, issuerID.String())
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "query issuer records", err)
	}
	defer rows.Close()

	var records []provenance.Record
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeUnavailable, "scan record", err)
		}
		var rec provenance.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, dErrors.Wrap(dErrors.CodeInternal, "decode record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeUnavailable, "iterate issuer records", err)
	}
	return records, nil
}

func (s *Store) queryOne(ctx context.Context, query, notFoundMsg string, args ...any) (provenance.Record, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return provenance.Record{}, dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	}
	if err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeUnavailable, "query record", err)
	}
	var rec provenance.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return provenance.Record{}, dErrors.Wrap(dErrors.CodeInternal, "decode record", err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
