package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"veris/internal/audit"
	"veris/internal/domain"
	"veris/pkg/platform/sentinel"
	txcontext "veris/pkg/platform/tx"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// Store persists audit records in PostgreSQL. The runtime role only holds
// INSERT and SELECT on audit_records (see migrations), so immutability is
// enforced below the application as well as by the Store interface.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts one immutable row. A duplicate id maps to sentinel.ErrConflict
// so a retried finalize cannot silently overwrite forensic history.
func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	var linkage []byte
	if rec.Linkage != nil {
		b, err := json.Marshal(rec.Linkage)
		if err != nil {
			return fmt.Errorf("marshal decision linkage: %w", err)
		}
		linkage = b
	}

	query := `
		INSERT INTO audit_records (
			id, org_id, actor_id, actor_role, actor_email,
			action, resource, outcome, classification, training_mode,
			reason_code, before_state, after_state, decision_linkage,
			device_id, device_name, session_id, ip_address, user_agent, request_id, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		rec.ID,
		string(rec.OrgID),
		rec.ActorID,
		rec.ActorRole,
		rec.ActorEmail,
		rec.Action,
		rec.Resource,
		string(rec.Outcome),
		string(rec.Classification),
		rec.TrainingMode,
		rec.ReasonCode,
		nullableJSON(rec.BeforeState),
		nullableJSON(rec.AfterState),
		nullableJSON(linkage),
		rec.DeviceID,
		rec.DeviceName,
		rec.SessionID,
		rec.IPAddress,
		rec.UserAgent,
		rec.RequestID,
		rec.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("audit record %s already written: %w", rec.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListByOrg returns an org's records in append order.
func (s *Store) ListByOrg(ctx context.Context, orgID domain.OrgID) ([]audit.Record, error) {
	query := selectColumns + `
		WHERE org_id = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, string(orgID))
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// ListByDecision returns records linked to a decision id.
func (s *Store) ListByDecision(ctx context.Context, decisionID string) ([]audit.Record, error) {
	query := selectColumns + `
		WHERE decision_linkage ->> 'decision_id' = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, decisionID)
	if err != nil {
		return nil, fmt.Errorf("query audit records by decision: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

const selectColumns = `
	SELECT id, org_id, actor_id, actor_role, actor_email,
	       action, resource, outcome, classification, training_mode,
	       reason_code, before_state, after_state, decision_linkage,
	       device_id, device_name, session_id, ip_address, user_agent, request_id, timestamp
	FROM audit_records
`

func scanRecords(rows *sql.Rows) ([]audit.Record, error) {
	var records []audit.Record

	for rows.Next() {
		var (
			rec            audit.Record
			orgID          string
			outcome        string
			classification string
			before, after  []byte
			linkage        []byte
		)
		err := rows.Scan(
			&rec.ID, &orgID, &rec.ActorID, &rec.ActorRole, &rec.ActorEmail,
			&rec.Action, &rec.Resource, &outcome, &classification, &rec.TrainingMode,
			&rec.ReasonCode, &before, &after, &linkage,
			&rec.DeviceID, &rec.DeviceName, &rec.SessionID, &rec.IPAddress, &rec.UserAgent, &rec.RequestID, &rec.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}

		rec.OrgID = domain.OrgID(orgID)
		rec.Outcome = audit.Outcome(outcome)
		rec.Classification = domain.Classification(classification)
		rec.BeforeState = before
		rec.AfterState = after
		if len(linkage) > 0 {
			var l audit.Linkage
			if err := json.Unmarshal(linkage, &l); err != nil {
				return nil, fmt.Errorf("unmarshal decision linkage: %w", err)
			}
			rec.Linkage = &l
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
