package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"veris/internal/domain"
	"veris/internal/eventbus"
	txcontext "veris/pkg/platform/tx"
)

// Store persists event records in PostgreSQL. Idempotency rides on the partial
// unique index over (org_id, idempotency_key): the insert races through the
// index and loses cleanly, never through a check-then-insert.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL-backed event store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertQuery = `
	INSERT INTO event_records (
		id, org_id, event_type, payload, actor_id, actor_role,
		idempotency_key, device_id, server_time, drift_seconds, drifted,
		training_mode, created_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (org_id, idempotency_key) WHERE idempotency_key <> ''
	DO NOTHING
`

// Insert stores rec, or fetches the existing record when the idempotency key
// conflicts. ON CONFLICT DO NOTHING plus a follow-up select is atomic with
// respect to concurrent duplicates: exactly one submission inserts, the rest
// observe zero rows affected and read the winner.
func (s *Store) Insert(ctx context.Context, rec eventbus.Record) (eventbus.Record, bool, error) {
	res, err := s.querier(ctx).ExecContext(ctx, insertQuery,
		rec.ID,
		string(rec.OrgID),
		rec.EventType,
		[]byte(rec.Payload),
		rec.ActorID,
		rec.ActorRole,
		rec.IdempotencyKey,
		rec.DeviceID,
		rec.ServerTime,
		rec.DriftSeconds,
		rec.Drifted,
		rec.TrainingMode,
		rec.CreatedAt,
	)
	if err != nil {
		return eventbus.Record{}, false, fmt.Errorf("insert event record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return eventbus.Record{}, false, fmt.Errorf("insert event record: rows affected: %w", err)
	}
	if affected > 0 {
		return rec, true, nil
	}

	existing, err := s.findByKey(ctx, rec.OrgID, rec.IdempotencyKey)
	if err != nil {
		return eventbus.Record{}, false, fmt.Errorf("fetch existing event for key %q: %w", rec.IdempotencyKey, err)
	}
	return existing, false, nil
}

func (s *Store) findByKey(ctx context.Context, orgID domain.OrgID, idempotencyKey string) (eventbus.Record, error) {
	row := s.querier(ctx).QueryRowContext(ctx, selectColumns+`
		WHERE org_id = $1 AND idempotency_key = $2
	`, string(orgID), idempotencyKey)
	return scanRecord(row)
}

// ListByOrg returns an org's records in creation order.
func (s *Store) ListByOrg(ctx context.Context, orgID domain.OrgID, eventTypes []string, trainingMode *bool) ([]eventbus.Record, error) {
	var (
		conds = []string{"org_id = $1"}
		args  = []any{string(orgID)}
	)
	if len(eventTypes) > 0 {
		args = append(args, pq.Array(eventTypes))
		conds = append(conds, fmt.Sprintf("event_type = ANY($%d)", len(args)))
	}
	if trainingMode != nil {
		args = append(args, *trainingMode)
		conds = append(conds, fmt.Sprintf("training_mode = $%d", len(args)))
	}

	query := selectColumns + `
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY created_at ASC, id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event records: %w", err)
	}
	defer rows.Close()

	var records []eventbus.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event records: %w", err)
	}
	return records, nil
}

const selectColumns = `
	SELECT id, org_id, event_type, payload, actor_id, actor_role,
	       idempotency_key, device_id, server_time, drift_seconds, drifted,
	       training_mode, created_at
	FROM event_records
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (eventbus.Record, error) {
	var (
		rec     eventbus.Record
		orgID   string
		payload []byte
	)
	err := row.Scan(
		&rec.ID, &orgID, &rec.EventType, &payload, &rec.ActorID, &rec.ActorRole,
		&rec.IdempotencyKey, &rec.DeviceID, &rec.ServerTime, &rec.DriftSeconds, &rec.Drifted,
		&rec.TrainingMode, &rec.CreatedAt,
	)
	if err != nil {
		return eventbus.Record{}, fmt.Errorf("scan event record: %w", err)
	}
	rec.OrgID = domain.OrgID(orgID)
	rec.Payload = payload
	return rec, nil
}
