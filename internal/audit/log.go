package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"veris/internal/audit/metrics"
	"veris/internal/canonical"
	"veris/internal/domain"
	"veris/pkg/requestcontext"
)

// Log appends immutable audit records. Writes are synchronous and fail-closed:
// if the record cannot be persisted, the caller's operation must not proceed,
// because an effect without its audit record violates the platform's core
// guarantee.
type Log struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures the Log.
type Option func(*Log)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Log) { l.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

// NewLog creates an audit log over the given append-only store.
func NewLog(store Store, opts ...Option) *Log {
	l := &Log{store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record appends one immutable row and returns it. Snapshots are canonicalized
// before persistence so re-hashing a stored record reproduces the original
// digest. Errors always propagate; they are never swallowed to protect the
// primary operation.
func (l *Log) Record(ctx context.Context, e Entry) (Record, error) {
	if e.Action == "" {
		return Record{}, fmt.Errorf("audit: entry requires action")
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = requestcontext.Now(ctx)
	}

	rec := Record{
		ID:             e.ID,
		OrgID:          domain.NormalizeOrgID(e.Actor.OrgID),
		ActorID:        e.Actor.ID,
		ActorRole:      e.Actor.Role,
		ActorEmail:     e.Actor.Email,
		Action:         e.Action,
		Resource:       e.Resource,
		Outcome:        e.Outcome,
		Classification: e.Classification,
		TrainingMode:   e.TrainingMode,
		ReasonCode:     e.ReasonCode,
		Linkage:        e.Linkage,
		DeviceID:       requestcontext.DeviceID(ctx),
		DeviceName:     requestcontext.DeviceName(ctx),
		SessionID:      requestcontext.SessionID(ctx),
		IPAddress:      requestcontext.ClientIP(ctx),
		UserAgent:      requestcontext.UserAgent(ctx),
		RequestID:      requestcontext.RequestID(ctx),
		Timestamp:      ts.UTC(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	if e.Before != nil {
		b, err := canonical.Marshal(e.Before)
		if err != nil {
			return Record{}, fmt.Errorf("audit: canonicalize before state: %w", err)
		}
		rec.BeforeState = b
	}
	if e.After != nil {
		a, err := canonical.Marshal(e.After)
		if err != nil {
			return Record{}, fmt.Errorf("audit: canonicalize after state: %w", err)
		}
		rec.AfterState = a
	}

	if err := l.store.Append(ctx, rec); err != nil {
		if l.metrics != nil {
			l.metrics.IncAppendFailures()
		}
		if l.logger != nil {
			l.logger.ErrorContext(ctx, "CRITICAL: audit append failed",
				"action", rec.Action,
				"org_id", rec.OrgID,
				"actor_id", rec.ActorID,
				"error", err,
			)
		}
		return Record{}, fmt.Errorf("audit: append record: %w", err)
	}

	if l.metrics != nil {
		l.metrics.IncAppends(string(rec.Classification))
	}
	return rec, nil
}

// ListByOrg returns the org's audit trail in append order.
func (l *Log) ListByOrg(ctx context.Context, orgID domain.OrgID) ([]Record, error) {
	return l.store.ListByOrg(ctx, domain.NormalizeOrgID(orgID))
}

// ListByDecision returns the records linked to a decision id.
func (l *Log) ListByDecision(ctx context.Context, decisionID string) ([]Record, error) {
	return l.store.ListByDecision(ctx, decisionID)
}
