// Package tenancy enforces the org isolation boundary. Every record fetch in
// the platform goes through the Guard; the routers above it assume isolation
// but never implement it themselves.
package tenancy

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"veris/internal/audit"
	"veris/internal/domain"
	"veris/internal/tenancy/metrics"
	"veris/pkg/platform/sentinel"
)

// Record is the minimal shape the guard needs from any tenant-scoped entity.
// Business modules implement it on their own types.
type Record interface {
	RecordOrgID() domain.OrgID
	RecordTrainingMode() bool
}

// Collection abstracts a persisted set of records so the guard stays
// independent of storage technology.
type Collection interface {
	// Name labels the collection in audit records ("invoices", "shifts").
	Name() string
	All(ctx context.Context) ([]Record, error)
	// FindByID reports found=false for absent ids; absence is not an error.
	FindByID(ctx context.Context, id string) (rec Record, found bool, err error)
}

// Guard performs scoped reads and audits violations. A cross-tenant attempt is
// treated as a legal/security event, not an ordinary denial.
type Guard struct {
	log     *audit.Log
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// Option configures the Guard.
type Option func(*Guard)

// WithLogger sets a logger for violation reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// NewGuard creates a guard that writes violations to the given audit log.
func NewGuard(log *audit.Log, opts ...Option) *Guard {
	g := &Guard{
		log:    log,
		tracer: otel.Tracer("veris/tenancy"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ScopedQuery returns only records owned by actorOrgID. When trainingMode is
// non-nil, records whose partition flag disagrees are filtered out as well, so
// rehearsal data never leaks into production listings (or vice versa).
func (g *Guard) ScopedQuery(ctx context.Context, col Collection, actorOrgID domain.OrgID, trainingMode *bool) ([]Record, error) {
	all, err := col.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenancy: list %s: %w", col.Name(), err)
	}

	org := domain.NormalizeOrgID(actorOrgID)
	out := make([]Record, 0, len(all))
	for _, rec := range all {
		if domain.NormalizeOrgID(rec.RecordOrgID()) != org {
			continue
		}
		if trainingMode != nil && rec.RecordTrainingMode() != *trainingMode {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ScopedFetch fetches one record by primary key on behalf of actor.
//
// Absent records and training-mode mismatches both return sentinel.ErrNotFound:
// the two are deliberately indistinguishable so a caller cannot probe for the
// existence of shadow data. A record owned by another org returns
// sentinel.ErrCrossTenant after an audit record has been durably written; if
// that audit write fails, the failure propagates instead.
func (g *Guard) ScopedFetch(ctx context.Context, col Collection, recordID string, actor domain.Actor, trainingMode bool) (Record, error) {
	ctx, span := g.tracer.Start(ctx, "tenancy.scoped_fetch")
	defer span.End()

	rec, found, err := col.FindByID(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("tenancy: fetch %s/%s: %w", col.Name(), recordID, err)
	}
	if !found || rec.RecordTrainingMode() != trainingMode {
		return nil, sentinel.ErrNotFound
	}

	recordOrg := domain.NormalizeOrgID(rec.RecordOrgID())
	actorOrg := domain.NormalizeOrgID(actor.OrgID)
	if recordOrg == actorOrg {
		return rec, nil
	}

	// Scope violation: audit first, then deny. Classification is forced to the
	// most restrictive tier regardless of the resource's normal tier.
	if g.metrics != nil {
		g.metrics.IncCrossTenantBlocks(col.Name())
	}
	if g.logger != nil {
		g.logger.WarnContext(ctx, "cross-tenant access blocked",
			"collection", col.Name(),
			"record_id", recordID,
			"actor_org", actorOrg,
			"record_org", recordOrg,
		)
	}

	_, auditErr := g.log.Record(ctx, audit.Entry{
		Actor:          actor,
		Action:         audit.ActionCrossTenantAccess,
		Resource:       fmt.Sprintf("%s/%s", col.Name(), recordID),
		Outcome:        audit.OutcomeBlocked,
		Classification: domain.MostRestrictiveClassification(),
		TrainingMode:   trainingMode,
		ReasonCode:     audit.ReasonOrgScopeViolation,
	})
	if auditErr != nil {
		return nil, fmt.Errorf("tenancy: audit scope violation: %w", auditErr)
	}

	return nil, sentinel.ErrCrossTenant
}
