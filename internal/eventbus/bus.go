package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"veris/internal/canonical"
	"veris/internal/domain"
	"veris/internal/eventbus/metrics"
	"veris/pkg/requestcontext"
)

// maxPublishDepth bounds handler-triggered republishing. Depth 1 is a plain
// publish; each synchronous handler dispatch adds one level.
const maxPublishDepth = 8

// DefaultDriftThreshold flags device clocks more than two minutes off.
const DefaultDriftThreshold = 2 * time.Minute

type depthKey struct{}

func publishDepth(ctx context.Context) int {
	if d, ok := ctx.Value(depthKey{}).(int); ok {
		return d
	}
	return 0
}

// Bus stores event records idempotently and dispatches them to registered
// handlers. Replay re-reads an org's log and re-invokes handlers for
// backfill/recovery; it is not a production delivery path.
type Bus struct {
	store          Store
	cache          *Cache
	sink           Sink
	logger         *slog.Logger
	metrics        *metrics.Metrics
	driftThreshold time.Duration

	mu       sync.RWMutex
	handlers map[string][]Handler
}

// Sink receives every newly stored record, after handler dispatch. Used to
// relay events to external transports (Kafka); delivery is at-least-once and
// sink failures never fail the publish.
type Sink interface {
	Forward(ctx context.Context, rec Record) error
}

// Option configures the Bus.
type Option func(*Bus)

// WithCache adds a read-through idempotency cache. The cache is populated only
// after the authoritative insert; the store's uniqueness constraint remains
// the source of truth.
func WithCache(c *Cache) Option {
	return func(b *Bus) { b.cache = c }
}

// WithSink adds an external relay for stored records.
func WithSink(s Sink) Option {
	return func(b *Bus) { b.sink = s }
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) { b.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

// WithDriftThreshold overrides the device clock drift threshold.
func WithDriftThreshold(d time.Duration) Option {
	return func(b *Bus) { b.driftThreshold = d }
}

// New creates a bus over the given store.
func New(store Store, opts ...Option) *Bus {
	b := &Bus{
		store:          store,
		driftThreshold: DefaultDriftThreshold,
		handlers:       make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Register adds a handler for eventType. Handlers fire in registration order.
// Handlers must not synchronously republish the type they are handling; the
// depth guard turns runaway chains into ErrReentrantPublish.
func (b *Bus) Register(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Publish persists the event exactly once per idempotency key and dispatches
// handlers for newly stored records. When the key matches an existing record,
// the original is returned and no handler fires - at-most-once side effects.
func (b *Bus) Publish(ctx context.Context, in PublishInput) (PublishResult, error) {
	if in.EventType == "" {
		return PublishResult{}, fmt.Errorf("eventbus: publish requires event type")
	}
	depth := publishDepth(ctx)
	if depth >= maxPublishDepth {
		return PublishResult{}, ErrReentrantPublish
	}

	orgID := domain.NormalizeOrgID(in.OrgID)
	serverTime := requestcontext.Now(ctx).UTC()

	// Fast path: a previously seen key short-circuits before touching the
	// store. Misses always fall through to the authoritative path.
	if in.IdempotencyKey != "" && b.cache != nil {
		if cached, ok := b.cache.Get(ctx, orgID, in.IdempotencyKey); ok {
			if b.metrics != nil {
				b.metrics.IncDeduplicated(in.EventType)
			}
			return PublishResult{Record: cached, Duplicate: true}, nil
		}
	}

	payload, err := canonical.Marshal(in.Payload)
	if err != nil {
		return PublishResult{}, fmt.Errorf("eventbus: canonicalize payload: %w", err)
	}

	rec := Record{
		ID:             uuid.NewString(),
		OrgID:          orgID,
		EventType:      in.EventType,
		Payload:        payload,
		ActorID:        in.Actor.ID,
		ActorRole:      in.Actor.Role,
		IdempotencyKey: in.IdempotencyKey,
		DeviceID:       in.DeviceID,
		ServerTime:     serverTime,
		TrainingMode:   in.TrainingMode,
		CreatedAt:      serverTime,
	}
	if in.DeviceTime != nil {
		drift := serverTime.Sub(*in.DeviceTime)
		if drift < 0 {
			drift = -drift
		}
		rec.DriftSeconds = drift.Seconds()
		rec.Drifted = drift > b.driftThreshold
		if rec.Drifted && b.metrics != nil {
			b.metrics.IncDrifted(in.EventType)
		}
	}

	stored, inserted, err := b.store.Insert(ctx, rec)
	if err != nil {
		return PublishResult{}, fmt.Errorf("eventbus: insert event: %w", err)
	}

	if in.IdempotencyKey != "" && b.cache != nil {
		b.cache.Put(ctx, stored)
	}

	if !inserted {
		if b.metrics != nil {
			b.metrics.IncDeduplicated(in.EventType)
		}
		return PublishResult{Record: stored, Duplicate: true}, nil
	}

	if b.metrics != nil {
		b.metrics.IncPublished(in.EventType)
	}

	dispatchCtx := context.WithValue(ctx, depthKey{}, depth+1)
	_, handlerErrs := b.dispatch(dispatchCtx, stored)

	if b.sink != nil {
		if err := b.sink.Forward(ctx, stored); err != nil {
			if b.logger != nil {
				b.logger.ErrorContext(ctx, "event relay failed",
					"event_id", stored.ID,
					"event_type", stored.EventType,
					"error", err,
				)
			}
			if b.metrics != nil {
				b.metrics.IncRelayFailures()
			}
		}
	}

	return PublishResult{Record: stored, HandlerErrors: handlerErrs}, nil
}

// Replay re-dispatches an org's stored events in creation order and returns
// one status per event. Handlers are re-invoked unconditionally: handlers with
// non-repeatable side effects must key off Record.ID themselves. Replay
// continues past individual handler failures.
func (b *Bus) Replay(ctx context.Context, orgID domain.OrgID, eventTypes []string, trainingMode *bool) ([]ReplayStatus, error) {
	records, err := b.store.ListByOrg(ctx, domain.NormalizeOrgID(orgID), eventTypes, trainingMode)
	if err != nil {
		return nil, fmt.Errorf("eventbus: load events for replay: %w", err)
	}

	dispatchCtx := context.WithValue(ctx, depthKey{}, publishDepth(ctx)+1)

	statuses := make([]ReplayStatus, 0, len(records))
	for _, rec := range records {
		invoked, errs := b.dispatch(dispatchCtx, rec)
		status := ReplayStatus{
			EventID:         rec.ID,
			EventType:       rec.EventType,
			HandlersInvoked: invoked,
		}
		if len(errs) > 0 {
			status.Error = errs[0].Error()
		}
		if b.metrics != nil {
			b.metrics.IncReplayed(rec.EventType)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// dispatch runs every handler registered for the record's type, in
// registration order, collecting failures.
func (b *Bus) dispatch(ctx context.Context, rec Record) (invoked int, errs []error) {
	b.mu.RLock()
	handlers := append([]Handler{}, b.handlers[rec.EventType]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		invoked++
		if err := h(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("handler %d for %s: %w", invoked, rec.EventType, err))
			if b.logger != nil {
				b.logger.WarnContext(ctx, "event handler failed",
					"event_id", rec.ID,
					"event_type", rec.EventType,
					"error", err,
				)
			}
		}
	}
	return invoked, errs
}
