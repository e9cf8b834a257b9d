// Package eventbus is the idempotent publish/replay backbone for side-effecting
// notifications and replay-based state reconstruction. Event records are
// append-only; at-most-once handler dispatch is guaranteed per idempotency key
// by a storage-level uniqueness constraint, never by a check-then-insert.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"veris/internal/domain"
)

// ErrReentrantPublish is returned when handler dispatch nests deeper than
// maxPublishDepth, which indicates a handler republishing into its own event
// chain.
var ErrReentrantPublish = errors.New("eventbus: reentrant publish exceeds depth limit")

// Record is one stored event. Created exactly once per idempotency key;
// subsequent publishes with the same key return this original row.
type Record struct {
	ID             string          `json:"id"`
	OrgID          domain.OrgID    `json:"org_id"`
	EventType      string          `json:"event_type"`
	Payload        json.RawMessage `json:"payload"`
	ActorID        string          `json:"actor_id"`
	ActorRole      string          `json:"actor_role"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	DeviceID       string          `json:"device_id,omitempty"`
	ServerTime     time.Time       `json:"server_time"`
	DriftSeconds   float64         `json:"drift_seconds"`
	Drifted        bool            `json:"drifted"`
	TrainingMode   bool            `json:"training_mode"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Handler consumes one event record. Handlers run synchronously in
// registration order and must tolerate re-invocation during replay.
type Handler func(ctx context.Context, rec Record) error

// PublishInput is everything Publish needs; the training flag and actor are
// explicit parameters, never ambient state.
type PublishInput struct {
	OrgID          domain.OrgID
	EventType      string
	Payload        any
	Actor          domain.Actor
	IdempotencyKey string
	DeviceID       string
	// DeviceTime is the client-reported clock; when present, drift against
	// server time is recorded on the stored event. Drift never blocks
	// publication.
	DeviceTime   *time.Time
	TrainingMode bool
}

// PublishResult reports what one publish did.
type PublishResult struct {
	Record Record
	// Duplicate is true when the idempotency key matched an existing record;
	// the original record is returned and no handler was invoked. A duplicate
	// is not an error.
	Duplicate bool
	// HandlerErrors collects per-handler failures. The stored record is never
	// rolled back on handler failure.
	HandlerErrors []error
}

// ReplayStatus is one entry of a replay report, one per stored event.
type ReplayStatus struct {
	EventID         string `json:"event_id"`
	EventType       string `json:"event_type"`
	HandlersInvoked int    `json:"handlers_invoked"`
	Error           string `json:"error,omitempty"`
}

// Store is the persistence contract for event records.
type Store interface {
	// Insert atomically persists rec, or returns the already-stored record for
	// the same (org, idempotency key). The inserted flag distinguishes the two;
	// implementations must make this safe under concurrent duplicate
	// submissions via a uniqueness constraint, not a prior existence check.
	Insert(ctx context.Context, rec Record) (stored Record, inserted bool, err error)
	// ListByOrg returns an org's records in creation order, optionally filtered
	// by event types and training-mode partition.
	ListByOrg(ctx context.Context, orgID domain.OrgID, eventTypes []string, trainingMode *bool) ([]Record, error)
}
