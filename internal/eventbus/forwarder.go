package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Forwarder relays stored event records to a Kafka topic so external consumers
// (notification workers, projections in other services) receive them without
// polling Postgres. Delivery is at-least-once; records are keyed by org so one
// tenant's events stay ordered within a partition.
type Forwarder struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewForwarder connects to the brokers and ensures the topic exists. Topic
// creation conflicts from concurrent instances are ignored.
func NewForwarder(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Forwarder, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("eventbus: connect kafka: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, -1, -1, nil, topic); err != nil {
		if !errors.Is(err, kerr.TopicAlreadyExists) {
			client.Close()
			return nil, fmt.Errorf("eventbus: ensure topic %s: %w", topic, err)
		}
	}

	return &Forwarder{client: client, topic: topic, logger: logger}, nil
}

// Forward publishes one record to the topic, blocking until the broker acks.
func (f *Forwarder) Forward(ctx context.Context, rec Record) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("eventbus: marshal record %s: %w", rec.ID, err)
	}

	msg := &kgo.Record{
		Topic: f.topic,
		Key:   []byte(rec.OrgID),
		Value: value,
	}
	if err := f.client.ProduceSync(ctx, msg).FirstErr(); err != nil {
		return fmt.Errorf("eventbus: produce record %s: %w", rec.ID, err)
	}

	if f.logger != nil {
		f.logger.DebugContext(ctx, "event forwarded",
			"event_id", rec.ID,
			"event_type", rec.EventType,
			"topic", f.topic,
		)
	}
	return nil
}

// Close flushes buffered produces and closes the client.
func (f *Forwarder) Close() {
	f.client.Close()
}
