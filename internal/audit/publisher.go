package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the subset of the Kafka client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher drains the audit stream channel and forwards events to Kafka for
// downstream consumers (SIEM, retention tooling). Delivery is best-effort:
// the transactional store is the record of truth, so publish failures are
// logged and dropped rather than retried into the hot path.
type Publisher struct {
	producer Producer
	topic    string
	inbox    <-chan Event
	logger   *slog.Logger
}

func NewPublisher(producer Producer, topic string, inbox <-chan Event, logger *slog.Logger) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		inbox:    inbox,
		logger:   logger,
	}
}

// NewKafkaProducer builds the franz-go client used in production wiring.
func NewKafkaProducer(brokers []string, topic string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
}

// Run consumes until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-p.inbox:
			p.publish(ctx, event)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	value, err := json.Marshal(publishedEvent(event))
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode audit event", "error", err, "event_id", event.ID.String())
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EntityID),
		Value: value,
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		p.logger.WarnContext(ctx, "failed to publish audit event",
			"error", err,
			"event_id", event.ID.String(),
			"action", string(event.Action),
		)
	}
}

// publishedEvent flattens Event for the wire so consumers do not depend on
// internal types.
func publishedEvent(e Event) map[string]any {
	out := map[string]any{
		"id":          e.ID.String(),
		"action":      string(e.Action),
		"entity_type": string(e.EntityType),
		"entity_id":   e.EntityID,
		"created_at":  e.CreatedAt,
	}
	if e.ActorID != nil {
		out["actor_id"] = e.ActorID.String()
	}
	if e.DocumentID != nil {
		out["document_id"] = e.DocumentID.String()
	}
	if e.DocumentVersionID != nil {
		out["document_version_id"] = e.DocumentVersionID.String()
	}
	if e.WorkflowRunID != nil {
		out["workflow_run_id"] = e.WorkflowRunID.String()
	}
	if len(e.Metadata) > 0 {
		out["metadata"] = e.Metadata
	}
	if e.IPAddress != "" {
		out["ip_address"] = e.IPAddress
	}
	return out
}
