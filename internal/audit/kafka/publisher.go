// Package kafka publishes audit records to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"boxoffice/internal/audit"
)

// Message is the wire form of an audit record.
type Message struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Severity     string    `json:"severity"`
	ActorID      string    `json:"actor_id"`
	TargetID     string    `json:"target_id,omitempty"`
	ResourceType string    `json:"resource_type,omitempty"`
	ResourceID   string    `json:"resource_id,omitempty"`
	EventID      string    `json:"event_id,omitempty"`
	Details      string    `json:"details,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func toMessage(rec audit.Record) Message {
	msg := Message{
		ID:           rec.ID,
		Action:       string(rec.Action),
		Severity:     string(rec.Severity),
		ActorID:      rec.Actor.String(),
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		Details:      rec.Details,
		ClientIP:     rec.ClientIP,
		UserAgent:    rec.UserAgent,
		RequestID:    rec.RequestID,
		CreatedAt:    rec.CreatedAt,
	}
	if rec.Target != nil {
		msg.TargetID = rec.Target.String()
	}
	if rec.EventID != nil {
		msg.EventID = rec.EventID.String()
	}
	return msg
}

// Publisher implements mirror.Publisher on a franz-go client.
type Publisher struct {
	client *kgo.Client
	topic  string
}

// New connects to brokers. Extra options are appended after the defaults.
func New(brokers []string, topic string, opts ...kgo.Opt) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if topic == "" {
		return nil, errors.New("kafka: audit topic is required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RecordRetries(5),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("kafka: create client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish produces recs synchronously, keyed by actor so one account's
// records stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, recs []audit.Record) error {
	if len(recs) == 0 {
		return nil
	}
	out := make([]*kgo.Record, 0, len(recs))
	for _, rec := range recs {
		payload, err := json.Marshal(toMessage(rec))
		if err != nil {
			return fmt.Errorf("kafka: marshal audit record %s: %w", rec.ID, err)
		}
		out = append(out, &kgo.Record{
			Topic:     p.topic,
			Key:       []byte(rec.Actor.String()),
			Value:     payload,
			Timestamp: rec.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: "action", Value: []byte(rec.Action)},
				{Key: "severity", Value: []byte(rec.Severity)},
			},
		})
	}
	if err := p.client.ProduceSync(ctx, out...).FirstErr(); err != nil {
		return fmt.Errorf("kafka: produce: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *Publisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Publisher) Close() {
	p.client.Close()
}
