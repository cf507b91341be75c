package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Event kinds published by the membership and reconciliation paths.
const (
	KindJoined    = "membership.joined"
	KindLeft      = "membership.left"
	KindCorrected = "counter.corrected"
)

// Event is the payload written to the events topic for downstream consumers
// (analytics, audit). Publishing is always best-effort.
type Event struct {
	Kind        string    `json:"kind"`
	CommunityID string    `json:"community_id,omitempty"`
	UserID      string    `json:"user_id,omitempty"`
	Previous    int64     `json:"previous,omitempty"`
	New         int64     `json:"new,omitempty"`
	At          time.Time `json:"at"`
}

// Producer writes events to Kafka. A nil Producer is valid and publishes
// nothing, which is how deployments without brokers run.
type Producer struct {
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewProducer returns nil when no brokers are configured.
func NewProducer(brokers []string, topic string, log *zap.SugaredLogger) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
	}
	return &Producer{writer: w, log: log}
}

// Publish sends one event keyed by community so per-community ordering holds.
// Failures are logged and swallowed; events never fail a user operation.
func (p *Producer) Publish(ctx context.Context, ev Event) {
	if p == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	value, err := json.Marshal(ev)
	if err != nil {
		p.log.Warnw("event encode failed", "kind", ev.Kind, "err", err)
		return
	}
	msg := kafka.Message{Key: []byte(ev.CommunityID), Value: value}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warnw("event publish failed", "kind", ev.Kind, "err", err)
	}
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
