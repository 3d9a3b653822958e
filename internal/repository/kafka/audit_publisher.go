// Package kafka publishes audit entries to a topic for downstream consumers.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditPublisher is a secondary audit sink. Messages are keyed by target id
// so every event for one appointment lands on the same partition in order.
type AuditPublisher struct {
	writer messageWriter
	topic  string
}

func NewAuditPublisher(cfg config.AuditConfig) *AuditPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		// The audit drainer writes one event per call and waits for it, so
		// batching would only add latency to every event.
		BatchSize:              1,
		BatchTimeout:           time.Millisecond,
		WriteTimeout:           5 * time.Second,
		AllowAutoTopicCreation: false,
	}
	return &AuditPublisher{writer: w, topic: cfg.KafkaTopic}
}

func (p *AuditPublisher) Name() string { return "kafka" }

func (p *AuditPublisher) Write(ctx context.Context, entry *domain.AuditLog) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.TargetID),
		Value: value,
		Time:  entry.OccurredAt,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
			{Key: "target_type", Value: []byte(entry.TargetType)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing audit entry to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and releases broker connections.
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
