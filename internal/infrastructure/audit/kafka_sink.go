package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/ronl/business-api/internal/config"
	"github.com/ronl/business-api/internal/domain/models"
)

// MessageWriter is the subset of *kafka.Writer used by KafkaSink.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink streams audit entries to a Kafka topic, keyed by tenant so that one
// municipality's events stay ordered within a partition.
type KafkaSink struct {
	writer     MessageWriter
	signingKey string
}

// NewKafkaSink creates a sink writing to cfg.AuditTopic.
func NewKafkaSink(cfg config.KafkaConfig, signingKey string) *KafkaSink {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.AuditTopic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		BatchTimeout: cfg.BatchTimeout,
	}
	return NewKafkaSinkWithWriter(writer, signingKey)
}

// NewKafkaSinkWithWriter creates a sink on top of an existing writer.
func NewKafkaSinkWithWriter(writer MessageWriter, signingKey string) *KafkaSink {
	return &KafkaSink{writer: writer, signingKey: signingKey}
}

func (s *KafkaSink) Name() string { return "kafka" }

// Write publishes one entry as JSON.
func (s *KafkaSink) Write(ctx context.Context, entry *models.AuditLogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(entry.TenantID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "action", Value: []byte(entry.Action)},
			{Key: "request_id", Value: []byte(entry.RequestID)},
		},
	}
	if s.signingKey != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: SignatureHeader, Value: []byte(Sign(payload, s.signingKey))})
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish audit entry: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}
