// Package audit records who did what to which catalog.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Audited actions.
const (
	ActionPublish   = "publish"
	ActionRepublish = "republish"
	ActionMigrate   = "migrate"
	ActionTerminate = "terminate"
)

// Entry is one audit trail record.
type Entry struct {
	EventID     string    `json:"event_id"`
	CreatedAt   time.Time `json:"created_at"`
	TrackingID  string    `json:"tracking_id"`
	Action      string    `json:"action"`
	Processor   string    `json:"processor"`
	Requester   string    `json:"requester"`
	PublishID   string    `json:"publish_id,omitempty"`
	CatalogCode string    `json:"catalog_code"`
	Status      string    `json:"status"`
}

// NewEntry fills in the event id and creation time.
func NewEntry(action, catalogCode, status string) Entry {
	return Entry{
		EventID:     uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		Action:      action,
		CatalogCode: catalogCode,
		Status:      status,
	}
}

// Sink stores audit entries.
type Sink interface {
	Write(ctx context.Context, entry Entry) error
	Close() error
}

// LogSink writes entries to a zerolog logger.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a sink that logs every entry at info level.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Write(ctx context.Context, e Entry) error {
	s.log.Info().
		Str("event_id", e.EventID).
		Time("created_at", e.CreatedAt).
		Str("tracking_id", e.TrackingID).
		Str("action", e.Action).
		Str("processor", e.Processor).
		Str("requester", e.Requester).
		Str("publish_id", e.PublishID).
		Str("catalog_code", e.CatalogCode).
		Str("status", e.Status).
		Msg("Audit entry")
	return nil
}

func (s *LogSink) Close() error {
	return nil
}

// messageWriter is the part of kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaSink publishes entries to a kafka topic keyed by catalog code.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink creates a kafka sink.
func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: timeout,
		ReadTimeout:  timeout,
	}
	return &KafkaSink{writer: writer, topic: cfg.Topic}
}

func (s *KafkaSink) Write(ctx context.Context, e Entry) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.CatalogCode),
		Value: value,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "tracking_id", Value: []byte(e.TrackingID)},
			{Key: "action", Value: []byte(e.Action)},
		},
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write audit entry to kafka topic %s: %w", s.topic, err)
	}
	return nil
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Emitter fills processor details and never lets a sink failure escape.
type Emitter struct {
	sink      Sink
	processor string
	log       zerolog.Logger
}

// NewEmitter creates an emitter writing to sink. processor names the node.
func NewEmitter(sink Sink, processor string, log zerolog.Logger) *Emitter {
	return &Emitter{sink: sink, processor: processor, log: log.With().Str("component", "audit").Logger()}
}

// Emit writes e. Failures are logged.
func (em *Emitter) Emit(ctx context.Context, e Entry) {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Processor == "" {
		e.Processor = em.processor
	}
	if err := em.sink.Write(ctx, e); err != nil {
		em.log.Error().Err(err).
			Str("action", e.Action).
			Str("catalog_code", e.CatalogCode).
			Msg("Failed to write audit entry")
	}
}

// Close closes the underlying sink.
func (em *Emitter) Close() error {
	return em.sink.Close()
}
