package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"cohort/internal/platform/metrics"
)

// Stream mirrors accepted audit records to a Kafka topic for downstream
// consumers (reporting, SIEM). The durable trail is the store; the stream is
// an operational fan-out with fire-and-forget semantics: a full buffer or a
// failed publish drops the mirror copy and counts it, never the record
// itself.
type Stream struct {
	client  *kgo.Client
	topic   string
	inbox   chan Record
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const streamBufferSize = 1024

// NewStream connects a Kafka producer for the audit fan-out.
func NewStream(brokers []string, topic string, logger *slog.Logger, m *metrics.Metrics) (*Stream, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &Stream{
		client:  client,
		topic:   topic,
		inbox:   make(chan Record, streamBufferSize),
		logger:  logger,
		metrics: m,
	}, nil
}

// Enqueue hands a record to the background publisher without blocking the
// business operation.
func (s *Stream) Enqueue(record Record) {
	select {
	case s.inbox <- record:
	default:
		s.metrics.AuditStreamDropped.Inc()
	}
}

// Run consumes the inbox and publishes until the context is cancelled.
func (s *Stream) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case record := <-s.inbox:
			s.publish(ctx, record)
		}
	}
}

func (s *Stream) publish(ctx context.Context, record Record) {
	payload, err := json.Marshal(streamPayload(record))
	if err != nil {
		s.metrics.AuditStreamDropped.Inc()
		s.logger.ErrorContext(ctx, "failed to marshal audit record for stream", "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	results := s.client.ProduceSync(pubCtx, &kgo.Record{
		Key:   []byte(record.EntityID),
		Value: payload,
	})
	if err := results.FirstErr(); err != nil {
		s.metrics.AuditStreamDropped.Inc()
		s.logger.WarnContext(ctx, "audit stream publish failed", "record_id", record.ID.String(), "error", err)
	}
}

// Close flushes pending produces and releases the client.
func (s *Stream) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.client.Flush(ctx)
	s.client.Close()
}

// payload uses snake_case field names for cross-language consumers.
type payload struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entity_type"`
	EntityID   string                 `json:"entity_id"`
	Action     string                 `json:"action"`
	ActorID    string                 `json:"actor_id"`
	Timestamp  string                 `json:"timestamp"`
	Changes    map[string]FieldChange `json:"changes,omitempty"`
	Metadata   map[string]string      `json:"metadata,omitempty"`
}

func streamPayload(record Record) payload {
	return payload{
		ID:         record.ID.String(),
		EntityType: record.EntityType,
		EntityID:   record.EntityID,
		Action:     string(record.Action),
		ActorID:    record.ActorID,
		Timestamp:  record.Timestamp.Format(time.RFC3339Nano),
		Changes:    record.Changes,
		Metadata:   record.Metadata,
	}
}
