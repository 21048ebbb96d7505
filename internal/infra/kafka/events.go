package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
	"github.com/Mohhit1230/Chat-App/internal/infra/config"
)

const schemaVersion = "1.0"

// TokenRevokedEventType names revocation events; the topic is the prefixed form.
const TokenRevokedEventType = "token.revoked"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   json.RawMessage  `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type tokenRevokedPayload struct {
	Key       string    `json:"key"`
	Subject   string    `json:"subject,omitempty"`
	Reason    string    `json:"reason"`
	Origin    string    `json:"origin,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   body,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Key:   sarama.StringEncoder(id),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishTokenRevoked publishes chat.token.revoked events.
func (p *EventPublisher) PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error {
	payload := tokenRevokedPayload{
		Key:       event.Key,
		Subject:   event.Subject,
		Reason:    event.Reason,
		Origin:    event.Origin,
		ExpiresAt: event.ExpiresAt.UTC(),
		RevokedAt: event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, TokenRevokedEventType, event.Subject, event.RevokedAt, payload)
}

// decodeTokenRevoked parses an envelope produced by PublishTokenRevoked.
func decodeTokenRevoked(value []byte) (domain.TokenRevokedEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return domain.TokenRevokedEvent{}, fmt.Errorf("decode event envelope: %w", err)
	}
	if envelope.EventType != TokenRevokedEventType {
		return domain.TokenRevokedEvent{}, fmt.Errorf("unexpected event type %q", envelope.EventType)
	}

	var payload tokenRevokedPayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return domain.TokenRevokedEvent{}, fmt.Errorf("decode token revoked payload: %w", err)
	}

	revokedAt := payload.RevokedAt
	if revokedAt.IsZero() {
		revokedAt = envelope.Timestamp
	}

	return domain.TokenRevokedEvent{
		EventID:   envelope.EventID,
		Key:       payload.Key,
		Subject:   payload.Subject,
		Reason:    payload.Reason,
		Origin:    payload.Origin,
		ExpiresAt: payload.ExpiresAt,
		RevokedAt: revokedAt,
	}, nil
}

var _ port.EventPublisher = (*EventPublisher)(nil)
