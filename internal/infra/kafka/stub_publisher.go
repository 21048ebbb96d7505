package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
	"github.com/Mohhit1230/Chat-App/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{logger: log}
}

// PublishTokenRevoked logs chat.token.revoked events. The key is masked since
// it may be the raw token.
func (p *StubPublisher) PublishTokenRevoked(_ context.Context, event domain.TokenRevokedEvent) error {
	at := event.RevokedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", TokenRevokedEventType),
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.Subject),
		zap.String("key", logger.MaskToken(event.Key)),
		zap.String("reason", event.Reason),
		zap.Time("expires_at", event.ExpiresAt.UTC()),
		zap.Time("timestamp", at.UTC()),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
