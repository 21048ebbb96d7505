package port

import (
	"context"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishTokenRevoked(ctx context.Context, event domain.TokenRevokedEvent) error
}
