package port

import (
	"context"
	"time"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
)

// RevocationBackend stores revocation markers keyed by token identifier.
// Absence is never an error: IsRevoked reports false for unknown keys.
type RevocationBackend interface {
	Put(ctx context.Context, key string, ttl time.Duration) error
	IsRevoked(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RemoteRevocationBackend is a networked backend whose health can be probed and which owns a connection.
type RemoteRevocationBackend interface {
	RevocationBackend
	HealthCheck(ctx context.Context) error
	Close() error
}

// LocalRevocationBackend is a process-local backend able to enumerate and sweep its entries.
type LocalRevocationBackend interface {
	RevocationBackend
	Entries() []domain.RevocationEntry
	Prune(now time.Time) int
}

// RevocationStore is the token-facing revocation API consumed by the auth gate and logout flow.
type RevocationStore interface {
	Put(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	Delete(ctx context.Context, token string) error
}

// RevocationMetrics captures telemetry hooks for revocation decisions and failover.
type RevocationMetrics interface {
	ObserveDecision(decision domain.AuthDecision)
	ObserveTransition(from, to domain.BackendMode)
	SetMode(mode domain.BackendMode)
}
