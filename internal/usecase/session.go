package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

// ErrTokenRequired indicates logout was attempted without a session token.
var ErrTokenRequired = errors.New("session token is required")

const logoutReason = "user_logout"

// TokenRevoker records revocations and exposes the store key derived from a token.
type TokenRevoker interface {
	Put(ctx context.Context, token string, ttl time.Duration) error
	Key(token string) string
}

// SessionService coordinates the logout workflow.
type SessionService struct {
	revoker    TokenRevoker
	events     port.EventPublisher
	logger     *zap.Logger
	defaultTTL time.Duration
	origin     string
	now        func() time.Time
}

// NewSessionService constructs a SessionService. defaultTTL applies to tokens
// whose claims carry no expiry.
func NewSessionService(revoker TokenRevoker, events port.EventPublisher, defaultTTL time.Duration, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	service := &SessionService{
		revoker:    revoker,
		events:     events,
		logger:     logger,
		defaultTTL: defaultTTL,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *SessionService) WithClock(clock func() time.Time) *SessionService {
	if clock != nil {
		s.now = clock
	}
	return s
}

// WithOrigin tags published events with the emitting instance identifier.
func (s *SessionService) WithOrigin(origin string) *SessionService {
	s.origin = strings.TrimSpace(origin)
	return s
}

// Logout revokes token for the rest of its lifetime and announces the revocation to peers.
// A failed announcement is logged, not returned: the local revocation already holds.
func (s *SessionService) Logout(ctx context.Context, token string, claims *domain.Claims) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenRequired
	}

	now := s.now()
	ttl := s.defaultTTL
	if claims != nil {
		if left := claims.RemainingLifetime(now); left > 0 {
			ttl = left
		}
	}

	if err := s.revoker.Put(ctx, token, ttl); err != nil {
		return fmt.Errorf("revoke session token: %w", err)
	}

	if s.events == nil {
		return nil
	}

	event := domain.TokenRevokedEvent{
		EventID:   uuid.NewString(),
		Key:       s.revoker.Key(token),
		Reason:    logoutReason,
		Origin:    s.origin,
		ExpiresAt: now.Add(ttl),
		RevokedAt: now,
	}
	if claims != nil {
		event.Subject = claims.Identity()
	}

	if err := s.events.PublishTokenRevoked(ctx, event); err != nil {
		s.logger.Warn("publish token revoked event failed",
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
	}
	return nil
}
