package usecase

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
	"github.com/Mohhit1230/Chat-App/internal/infra/logger"
)

const bearerPrefix = "Bearer "

// Credentials carries the raw credential sources of a request.
type Credentials struct {
	CookieToken   string
	Authorization string
}

// Token returns the candidate session token, preferring the cookie over a
// Bearer Authorization header. Both are taken verbatim; a header whose
// remainder is empty or holds whitespace carries no token.
func (c Credentials) Token() (string, bool) {
	if c.CookieToken != "" {
		return c.CookieToken, true
	}
	if !strings.HasPrefix(c.Authorization, bearerPrefix) {
		return "", false
	}
	token := strings.TrimPrefix(c.Authorization, bearerPrefix)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// AuthGate decides whether a request's credential may be used.
type AuthGate struct {
	store    port.RevocationStore
	verifier port.TokenVerifier
	metrics  port.RevocationMetrics
	logger   *zap.Logger
}

// NewAuthGate constructs a gate over the supplied revocation store and verifier.
func NewAuthGate(store port.RevocationStore, verifier port.TokenVerifier, logger *zap.Logger) *AuthGate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthGate{store: store, verifier: verifier, logger: logger}
}

// WithMetrics injects decision telemetry.
func (g *AuthGate) WithMetrics(metrics port.RevocationMetrics) *AuthGate {
	g.metrics = metrics
	return g
}

// Evaluate runs the revocation check before signature verification so a
// revoked token is refused even when it would otherwise verify.
func (g *AuthGate) Evaluate(ctx context.Context, creds Credentials) domain.AuthDecision {
	decision := g.evaluate(ctx, creds)
	if g.metrics != nil {
		g.metrics.ObserveDecision(decision)
	}
	return decision
}

func (g *AuthGate) evaluate(ctx context.Context, creds Credentials) domain.AuthDecision {
	token, ok := creds.Token()
	if !ok {
		g.logDenied(ctx, domain.DenyReasonMissingCredential, "", nil)
		return domain.Deny(domain.DenyReasonMissingCredential)
	}

	revoked, err := g.store.IsRevoked(ctx, token)
	if err != nil {
		g.logDenied(ctx, domain.DenyReasonBackendUnavailable, token, err)
		return domain.Deny(domain.DenyReasonBackendUnavailable)
	}
	if revoked {
		g.logDenied(ctx, domain.DenyReasonRevoked, token, nil)
		decision := domain.Deny(domain.DenyReasonRevoked)
		decision.ClearCookie = true
		return decision
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		reason := domain.DenyReasonInvalidSignature
		if errors.Is(err, domain.ErrTokenExpired) {
			reason = domain.DenyReasonExpired
		}
		g.logDenied(ctx, reason, token, err)
		return domain.Deny(reason)
	}

	return domain.Allow(token, claims)
}

func (g *AuthGate) logDenied(ctx context.Context, reason domain.DenyReason, token string, err error) {
	fields := []zap.Field{
		zap.String("reason", string(reason)),
		zap.String("request_id", logger.RequestIDFromContext(ctx)),
	}
	if token != "" {
		fields = append(fields, zap.String("token", logger.MaskToken(token)))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if reason == domain.DenyReasonBackendUnavailable {
		g.logger.Warn("auth denied", fields...)
		return
	}
	g.logger.Info("auth denied", fields...)
}
