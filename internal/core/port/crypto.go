package port

import "github.com/Mohhit1230/Chat-App/internal/core/domain"

// TokenVerifier checks a session token's signature and lifetime and decodes its claims.
// Failures wrap domain.ErrTokenExpired or domain.ErrTokenInvalid.
type TokenVerifier interface {
	Verify(token string) (*domain.Claims, error)
}
