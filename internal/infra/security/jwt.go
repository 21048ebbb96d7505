package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mohhit1230/Chat-App/internal/core/domain"
	"github.com/Mohhit1230/Chat-App/internal/core/port"
)

// ErrSecretMissing indicates no signing secret was configured.
var ErrSecretMissing = errors.New("jwt: signing secret not configured")

// SessionClaims is the JWT payload carried by session tokens.
type SessionClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// HMACVerifier verifies and issues HS256 session tokens with a shared secret.
type HMACVerifier struct {
	secret []byte
	leeway time.Duration
	now    func() time.Time
}

// NewHMACVerifier constructs a verifier for the supplied secret.
func NewHMACVerifier(secret string, leeway time.Duration) (*HMACVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrSecretMissing
	}
	if leeway < 0 {
		leeway = 0
	}
	return &HMACVerifier{
		secret: []byte(secret),
		leeway: leeway,
		now:    time.Now,
	}, nil
}

// WithClock overrides the verifier clock for deterministic testing.
func (v *HMACVerifier) WithClock(clock func() time.Time) *HMACVerifier {
	if clock != nil {
		v.now = clock
	}
	return v
}

// Verify checks the signature and lifetime of token and returns its claims.
// Expired tokens wrap domain.ErrTokenExpired; every other failure wraps domain.ErrTokenInvalid.
func (v *HMACVerifier) Verify(token string) (*domain.Claims, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, domain.ErrTokenInvalid
	}

	result := &domain.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
	}
	if claims.IssuedAt != nil {
		result.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		result.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return result, nil
}

// Sign issues an HS256 token for the supplied identity valid for ttl.
func (v *HMACVerifier) Sign(subject, email string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

var _ port.TokenVerifier = (*HMACVerifier)(nil)
