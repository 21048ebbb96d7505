package domain

import "time"

// DenyReason enumerates why the auth gate refused a request. Reasons are only
// logged and counted; every denial looks identical to the client.
type DenyReason string

const (
	DenyReasonMissingCredential  DenyReason = "missing_credential"
	DenyReasonRevoked            DenyReason = "revoked"
	DenyReasonInvalidSignature   DenyReason = "invalid_signature"
	DenyReasonExpired            DenyReason = "expired"
	DenyReasonBackendUnavailable DenyReason = "backend_unavailable"
)

// Claims is the decoded payload of a verified session token.
type Claims struct {
	Subject   string    `json:"sub,omitempty"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// Identity returns the most specific user identifier carried by the claims.
func (c Claims) Identity() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.Email
}

// RemainingLifetime returns how long the token stays valid after the supplied time.
// It returns zero when the token carries no expiry or has already expired.
func (c Claims) RemainingLifetime(at time.Time) time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	left := c.ExpiresAt.Sub(at)
	if left < 0 {
		return 0
	}
	return left
}

// AuthDecision is the outcome of evaluating a request's credentials.
type AuthDecision struct {
	Allowed     bool
	Claims      *Claims
	Token       string
	Reason      DenyReason
	ClearCookie bool
}

// Allow builds an allowing decision for the supplied token and claims.
func Allow(token string, claims *Claims) AuthDecision {
	return AuthDecision{Allowed: true, Claims: claims, Token: token}
}

// Deny builds a denying decision with the supplied reason.
func Deny(reason DenyReason) AuthDecision {
	return AuthDecision{Reason: reason}
}
