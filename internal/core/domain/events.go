package domain

import "time"

// TokenRevokedEvent represents the payload for chat.token.revoked messages.
// Key is the revocation store key, which equals the raw token unless key hashing is enabled.
type TokenRevokedEvent struct {
	EventID   string
	Key       string
	Subject   string
	Reason    string
	Origin    string
	ExpiresAt time.Time
	RevokedAt time.Time
}

// TTL returns how long peers should keep the revocation at the supplied time.
func (e TokenRevokedEvent) TTL(at time.Time) time.Duration {
	if e.ExpiresAt.IsZero() {
		return 0
	}
	left := e.ExpiresAt.Sub(at)
	if left < 0 {
		return 0
	}
	return left
}
