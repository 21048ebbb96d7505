package domain

import "time"

// BackendMode identifies which revocation backend currently serves requests.
type BackendMode string

const (
	// BackendModeLive routes revocation lookups to the remote Redis store.
	BackendModeLive BackendMode = "live"
	// BackendModeDegraded routes revocation lookups to process-local memory.
	BackendModeDegraded BackendMode = "degraded"
)

// RevocationEntry records that a token identifier was revoked at InsertedAt for TTL.
type RevocationEntry struct {
	Identifier string
	InsertedAt time.Time
	TTL        time.Duration
}

// ExpiresAt returns the instant the entry stops revoking its identifier.
func (e RevocationEntry) ExpiresAt() time.Time {
	return e.InsertedAt.Add(e.TTL)
}

// IsActive reports whether the entry still revokes its identifier at the supplied time.
func (e RevocationEntry) IsActive(at time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return e.ExpiresAt().After(at)
}

// Remaining returns the TTL left at the supplied time, zero once expired.
func (e RevocationEntry) Remaining(at time.Time) time.Duration {
	left := e.ExpiresAt().Sub(at)
	if left < 0 {
		return 0
	}
	return left
}
