package models

import "time"

// DeviceCredential is the record an MQTT client authenticates against.
// TokenLookup is a deterministic peppered digest of the plaintext token and
// is unique/indexed; TokenHash is a salted KDF output, non-deterministic and
// verifiable only by supplying the plaintext. The plaintext itself is never
// persisted.
type DeviceCredential struct {
	ID          int64
	TenantID    int64
	DeviceID    string
	TokenHash   string
	TokenLookup string
	Name        string
	Labels      []string
	Notes       string
	ExpiresAt   *time.Time
	CreatedAt   time.Time
}

// Expired reports whether the credential's expiry, if set, is in the past
// relative to now.
func (c *DeviceCredential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}
