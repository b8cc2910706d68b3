// Package crypto implements the device-credential and bootstrap-token
// primitives shared by the authenticator and bootstrap subsystems: a
// memory-hard secret hash, a deterministic peppered lookup digest, and
// constant-time comparisons for both.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 14
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 64
	saltLen      = 16
)

// HashSecret produces a verifier string for the plaintext s: a random salt
// and the scrypt-derived key, encoded as "{saltHex}${keyHex}". Two calls for
// the same plaintext yield different verifier strings (the salt differs) but
// both verify true against the original plaintext.
func HashSecret(s string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	key, err := scrypt.Key([]byte(s), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(key), nil
}

// VerifySecret checks plaintext s against a verifier string produced by
// HashSecret. A malformed verifier returns false, never an error: callers
// must not be able to distinguish "bad verifier" from "wrong secret".
func VerifySecret(s, verifier string) bool {
	saltHex, keyHex, ok := strings.Cut(verifier, "$")
	if !ok {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(keyHex)
	if err != nil {
		return false
	}

	got, err := scrypt.Key([]byte(s), salt, scryptN, scryptR, scryptP, len(want))
	if err != nil {
		return false
	}

	return ConstantTimeEqual(got, want)
}

// LookupDigest computes the deterministic peppered SHA-256 digest of s, used
// as an indexed database key so a CONNECT can locate a credential without
// scanning every row. Identical (s, pepper) pairs always produce the same
// digest.
func LookupDigest(s string, pepper Pepper) string {
	h := sha256.Sum256([]byte(s + pepper.String()))
	return hex.EncodeToString(h[:])
}

// ConstantTimeEqual compares two byte slices without leaking timing
// information about where they first differ. Unequal lengths are rejected
// up front without calling the constant-time primitive, which otherwise
// panics on mismatched-length inputs.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ConstantTimeEqualString is the string-typed convenience wrapper around
// ConstantTimeEqual, used for hex-digest comparisons (bootstrap tokens).
func ConstantTimeEqualString(a, b string) bool {
	return ConstantTimeEqual([]byte(a), []byte(b))
}

// GenerateAPIKey returns 256 random bits, hex-encoded, suitable as a tenant
// API key.
func GenerateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
