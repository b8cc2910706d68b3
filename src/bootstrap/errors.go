// Package bootstrap implements the time-limited, peppered tenant bootstrap
// token protocol (§4.8): a public, rate-limited operation that verifies a
// short-lived proof of possession and, on success, creates a tenant and
// issues its long-lived API key.
package bootstrap

import "errors"

// ErrMalformed is returned for a name failing its grammar or a token that
// does not parse as "{timestampMs}:{hexDigest}".
var ErrMalformed = errors.New("malformed bootstrap request")

// ErrUnauthorized is returned when the token's hash does not match or its
// timestamp falls outside the acceptance window.
var ErrUnauthorized = errors.New("bootstrap token invalid or expired")

// ErrAlreadyExists is returned on a tenant-name conflict.
var ErrAlreadyExists = errors.New("tenant name already exists")

// ErrRateLimited is returned when a client IP exceeds the per-minute
// bootstrap rate limit.
var ErrRateLimited = errors.New("bootstrap rate limit exceeded")
