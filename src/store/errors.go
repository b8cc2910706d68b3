// Package store implements the Postgres-backed persistence layer for
// tenants, device credentials, and telemetry, following the pgx pooling and
// error-wrapping conventions used throughout this codebase's data-access
// layer.
package store

import "errors"

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned when an insert violates a unique constraint
// (tenant name, tenant API key, device ID, or token lookup digest).
var ErrAlreadyExists = errors.New("record already exists")

const uniqueViolationCode = "23505"
