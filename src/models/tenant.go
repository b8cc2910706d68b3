// Package models defines the persisted record types shared by the store,
// bootstrap, and telemetry subsystems.
package models

import "time"

// Tenant is an isolation boundary owning devices and telemetry. Name and
// APIKey are both unique keys; a tenant is created once by the bootstrap
// protocol and never mutated afterward.
type Tenant struct {
	ID        int64
	Name      string
	APIKey    string
	CreatedAt time.Time
}
