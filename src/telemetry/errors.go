// Package telemetry implements the bounded in-memory batcher that buffers
// accepted MQTT publishes and flushes them to the telemetry store in
// batches, with retry-then-drop failure recovery and a graceful drain on
// shutdown (§4.7).
package telemetry

import "errors"

// ErrStopped is returned by Submit once the batcher has been stopped.
var ErrStopped = errors.New("batcher stopped")

// ErrInvalidArgument is returned by Submit for a message with tenantId <= 0.
var ErrInvalidArgument = errors.New("invalid argument")
