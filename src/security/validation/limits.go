package validation

import "fmt"

// DefaultMaxPayloadSize is the default cap on a telemetry PUBLISH payload (§4.6).
const DefaultMaxPayloadSize = 64 << 10 // 64 KiB

// ValidatePayloadSize checks a payload length against maxSize.
func ValidatePayloadSize(size, maxSize int) error {
	if size > maxSize {
		return fmt.Errorf("payload exceeds maximum size: %d bytes (limit: %d)", size, maxSize)
	}
	return nil
}
