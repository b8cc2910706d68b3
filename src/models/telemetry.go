package models

import "time"

// TelemetryRecord is a single accepted MQTT publish, already rewritten into
// its tenant namespace, produced exclusively by the telemetry batcher.
type TelemetryRecord struct {
	ID        int64
	TenantID  int64
	Topic     string
	Payload   string
	Timestamp time.Time
}
