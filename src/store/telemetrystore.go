package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marianofino/pocket-mqtt/src/models"
)

// TelemetryStore persists batches of telemetry records. InsertBatch is the
// only write path; telemetry is never mutated once written (§3).
type TelemetryStore interface {
	InsertBatch(ctx context.Context, records []models.TelemetryRecord) error
}

// PgTelemetryStore is the Postgres-backed TelemetryStore, using pgx's
// CopyFrom for the bulk insert the batcher needs.
type PgTelemetryStore struct {
	pool *pgxpool.Pool
}

func NewPgTelemetryStore(pool *pgxpool.Pool) *PgTelemetryStore {
	return &PgTelemetryStore{pool: pool}
}

func (s *PgTelemetryStore) InsertBatch(ctx context.Context, records []models.TelemetryRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		rows[i] = []any{r.TenantID, r.Topic, r.Payload, r.Timestamp}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"telemetry"},
		[]string{"tenant_id", "topic", "payload", "timestamp"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to insert telemetry batch: %w", err)
	}
	return nil
}
