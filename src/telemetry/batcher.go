package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marianofino/pocket-mqtt/src/models"
)

const (
	// DefaultMaxBufferSize is N from §4.7.
	DefaultMaxBufferSize = 100
	// DefaultFlushInterval is T from §4.7.
	DefaultFlushInterval = 2000 * time.Millisecond
	// DefaultMaxRetries is R from §4.7.
	DefaultMaxRetries = 3
)

// Store is the persistence sink the batcher flushes batches into.
type Store interface {
	InsertBatch(ctx context.Context, records []models.TelemetryRecord) error
}

// Message is one accepted publish awaiting persistence.
type Message struct {
	TenantID  int64
	Topic     string
	Payload   string
	Timestamp time.Time
}

// Config holds the batcher's size/time/retry parameters.
type Config struct {
	MaxBufferSize int
	FlushInterval time.Duration
	MaxRetries    int
}

func (c Config) withDefaults() Config {
	if c.MaxBufferSize <= 0 {
		c.MaxBufferSize = DefaultMaxBufferSize
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// Batcher is an in-memory, size- and time-triggered batch writer. A single
// mutex guards the buffer, the in-progress flag, and the retry counter; the
// buffer swap in Flush is this mutex's single linearization point between
// submitters and the flusher (§5).
type Batcher struct {
	cfg   Config
	store Store
	log   *slog.Logger

	mu         sync.Mutex
	buffer     []Message
	inFlight   bool
	retryCount int
	running    bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a Batcher. It does not start the periodic flusher; call
// Start for that.
func New(store Store, cfg Config, log *slog.Logger) *Batcher {
	if log == nil {
		log = slog.Default()
	}
	return &Batcher{
		cfg:   cfg.withDefaults(),
		store: store,
		log:   log.With("component", "telemetry-batcher"),
	}
}

// Start marks the batcher running and launches the periodic flush
// scheduler. It is not safe to call Start twice without an intervening
// Stop.
func (b *Batcher) Start() {
	b.mu.Lock()
	b.running = true
	b.mu.Unlock()

	b.stopCh = make(chan struct{})
	b.wg.Add(1)
	go b.runScheduler()
}

func (b *Batcher) runScheduler() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Flush(context.Background()); err != nil {
				b.log.Error("scheduled flush failed", "error", err)
			}
		case <-b.stopCh:
			return
		}
	}
}

// Submit appends message to the buffer. If the buffer has just reached
// maxBufferSize and no flush is in progress, Submit triggers a flush and
// awaits its completion; otherwise it returns immediately (§4.7).
func (b *Batcher) Submit(ctx context.Context, msg Message) error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return ErrStopped
	}
	if msg.TenantID <= 0 {
		b.mu.Unlock()
		return ErrInvalidArgument
	}

	b.buffer = append(b.buffer, msg)
	shouldFlush := len(b.buffer) >= b.cfg.MaxBufferSize && !b.inFlight
	b.mu.Unlock()

	if shouldFlush {
		return b.Flush(ctx)
	}
	return nil
}

// Flush is idempotent and single-flight: a call that finds a flush already
// in progress, or an empty buffer, is a no-op. On success the retry counter
// resets; on failure it increments, and the batch is either re-queued ahead
// of newer arrivals (retryCount < maxRetries) or dropped with a log line
// (retryCount == maxRetries), bounding memory growth under a persistently
// failing store (§4.7).
func (b *Batcher) Flush(ctx context.Context) error {
	b.mu.Lock()
	if b.inFlight || len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	b.inFlight = true
	batch := b.buffer
	b.buffer = nil
	b.mu.Unlock()

	err := b.store.InsertBatch(ctx, toRecords(batch))

	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.retryCount = 0
		b.inFlight = false
		return nil
	}

	b.retryCount++
	if b.retryCount < b.cfg.MaxRetries {
		b.buffer = append(batch, b.buffer...)
		b.inFlight = false
		b.log.Error("telemetry batch insert failed, will retry",
			"error", err, "batchSize", len(batch), "attempt", b.retryCount)
		return fmt.Errorf("insert batch failed, queued for retry: %w", err)
	}

	dropped := len(batch)
	b.retryCount = 0
	b.inFlight = false
	b.log.Error("dropping telemetry batch after exhausting retries",
		"error", err, "droppedCount", dropped, "maxRetries", b.cfg.MaxRetries)
	return fmt.Errorf("dropped %d messages after %d retries: %w", dropped, b.cfg.MaxRetries, err)
}

// Stop marks the batcher as no longer running, cancels the periodic
// scheduler, and performs one final Flush to drain the buffer. If that
// final flush fails, the retry/drop envelope in Flush still applies; Stop
// itself returns after a single attempt.
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()

	if b.stopCh != nil {
		close(b.stopCh)
		b.wg.Wait()
	}

	return b.Flush(ctx)
}

func toRecords(batch []Message) []models.TelemetryRecord {
	records := make([]models.TelemetryRecord, len(batch))
	for i, m := range batch {
		records[i] = models.TelemetryRecord{
			TenantID:  m.TenantID,
			Topic:     m.Topic,
			Payload:   m.Payload,
			Timestamp: m.Timestamp,
		}
	}
	return records
}
