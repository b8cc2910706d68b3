package mqttbroker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/marianofino/pocket-mqtt/src/security/validation"
	"github.com/marianofino/pocket-mqtt/src/session"
	"github.com/marianofino/pocket-mqtt/src/telemetry"
)

// Batcher is the subset of telemetry.Batcher the bridge depends on.
type Batcher interface {
	Submit(ctx context.Context, msg telemetry.Message) error
}

// BridgeHook is the broker→batcher glue of §4.6. It runs after TopicHook in
// registration order, so by the time it sees a publish the topic has
// already been rewritten into the tenant namespace.
type BridgeHook struct {
	mqtt.HookBase
	sessions      *session.Registry
	batcher       Batcher
	maxPayloadLen int
	log           *slog.Logger
}

func NewBridgeHook(sessions *session.Registry, batcher Batcher, maxPayloadLen int, log *slog.Logger) *BridgeHook {
	if log == nil {
		log = slog.Default()
	}
	return &BridgeHook{
		sessions:      sessions,
		batcher:       batcher,
		maxPayloadLen: maxPayloadLen,
		log:           log.With("component", "mqtt-bridge-hook"),
	}
}

func (h *BridgeHook) ID() string { return "pocket-mqtt-bridge" }

func (h *BridgeHook) Provides(b byte) bool {
	return b == mqtt.OnPublish
}

// OnPublish forwards an accepted publish to the telemetry batcher. It never
// mutates or rejects the packet; every guard here only keeps the publish out
// of the batcher (logged, except for a "$"-prefixed topic, which is skipped
// silently), since by this point the packet has already been authorized and
// routed.
func (h *BridgeHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	if strings.HasPrefix(pk.TopicName, "$") {
		return pk, nil
	}

	if pk.TopicName == "" || len(pk.Payload) == 0 {
		h.log.Warn("dropping publish with empty topic or payload", "client", cl.ID)
		return pk, nil
	}

	if err := validation.ValidatePayloadSize(len(pk.Payload), h.maxPayloadLen); err != nil {
		h.log.Warn("dropping oversized publish", "client", cl.ID, "error", err)
		return pk, nil
	}

	st, ok := h.sessions.Get(cl.ID)
	if !ok {
		h.log.Error("dropping publish from session with no tenant stamp", "client", cl.ID)
		return pk, nil
	}

	msg := telemetry.Message{
		TenantID:  st.TenantID,
		Topic:     pk.TopicName,
		Payload:   string(pk.Payload),
		Timestamp: time.Now(),
	}

	// correlationID ties this async submit back to the publish that spawned
	// it, since the goroutine below outlives OnPublish's own call frame.
	correlationID := uuid.NewString()

	go func() {
		if err := h.batcher.Submit(context.Background(), msg); err != nil {
			h.log.Error("failed to submit telemetry to batcher",
				"client", cl.ID, "topic", msg.Topic, "correlationId", correlationID, "error", err)
		}
	}()

	return pk, nil
}
