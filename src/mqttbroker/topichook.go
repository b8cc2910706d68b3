package mqttbroker

import (
	"errors"
	"log/slog"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/marianofino/pocket-mqtt/src/session"
	"github.com/marianofino/pocket-mqtt/src/topic"
)

// TopicHook enforces tenant isolation (§4.5): it fails closed on any
// unauthenticated session, and rewrites every publish/subscribe topic into
// the connection's tenant namespace before the broker routes it.
type TopicHook struct {
	mqtt.HookBase
	sessions *session.Registry
	log      *slog.Logger
}

func NewTopicHook(sessions *session.Registry, log *slog.Logger) *TopicHook {
	if log == nil {
		log = slog.Default()
	}
	return &TopicHook{
		sessions: sessions,
		log:      log.With("component", "mqtt-topic-hook"),
	}
}

func (h *TopicHook) ID() string { return "pocket-mqtt-topic" }

func (h *TopicHook) Provides(b byte) bool {
	switch b {
	case mqtt.OnACLCheck, mqtt.OnPublish, mqtt.OnSubscribe:
		return true
	default:
		return false
	}
}

// OnACLCheck is the permission gate: an unauthenticated session is denied
// outright (defense in depth — the authenticator should already have
// rejected it), and a reserved-namespace topic is denied for both publish
// and subscribe.
func (h *TopicHook) OnACLCheck(cl *mqtt.Client, topicName string, write bool) bool {
	st, ok := h.sessions.Get(cl.ID)
	if !ok {
		h.log.Warn("denying packet from unauthenticated session", "client", cl.ID)
		return false
	}

	if _, err := topic.Rewrite(topicName, st.TenantID); err != nil {
		if errors.Is(err, topic.ErrReserved) {
			return false
		}
		h.log.Error("unexpected topic rewrite error in ACL check", "client", cl.ID, "error", err)
		return false
	}
	return true
}

// OnPublish rewrites the packet's topic into the session's tenant
// namespace. OnACLCheck has already denied unauthenticated sessions and
// reserved topics, so any error here is the must-not-happen case; it is
// handled by rejecting the packet rather than forwarding it unrewritten.
func (h *TopicHook) OnPublish(cl *mqtt.Client, pk packets.Packet) (packets.Packet, error) {
	st, ok := h.sessions.Get(cl.ID)
	if !ok {
		return pk, mqtt.ErrRejectPacket
	}

	rewritten, err := topic.Rewrite(pk.TopicName, st.TenantID)
	if err != nil {
		return pk, mqtt.ErrRejectPacket
	}

	pk.TopicName = rewritten
	return pk, nil
}

// OnSubscribe rewrites every filter in a SUBSCRIBE packet into the
// session's tenant namespace. A filter that fails to rewrite (reserved
// namespace) is left unchanged; OnACLCheck has already denied it per
// filter, so the broker will not grant a subscription on it regardless.
func (h *TopicHook) OnSubscribe(cl *mqtt.Client, pk packets.Packet) packets.Packet {
	st, ok := h.sessions.Get(cl.ID)
	if !ok {
		return pk
	}

	for i, sub := range pk.Filters {
		rewritten, err := topic.Rewrite(sub.Filter, st.TenantID)
		if err != nil {
			continue
		}
		pk.Filters[i].Filter = rewritten
	}
	return pk
}
