// Package mqttbroker wires the mochi-mqtt broker engine to the rest of the
// system: connection authentication, per-packet topic rewriting and
// authorization, the publish-to-batcher bridge, and server lifecycle.
package mqttbroker

import (
	"context"
	"log/slog"
	"time"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/marianofino/pocket-mqtt/src/security/crypto"
	"github.com/marianofino/pocket-mqtt/src/session"
	"github.com/marianofino/pocket-mqtt/src/store"
)

// AuthHook implements the CONNECT-time decision table of §4.3: a single
// bearer token carried as the MQTT username, empty password. Every failure
// path is indistinguishable from the client's point of view, to avoid a
// credential-enumeration oracle; distinguishing detail is only in the log.
type AuthHook struct {
	mqtt.HookBase
	devices  store.DeviceCredentialStore
	pepper   crypto.Pepper
	sessions *session.Registry
	log      *slog.Logger
}

func NewAuthHook(devices store.DeviceCredentialStore, pepper crypto.Pepper, sessions *session.Registry, log *slog.Logger) *AuthHook {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHook{
		devices:  devices,
		pepper:   pepper,
		sessions: sessions,
		log:      log.With("component", "mqtt-auth-hook"),
	}
}

func (h *AuthHook) ID() string { return "pocket-mqtt-auth" }

func (h *AuthHook) Provides(b byte) bool {
	switch b {
	case mqtt.OnConnectAuthenticate, mqtt.OnDisconnect:
		return true
	default:
		return false
	}
}

// OnConnectAuthenticate resolves the CONNECT-supplied username as a device
// token. Any error during lookup or verification fails closed: the client
// is rejected the same way as an unknown or expired credential.
func (h *AuthHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	username := string(cl.Properties.Username)
	password := pk.Connect.Password

	if username == "" {
		h.log.Warn("rejecting connect with no username", "client", cl.ID)
		return false
	}
	if len(password) > 0 {
		h.log.Warn("rejecting connect with non-empty password", "client", cl.ID)
		return false
	}

	lookup := crypto.LookupDigest(username, h.pepper)

	cred, err := h.devices.FindByTokenLookup(context.Background(), lookup)
	if err != nil {
		h.log.Warn("rejecting connect: credential lookup failed", "client", cl.ID, "error", err)
		return false
	}

	if !crypto.VerifySecret(username, cred.TokenHash) {
		h.log.Warn("rejecting connect: verification failed", "client", cl.ID)
		return false
	}

	if cred.Expired(time.Now()) {
		h.log.Warn("rejecting connect: credential expired", "client", cl.ID, "deviceId", cred.DeviceID)
		return false
	}

	h.sessions.Set(cl.ID, session.State{TenantID: cred.TenantID, DeviceID: cred.DeviceID})
	h.log.Info("connect accepted", "client", cl.ID, "tenantId", cred.TenantID, "deviceId", cred.DeviceID)
	return true
}

// OnDisconnect removes the session so the registry does not grow without
// bound across the broker's lifetime.
func (h *AuthHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	h.sessions.Delete(cl.ID)
}
