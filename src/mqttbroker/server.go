package mqttbroker

import (
	"errors"
	"fmt"
	"log/slog"

	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/marianofino/pocket-mqtt/src/security/crypto"
	"github.com/marianofino/pocket-mqtt/src/session"
	"github.com/marianofino/pocket-mqtt/src/store"
)

// Config carries the server's network and payload-validation parameters.
type Config struct {
	Port          int
	WSPort        int
	MaxPayloadLen int
}

// Server owns the mochi-mqtt engine, its listeners, and the hooks binding
// it to authentication, topic isolation, and the telemetry bridge (§4.9).
type Server struct {
	cfg      Config
	engine   *mqtt.Server
	sessions *session.Registry
	log      *slog.Logger
}

// New constructs a Server. Hooks are registered in New, before any
// listener is bound in Start, so no packet can traverse an un-hooked
// broker engine.
func New(cfg Config, devices store.DeviceCredentialStore, pepper crypto.Pepper, batcher Batcher, log *slog.Logger) (*Server, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "mqtt-server")

	sessions := session.NewRegistry()
	engine := mqtt.New(nil)

	if err := engine.AddHook(NewAuthHook(devices, pepper, sessions, log), nil); err != nil {
		return nil, fmt.Errorf("failed to register auth hook: %w", err)
	}
	if err := engine.AddHook(NewTopicHook(sessions, log), nil); err != nil {
		return nil, fmt.Errorf("failed to register topic hook: %w", err)
	}
	maxPayload := cfg.MaxPayloadLen
	if maxPayload <= 0 {
		maxPayload = 64 << 10
	}
	if err := engine.AddHook(NewBridgeHook(sessions, batcher, maxPayload, log), nil); err != nil {
		return nil, fmt.Errorf("failed to register bridge hook: %w", err)
	}

	return &Server{cfg: cfg, engine: engine, sessions: sessions, log: log}, nil
}

// Start binds the configured TCP (and, if WSPort is set, WebSocket)
// listener and begins serving. Hooks are already registered by New, so the
// engine is fully wired before the first connection can arrive.
func (s *Server) Start() error {
	port := s.cfg.Port
	if port <= 0 {
		port = 1883
	}
	addr := fmt.Sprintf(":%d", port)

	tcp := listeners.NewTCP(listeners.Config{ID: "pocket-mqtt-tcp", Address: addr})
	if err := s.engine.AddListener(tcp); err != nil {
		return fmt.Errorf("failed to bind mqtt listener on %s: %w", addr, err)
	}

	if s.cfg.WSPort > 0 {
		wsAddr := fmt.Sprintf(":%d", s.cfg.WSPort)
		ws := listeners.NewWebsocket(listeners.Config{ID: "pocket-mqtt-ws", Address: wsAddr})
		if err := s.engine.AddListener(ws); err != nil {
			return fmt.Errorf("failed to bind mqtt websocket listener on %s: %w", wsAddr, err)
		}
	}

	s.log.Info("mqtt server listening", "port", port, "wsPort", s.cfg.WSPort)
	return s.engine.Serve()
}

// Stop closes the broker engine, which refuses new connections and drains
// in-flight sessions (§4.9). It does not stop the telemetry batcher; the
// caller owns the batcher's lifetime and stops it after Stop returns, per
// the documented shutdown order.
func (s *Server) Stop() error {
	var errs []error
	if err := s.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close mqtt engine: %w", err))
	}
	return errors.Join(errs...)
}
