package mqttbroker

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	mqttc "github.com/eclipse/paho.mqtt.golang"
	mqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/marianofino/pocket-mqtt/src/models"
	"github.com/marianofino/pocket-mqtt/src/security/crypto"
	"github.com/marianofino/pocket-mqtt/src/session"
	"github.com/marianofino/pocket-mqtt/src/store"
	"github.com/marianofino/pocket-mqtt/src/telemetry"
)

// fakeDeviceStore is an in-memory stand-in for store.DeviceCredentialStore,
// indexed by token lookup digest the same way the Postgres store is
// indexed by its unique column.
type fakeDeviceStore struct {
	byLookup map[string]*models.DeviceCredential
}

func newFakeDeviceStore() *fakeDeviceStore {
	return &fakeDeviceStore{byLookup: make(map[string]*models.DeviceCredential)}
}

func (s *fakeDeviceStore) addToken(t *testing.T, pepper crypto.Pepper, tenantID int64, deviceID, plaintext string) {
	t.Helper()
	hash, err := crypto.HashSecret(plaintext)
	if err != nil {
		t.Fatalf("hash secret: %v", err)
	}
	lookup := crypto.LookupDigest(plaintext, pepper)
	s.byLookup[lookup] = &models.DeviceCredential{
		TenantID:    tenantID,
		DeviceID:    deviceID,
		TokenHash:   hash,
		TokenLookup: lookup,
	}
}

// rotate replaces the credential for deviceID with a fresh plaintext,
// removing the old lookup entry entirely (an admin rotation, §8 scenario 4).
func (s *fakeDeviceStore) rotate(t *testing.T, pepper crypto.Pepper, tenantID int64, deviceID, newPlaintext string) {
	t.Helper()
	for lookup, c := range s.byLookup {
		if c.DeviceID == deviceID {
			delete(s.byLookup, lookup)
		}
	}
	s.addToken(t, pepper, tenantID, deviceID, newPlaintext)
}

func (s *fakeDeviceStore) FindByTokenLookup(ctx context.Context, lookup string) (*models.DeviceCredential, error) {
	c, ok := s.byLookup[lookup]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (s *fakeDeviceStore) FindByDeviceID(ctx context.Context, deviceID string) (*models.DeviceCredential, error) {
	for _, c := range s.byLookup {
		if c.DeviceID == deviceID {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeDeviceStore) Create(ctx context.Context, c *models.DeviceCredential) (*models.DeviceCredential, error) {
	s.byLookup[c.TokenLookup] = c
	return c, nil
}

func (s *fakeDeviceStore) Update(ctx context.Context, id int64, patch store.DeviceCredentialPatch) (*models.DeviceCredential, error) {
	return nil, store.ErrNotFound
}

func (s *fakeDeviceStore) Delete(ctx context.Context, id int64) error { return nil }

func (s *fakeDeviceStore) List(ctx context.Context, page store.Pagination) ([]*models.DeviceCredential, error) {
	return nil, nil
}

func (s *fakeDeviceStore) Count(ctx context.Context) (int64, error) { return int64(len(s.byLookup)), nil }

// fakeBatcher records submitted telemetry messages for assertion.
type fakeBatcher struct {
	mu   sync.Mutex
	msgs []telemetry.Message
}

func newFakeBatcher() *fakeBatcher {
	return &fakeBatcher{}
}

func (b *fakeBatcher) Submit(ctx context.Context, msg telemetry.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return nil
}

func (b *fakeBatcher) snapshot() []telemetry.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]telemetry.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

type testBroker struct {
	addr    string
	devices *fakeDeviceStore
	batcher *fakeBatcher
	pepper  crypto.Pepper
	engine  *mqtt.Server
}

func startTestBroker(t *testing.T) *testBroker {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("cannot get free port: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	port := addr[strings.LastIndex(addr, ":")+1:]

	devices := newFakeDeviceStore()
	batcher := newFakeBatcher()
	pepper := crypto.NewPepper("test-pepper")
	sessions := session.NewRegistry()

	engine := mqtt.New(nil)
	if err := engine.AddHook(NewAuthHook(devices, pepper, sessions, nil), nil); err != nil {
		t.Fatalf("add auth hook: %v", err)
	}
	if err := engine.AddHook(NewTopicHook(sessions, nil), nil); err != nil {
		t.Fatalf("add topic hook: %v", err)
	}
	if err := engine.AddHook(NewBridgeHook(sessions, batcher, 64<<10, nil), nil); err != nil {
		t.Fatalf("add bridge hook: %v", err)
	}

	tcp := listeners.NewTCP(listeners.Config{ID: "test-tcp", Address: ":" + port})
	if err := engine.AddListener(tcp); err != nil {
		t.Fatalf("add listener: %v", err)
	}

	go func() { _ = engine.Serve() }()
	time.Sleep(100 * time.Millisecond)

	t.Cleanup(func() { _ = engine.Close() })

	return &testBroker{addr: addr, devices: devices, batcher: batcher, pepper: pepper, engine: engine}
}

func mustConnect(t *testing.T, addr, clientID, username, password string) (mqttc.Client, error) {
	t.Helper()
	opts := mqttc.NewClientOptions().AddBroker("tcp://" + addr)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
	}
	if password != "" {
		opts.SetPassword(password)
	}
	opts.SetConnectTimeout(3 * time.Second)
	cl := mqttc.NewClient(opts)
	token := cl.Connect()
	ok := token.WaitTimeout(3 * time.Second)
	if !ok {
		return cl, context.DeadlineExceeded
	}
	return cl, token.Error()
}
