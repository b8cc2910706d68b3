package mqttbroker

import (
	"fmt"
	"testing"
	"time"

	mqttc "github.com/eclipse/paho.mqtt.golang"
)

func TestSingleCredentialAuth(t *testing.T) {
	tb := startTestBroker(t)
	tb.devices.addToken(t, tb.pepper, 1, "dev-1", "token-abc")

	// correct username, empty password -> accepted
	cl, err := mustConnect(t, tb.addr, "c1", "token-abc", "")
	if err != nil {
		t.Fatalf("expected connect to succeed: %v", err)
	}
	cl.Disconnect(100)

	// correct username, non-empty password -> rejected
	if _, err := mustConnect(t, tb.addr, "c2", "token-abc", "anything"); err == nil {
		t.Fatal("expected connect with non-empty password to be rejected")
	}

	// wrong username, empty password -> rejected
	if _, err := mustConnect(t, tb.addr, "c3", "wrong", ""); err == nil {
		t.Fatal("expected connect with unknown token to be rejected")
	}
}

func TestReservedTopicBlocked(t *testing.T) {
	tb := startTestBroker(t)
	tb.devices.addToken(t, tb.pepper, 1, "dev-1", "token-abc")

	pub, err := mustConnect(t, tb.addr, "pub1", "token-abc", "")
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer pub.Disconnect(100)

	sub, err := mustConnect(t, tb.addr, "sub1", "token-abc", "")
	if err != nil {
		t.Fatalf("subscriber connect: %v", err)
	}
	defer sub.Disconnect(100)

	received := make(chan mqttc.Message, 4)
	if token := sub.Subscribe("#", 0, func(c mqttc.Client, m mqttc.Message) {
		received <- m
	}); token.Wait() && token.Error() != nil {
		t.Fatalf("subscribe: %v", token.Error())
	}
	time.Sleep(100 * time.Millisecond)

	pub.Publish("$SYS/broker/info", 0, false, []byte("secret"))
	time.Sleep(300 * time.Millisecond)

	select {
	case m := <-received:
		t.Fatalf("expected no message delivered for reserved topic, got %q on %q", m.Payload(), m.Topic())
	default:
	}
}

func TestDoublePrefixStaysTrapped(t *testing.T) {
	tb := startTestBroker(t)
	tb.devices.addToken(t, tb.pepper, 1, "dev-1", "token-tenant1")
	tb.devices.addToken(t, tb.pepper, 999, "dev-999", "token-tenant999")

	pub, err := mustConnect(t, tb.addr, "pub2", "token-tenant1", "")
	if err != nil {
		t.Fatalf("publisher connect: %v", err)
	}
	defer pub.Disconnect(100)

	sub1, err := mustConnect(t, tb.addr, "sub-t1", "token-tenant1", "")
	if err != nil {
		t.Fatalf("tenant-1 subscriber connect: %v", err)
	}
	defer sub1.Disconnect(100)

	sub999, err := mustConnect(t, tb.addr, "sub-t999", "token-tenant999", "")
	if err != nil {
		t.Fatalf("tenant-999 subscriber connect: %v", err)
	}
	defer sub999.Disconnect(100)

	got1 := make(chan mqttc.Message, 4)
	got999 := make(chan mqttc.Message, 4)

	if token := sub1.Subscribe("#", 0, func(c mqttc.Client, m mqttc.Message) { got1 <- m }); token.Wait() && token.Error() != nil {
		t.Fatalf("tenant-1 subscribe: %v", token.Error())
	}
	if token := sub999.Subscribe("#", 0, func(c mqttc.Client, m mqttc.Message) { got999 <- m }); token.Wait() && token.Error() != nil {
		t.Fatalf("tenant-999 subscribe: %v", token.Error())
	}
	time.Sleep(100 * time.Millisecond)

	pub.Publish("tenants/999/devices/steal", 0, false, []byte("payload"))
	time.Sleep(300 * time.Millisecond)

	select {
	case m := <-got1:
		want := "tenants/1/tenants/999/devices/steal"
		if m.Topic() != want {
			t.Fatalf("expected topic %q, got %q", want, m.Topic())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tenant 1 subscriber did not receive its own publish")
	}

	select {
	case m := <-got999:
		t.Fatalf("tenant 999 subscriber must not receive tenant 1's publish, got %q", m.Topic())
	default:
	}
}

func TestRotationAcceptsNewRejectsOld(t *testing.T) {
	tb := startTestBroker(t)
	tb.devices.addToken(t, tb.pepper, 1, "dev-1", "token-abc")

	if cl, err := mustConnect(t, tb.addr, "r1", "token-abc", ""); err != nil {
		t.Fatalf("expected old token to work before rotation: %v", err)
	} else {
		cl.Disconnect(100)
	}

	// admin rotates: a new plaintext replaces the old credential entirely
	tb.devices.rotate(t, tb.pepper, 1, "dev-1", "token-xyz")

	if _, err := mustConnect(t, tb.addr, "r2", "token-abc", ""); err == nil {
		t.Fatal("expected old token to be rejected after rotation")
	}
	if cl, err := mustConnect(t, tb.addr, "r3", "token-xyz", ""); err != nil {
		t.Fatalf("expected new token to be accepted after rotation: %v", err)
	} else {
		cl.Disconnect(100)
	}
}

func TestBridgeForwardsAcceptedPublishToBatcher(t *testing.T) {
	tb := startTestBroker(t)
	tb.devices.addToken(t, tb.pepper, 7, "dev-7", "token-7")

	pub, err := mustConnect(t, tb.addr, fmt.Sprintf("bridge-%d", time.Now().UnixNano()%1000), "token-7", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pub.Disconnect(100)

	pub.Publish("sensors/temp", 0, false, []byte(`{"c":21.5}`))
	time.Sleep(300 * time.Millisecond)

	msgs := tb.batcher.snapshot()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message forwarded to batcher, got %d", len(msgs))
	}
	if msgs[0].TenantID != 7 {
		t.Fatalf("expected tenantId 7, got %d", msgs[0].TenantID)
	}
	if msgs[0].Topic != "tenants/7/sensors/temp" {
		t.Fatalf("expected rewritten topic, got %q", msgs[0].Topic)
	}
}
